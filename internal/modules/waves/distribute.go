// Package waves turns buffered per-wave demand estimates into integer baking
// quantities.
package waves

import "sort"

// Distribute splits a rounded daily quantity across the three waves. Small
// quantities front-load the day so the product is available from the morning:
// 1 unit goes to wave 1, 2 units to waves 1+2, 3 units one per wave. Larger
// quantities are apportioned by each wave's share with largest-remainder
// rounding, so the parts always sum to dailyRounded exactly.
func Distribute(dailyRounded int, values [3]float64) [3]int {
	total := values[0] + values[1] + values[2]
	if dailyRounded <= 0 || total <= 0 {
		return [3]int{}
	}

	switch {
	case dailyRounded <= 1:
		return [3]int{dailyRounded, 0, 0}
	case dailyRounded == 2:
		return [3]int{1, 1, 0}
	case dailyRounded == 3:
		return [3]int{1, 1, 1}
	}

	var floored [3]int
	type fractional struct {
		index    int
		fraction float64
	}
	fractions := make([]fractional, 3)

	assigned := 0
	for i, v := range values {
		exact := v / total * float64(dailyRounded)
		floored[i] = int(exact)
		assigned += floored[i]
		fractions[i] = fractional{index: i, fraction: exact - float64(floored[i])}
	}

	// Ties keep wave order.
	sort.SliceStable(fractions, func(i, j int) bool { return fractions[i].fraction > fractions[j].fraction })

	for i := 0; i < dailyRounded-assigned; i++ {
		floored[fractions[i].index]++
	}
	return floored
}
