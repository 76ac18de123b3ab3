package waves

import (
	"fmt"
	"math"

	"github.com/bakeplan/bakeplan/internal/domain"
	"github.com/bakeplan/bakeplan/internal/modules/buffer"
)

const (
	// keyProductMinimum is the mandatory wave-3 stock for key products.
	keyProductMinimum = 5

	// middayBufferFactor and eveningBufferFactor shape the full-day buffer
	// into per-wave buffers.
	middayBufferFactor       = 0.7
	eveningHighSalesFactor   = 0.3
	eveningReductionFactor   = 0.8
	slowMoverCeilingBoundary = 3
)

// Input is everything the allocator needs for one product on one date.
type Input struct {
	Product      domain.Product
	Historical   [3]float64 // unbuffered estimate per wave
	Buffers      [3]buffer.Result
	HighSalesDay bool
	PreHoliday   bool
}

// Allocation is the integer three-wave plan for one product.
type Allocation struct {
	Quantities     [3]int
	Historical     [3]int
	BufferPercents [3]int
	Reasons        [3]string
	// DailyRounded is the rounded daily total the quantities sum to,
	// including any key-product shortfall added back.
	DailyRounded int
}

// Allocate produces the full-day allocation: per-wave buffers are applied to
// the estimates, the buffered sum is rounded once for the whole day, and the
// rounded total is distributed across the waves. Key products are topped up
// to the wave-3 minimum afterwards.
func Allocate(in Input) Allocation {
	b1 := in.Buffers[0].Buffer
	b2 := in.Buffers[1].Buffer * middayBufferFactor
	b3 := -math.Abs(in.Buffers[2].Buffer) * eveningReductionFactor
	if in.HighSalesDay {
		b3 = in.Buffers[2].Buffer * eveningHighSalesFactor
	}

	values := [3]float64{
		in.Historical[0] * (1 + b1),
		in.Historical[1] * (1 + b2),
		in.Historical[2] * (1 + b3),
	}

	// Slow movers round up so one straggler unit is still baked.
	dailyTotal := values[0] + values[1] + values[2]
	var dailyRounded int
	if dailyTotal > 0 && dailyTotal < slowMoverCeilingBoundary {
		dailyRounded = int(math.Ceil(dailyTotal))
	} else {
		dailyRounded = int(math.Round(dailyTotal))
	}

	qty := Distribute(dailyRounded, values)

	keyMinimumApplied := false
	if in.Product.IsKey && qty[2] < keyProductMinimum {
		dailyRounded += keyProductMinimum - qty[2]
		qty[2] = keyProductMinimum
		keyMinimumApplied = values[2] < keyProductMinimum
	}

	reasons := waveReasons(in, keyMinimumApplied)
	note := PackagingNote(in.Product, qty[0]+qty[1]+qty[2])

	alloc := Allocation{
		Quantities:   qty,
		DailyRounded: dailyRounded,
	}
	for i, b := range []float64{b1, b2, b3} {
		alloc.Historical[i] = int(math.Round(in.Historical[i]))
		alloc.BufferPercents[i] = int(math.Round(b * 100))
		alloc.Reasons[i] = reasons[i] + note
	}
	return alloc
}

// AllocateWave regenerates a single wave with the per-wave algorithm:
// quantity = round(historical x (1 + waveBuffer)), with the key-product
// minimum on wave 3. Used when one wave is re-planned after the day started.
func AllocateWave(in Input, wave int) (int, int, int, string) {
	hist := in.Historical[wave-1]
	base := in.Buffers[wave-1]

	var b float64
	var reason string
	switch wave {
	case domain.WaveMorning:
		b = base.Buffer
		reason = base.Reason
		if in.HighSalesDay {
			reason = highSalesReason(in.PreHoliday, "historical")
		}
	case domain.WaveMidday:
		b = base.Buffer * middayBufferFactor
		reason = "midday: " + base.Reason
		if in.HighSalesDay {
			reason = highSalesReason(in.PreHoliday, "midday")
		}
	default:
		if in.HighSalesDay {
			b = base.Buffer * eveningHighSalesFactor
			reason = highSalesReason(in.PreHoliday, "evening")
		} else {
			b = -math.Abs(base.Buffer) * eveningReductionFactor
			reason = "evening reduction: " + base.Reason
		}
	}

	quantity := int(math.Round(hist * (1 + b)))
	bufferPercent := int(math.Round(b * 100))

	if wave == domain.WaveEvening && in.Product.IsKey && quantity < keyProductMinimum {
		quantity = keyProductMinimum
		if hist > 0 {
			bufferPercent = int(math.Round((float64(keyProductMinimum)/hist - 1) * 100))
		}
		reason = KeyMinimumReason
	}

	if quantity < 0 {
		quantity = 0
	}
	return quantity, int(math.Round(hist)), bufferPercent, reason + PackagingNote(in.Product, quantity)
}

// KeyMinimumReason marks entries forced up to the key-product minimum.
const KeyMinimumReason = "Minimum for key product (5 pcs)"

// KeyProductMinimum is the mandatory evening stock for key products.
const KeyProductMinimum = keyProductMinimum

// waveReasons builds the three per-wave reason strings.
func waveReasons(in Input, keyMinimumApplied bool) [3]string {
	r := [3]string{
		in.Buffers[0].Reason,
		"midday: " + in.Buffers[1].Reason,
		"evening reduction: " + in.Buffers[2].Reason,
	}
	if in.HighSalesDay {
		r[0] = highSalesReason(in.PreHoliday, "historical")
		r[1] = highSalesReason(in.PreHoliday, "midday")
		r[2] = highSalesReason(in.PreHoliday, "evening")
	}
	if keyMinimumApplied {
		r[2] = KeyMinimumReason
	}
	return r
}

func highSalesReason(preHoliday bool, slot string) string {
	if preHoliday {
		return "pre-holiday " + slot
	}
	return "pension day " + slot
}

// PackagingNote annotates packaged products so the plan reads unambiguously
// in package units.
func PackagingNote(p domain.Product, totalQty int) string {
	if !p.IsPackaged {
		return ""
	}
	return fmt.Sprintf(" (multi-pack %dx - plan in packages, %d pkg = %d pcs)",
		p.UnitsPerPackage, totalQty, totalQty*p.UnitsPerPackage)
}
