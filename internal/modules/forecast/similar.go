package forecast

import (
	"sort"
	"strings"

	"github.com/bakeplan/bakeplan/internal/domain"
)

// Category is one named group of product-name keywords. The list is
// deployment configuration; the defaults cover a Slovenian bakery assortment.
type Category struct {
	Name     string
	Patterns []string
}

// DefaultCategories returns the built-in category keyword lists.
func DefaultCategories() []Category {
	return []Category{
		{Name: "bread", Patterns: []string{"kruh", "kruha", "bread", "hljeb", "baguette"}},
		{Name: "pastry", Patterns: []string{"croissant", "rogljič", "puff", "burek", "štrudelj"}},
		{Name: "pizza", Patterns: []string{"pizza", "focaccia", "lepinja"}},
		{Name: "sweet", Patterns: []string{"čokolada", "chocolate", "vanilija", "jagoda", "sladka"}},
		{Name: "packaged", Patterns: []string{"pak", "pack", "paket"}},
	}
}

// scoredProduct pairs a candidate with its similarity score.
type scoredProduct struct {
	product domain.Product
	score   int
}

// categoryOf returns the first category whose patterns match the name, or "".
func categoryOf(categories []Category, nameLower string) string {
	for _, c := range categories {
		for _, p := range c.Patterns {
			if strings.Contains(nameLower, p) {
				return c.Name
			}
		}
	}
	return ""
}

// nameKeywords splits a product name into lowercase keywords longer than two
// characters.
func nameKeywords(name string) []string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == ','
	})
	var keywords []string
	for _, f := range fields {
		if len([]rune(f)) > 2 {
			keywords = append(keywords, f)
		}
	}
	return keywords
}

// findSimilarProducts scores the catalog against one product by name category,
// shared keywords, packaging type, and key status, returning the top three
// positive matches.
func findSimilarProducts(categories []Category, current domain.Product, catalog []domain.Product) []domain.Product {
	currentCategory := categoryOf(categories, strings.ToLower(current.Name))
	keywords := nameKeywords(current.Name)

	var scored []scoredProduct
	for _, p := range catalog {
		if p.SKU == current.SKU {
			continue
		}
		otherName := strings.ToLower(p.Name)

		score := 0
		if c := categoryOf(categories, otherName); c != "" && c == currentCategory {
			score += 50
		}
		for _, kw := range keywords {
			if strings.Contains(otherName, kw) {
				score += 10
			}
		}
		if p.IsPackaged == current.IsPackaged {
			score += 20
		}
		if p.IsKey == current.IsKey {
			score += 15
		}

		if score > 0 {
			scored = append(scored, scoredProduct{product: p, score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > 3 {
		scored = scored[:3]
	}

	out := make([]domain.Product, len(scored))
	for i, s := range scored {
		out[i] = s.product
	}
	return out
}
