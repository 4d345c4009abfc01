package catalog

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Resolve returns the product whose barcode equals query exactly, or failing
// that, whose SKU equals query ignoring case. query is trimmed first.
//
// When several products share a barcode (or a folded SKU) the first one in
// snapshot order wins. Duplicate codes are an upstream data problem.
func Resolve(products []Product, query string) (Product, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Product{}, false
	}

	for _, p := range products {
		if p.Barcode != "" && p.Barcode == query {
			return p, true
		}
	}

	folded := foldSKU(query)
	for _, p := range products {
		if p.SKU != "" && foldSKU(p.SKU) == folded {
			return p, true
		}
	}

	return Product{}, false
}

// foldSKU lowercases s with the root locale's simple mappings. Special
// foldings such as ß to ss are not applied.
// A Caser is stateful, so a fresh one is built per call.
func foldSKU(s string) string {
	return cases.Lower(language.Und).String(s)
}
