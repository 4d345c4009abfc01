package catalog

import (
	"slices"
	"strings"
)

// Filter returns the products shown in the search grid for query, limited
// to categoryIDs when that list is non-empty.
//
// Name and SKU match as case-insensitive substrings, barcode as a
// case-sensitive substring. A product matches the category filter if either
// its category or its subcategory is listed.
func Filter(products []Product, query string, categoryIDs []string) []Product {
	lowered := strings.ToLower(query)
	out := make([]Product, 0, len(products))

	for _, p := range products {
		matchesSearch := strings.Contains(strings.ToLower(p.Name), lowered) ||
			strings.Contains(strings.ToLower(p.SKU), lowered) ||
			strings.Contains(p.Barcode, query)
		if !matchesSearch {
			continue
		}
		if len(categoryIDs) > 0 && !inCategories(p, categoryIDs) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// SelectedCategoryIDs expands a category selection into the ids Filter
// should accept: a subcategory selects itself, a parent selects itself and
// its children.
func SelectedCategoryIDs(tree []Category, parentID, subID string) []string {
	if subID != "" {
		return []string{subID}
	}
	if parentID == "" {
		return nil
	}
	for _, c := range tree {
		if c.ID == parentID {
			return append([]string{parentID}, c.SubcategoryIDs()...)
		}
	}
	return []string{parentID}
}

func inCategories(p Product, ids []string) bool {
	if p.Category != nil && p.Category.ID != "" && slices.Contains(ids, p.Category.ID) {
		return true
	}
	if p.Subcategory != nil && p.Subcategory.ID != "" && slices.Contains(ids, p.Subcategory.ID) {
		return true
	}
	return false
}
