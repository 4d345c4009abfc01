package catalog

// Ref is an embedded category reference.
type Ref struct {
	ID   string `json:"_id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Product is a catalog entry as served by the backend.
type Product struct {
	ID               string  `json:"_id"`
	Name             string  `json:"name,omitempty"`
	SKU              string  `json:"sku,omitempty"`
	Barcode          string  `json:"barcode,omitempty"`
	SellingPrice     float64 `json:"sellingPrice,omitempty"`
	EffectivePrice   float64 `json:"effectivePrice,omitempty"`
	Stock            int     `json:"stock"`
	Unit             string  `json:"unit,omitempty"`
	TaxRate          float64 `json:"taxRate,omitempty"`
	WarrantyDuration int     `json:"warrantyDuration,omitempty"`
	WarrantyType     string  `json:"warrantyType,omitempty"`
	Category         *Ref    `json:"category,omitempty"`
	Subcategory      *Ref    `json:"subcategory,omitempty"`
}

// HasWarranty reports whether each sold unit needs a serial number.
func (p Product) HasWarranty() bool {
	return p.WarrantyDuration > 0
}

// Price is the unit price charged at the till. An active offer's effective
// price wins over the list price.
func (p Product) Price() float64 {
	if p.EffectivePrice > 0 {
		return p.EffectivePrice
	}
	return p.SellingPrice
}

// Category is a node of the category tree.
type Category struct {
	ID            string     `json:"_id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	Parent        string     `json:"parent,omitempty"`
	Subcategories []Category `json:"subcategories,omitempty"`
}

// SubcategoryIDs returns the ids of c's direct children.
func (c Category) SubcategoryIDs() []string {
	ids := make([]string, 0, len(c.Subcategories))
	for _, s := range c.Subcategories {
		ids = append(ids, s.ID)
	}
	return ids
}
