package model

// Product is the read model of the catalog's product row. The catalog service
// owns everything here except StockQuantity, which is a derived total written
// exclusively by the reconciler alongside every engine operation.
type Product struct {
	BaseModel
	SKU           string  `db:"sku" json:"sku"`
	Name          string  `db:"name" json:"name"`
	BasePrice     float64 `db:"base_price" json:"base_price"`
	HasVariants   bool    `db:"has_variants" json:"has_variants"`
	IsActive      bool    `db:"is_active" json:"is_active"`
	StockQuantity int64   `db:"stock_quantity" json:"stock_quantity"`
}
