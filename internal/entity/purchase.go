package entity

import "time"

// Purchase is one completed transaction read from a ledger.
type Purchase struct {
	CustomerID   string    `json:"customer_id"`
	PurchaseCode string    `json:"purchase_code"`
	PurchaseDate time.Time `json:"purchase_date"`
	TotalValue   float64   `json:"total_value"`
}
