package constants

// Ledger column names. Uploaded tables must carry these exact headers.
const (
	ColCustomerID   = "customer_id"
	ColPurchaseCode = "purchase_code"
	ColPurchaseDate = "purchase_date"
	ColTotalValue   = "total_value"
)

// LedgerColumns lists the required ledger columns in canonical order.
var LedgerColumns = []string{ColCustomerID, ColPurchaseCode, ColPurchaseDate, ColTotalValue}

// Result column names, in output order. The customer id is the row key.
const (
	ColRecency         = "recency"
	ColFrequency       = "frequency"
	ColValue           = "value"
	ColRGrade          = "r_grade"
	ColFGrade          = "f_grade"
	ColVGrade          = "v_grade"
	ColRFVScore        = "rfv_score"
	ColSuggestedAction = "suggested_action"
)

var ResultColumns = []string{
	ColCustomerID,
	ColRecency,
	ColFrequency,
	ColValue,
	ColRGrade,
	ColFGrade,
	ColVGrade,
	ColRFVScore,
	ColSuggestedAction,
}
