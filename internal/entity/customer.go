package entity

import "github.com/joseph-ayodele/rfv-segments/constants"

// CustomerRFV is the scored segmentation record of one customer.
// SuggestedAction is nil when the score has no entry in the action table.
type CustomerRFV struct {
	CustomerID      string          `json:"customer_id"`
	Recency         int             `json:"recency"`
	Frequency       int             `json:"frequency"`
	Value           float64         `json:"value"`
	RGrade          constants.Grade `json:"r_grade"`
	FGrade          constants.Grade `json:"f_grade"`
	VGrade          constants.Grade `json:"v_grade"`
	RFVScore        string          `json:"rfv_score"`
	SuggestedAction *string         `json:"suggested_action"`
}

// Action returns the suggested action, or "" when there is none.
func (c CustomerRFV) Action() string {
	if c.SuggestedAction == nil {
		return ""
	}
	return *c.SuggestedAction
}
