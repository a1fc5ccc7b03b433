package entity

// QuartilePoints holds the 25th, 50th and 75th percentile of one measure.
type QuartilePoints struct {
	Q25 float64 `json:"q25"`
	Q50 float64 `json:"q50"`
	Q75 float64 `json:"q75"`
}

// Quartiles is the reference table computed once per run.
type Quartiles struct {
	Recency   QuartilePoints `json:"recency"`
	Frequency QuartilePoints `json:"frequency"`
	Value     QuartilePoints `json:"value"`
}
