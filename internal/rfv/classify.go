package rfv

import (
	"github.com/joseph-ayodele/rfv-segments/constants"
	"github.com/joseph-ayodele/rfv-segments/internal/entity"
)

// Polarity tells Classify which end of a measure is the better one.
type Polarity int

const (
	// LowerIsBetter grades small values best (recency).
	LowerIsBetter Polarity = iota
	// HigherIsBetter grades large values best (frequency, value).
	HigherIsBetter
)

// gradeOrder lists grades from the lowest bucket (x <= Q25) upwards.
func (p Polarity) gradeOrder() [4]constants.Grade {
	if p == HigherIsBetter {
		return [4]constants.Grade{constants.GradeD, constants.GradeC, constants.GradeB, constants.GradeA}
	}
	return [4]constants.Grade{constants.GradeA, constants.GradeB, constants.GradeC, constants.GradeD}
}

// Classify buckets x against the quartile points. Boundaries are inclusive
// on the lower bucket: x == Q25 lands in the first bucket, not the second.
func Classify(x float64, q entity.QuartilePoints, p Polarity) constants.Grade {
	order := p.gradeOrder()
	switch {
	case x <= q.Q25:
		return order[0]
	case x <= q.Q50:
		return order[1]
	case x <= q.Q75:
		return order[2]
	default:
		return order[3]
	}
}

// Score concatenates the three grades in R, F, V order.
func Score(r, f, v constants.Grade) string {
	return string(r) + string(f) + string(v)
}

// grade fills the grades, score and action of every customer in place.
func grade(customers []entity.CustomerRFV, q entity.Quartiles, actions ActionTable) {
	for i := range customers {
		c := &customers[i]
		c.RGrade = Classify(float64(c.Recency), q.Recency, LowerIsBetter)
		c.FGrade = Classify(float64(c.Frequency), q.Frequency, HigherIsBetter)
		c.VGrade = Classify(c.Value, q.Value, HigherIsBetter)
		c.RFVScore = Score(c.RGrade, c.FGrade, c.VGrade)
		c.SuggestedAction = actions.Suggest(c.RFVScore)
	}
}
