package constants

// Grade is a quartile letter. A is always the most favorable bucket.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

var allGrades = []Grade{GradeA, GradeB, GradeC, GradeD}

// Grades returns the four grades from best to worst.
func Grades() []Grade {
	out := make([]Grade, len(allGrades))
	copy(out, allGrades)
	return out
}

// Valid reports whether g is one of A, B, C, D.
func (g Grade) Valid() bool {
	for _, v := range allGrades {
		if g == v {
			return true
		}
	}
	return false
}
