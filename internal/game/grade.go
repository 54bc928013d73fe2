package game

// Grade is the coarse progression tier derived from character level. Grades
// gate class evolution, award stat points on transition, and set the story
// replanning stride.
type Grade string

const (
	GradeE Grade = "E_GRADE"
	GradeD Grade = "D_GRADE"
	GradeC Grade = "C_GRADE"
	GradeB Grade = "B_GRADE"
	GradeA Grade = "A_GRADE"
	GradeS Grade = "S_GRADE"
)

// gradeBand maps a grade to its inclusive level range.
type gradeBand struct {
	grade    Grade
	min, max int
}

// Bands are ordered and contiguous over [1, 1000].
var gradeBands = []gradeBand{
	{GradeE, 1, 25},
	{GradeD, 26, 75},
	{GradeC, 76, 150},
	{GradeB, 151, 250},
	{GradeA, 251, 400},
	{GradeS, 401, 1000},
}

// GradeFromLevel returns the unique grade whose band contains level. Levels
// below 1 map to E, levels above 1000 to S.
func GradeFromLevel(level int) Grade {
	for _, b := range gradeBands {
		if level >= b.min && level <= b.max {
			return b.grade
		}
	}
	if level < 1 {
		return GradeE
	}
	return GradeS
}

// StatPointsForGrade returns the unspent stat points awarded when a character
// first reaches the given grade. Entering E awards nothing.
func (g Grade) StatPointsForGrade() int {
	switch g {
	case GradeD:
		return 10
	case GradeC:
		return 20
	case GradeB:
		return 30
	case GradeA:
		return 50
	case GradeS:
		return 100
	default:
		return 0
	}
}

// ReplanStride returns how many levels pass between story replanning runs
// for a character of this grade.
func (g Grade) ReplanStride() int {
	switch g {
	case GradeE:
		return 5
	case GradeD:
		return 10
	case GradeC:
		return 15
	case GradeB:
		return 20
	case GradeA:
		return 25
	case GradeS:
		return 40
	default:
		return 5
	}
}

// rank orders grades for transition detection.
func (g Grade) rank() int {
	switch g {
	case GradeE:
		return 0
	case GradeD:
		return 1
	case GradeC:
		return 2
	case GradeB:
		return 3
	case GradeA:
		return 4
	case GradeS:
		return 5
	default:
		return -1
	}
}

// Outranks reports whether g is a strictly higher grade than other.
func (g Grade) Outranks(other Grade) bool {
	return g.rank() > other.rank()
}

// XPForLevel returns the cumulative XP required to hold the given level:
// the sum of k*100 for k in [1, level-1]. Level 1 costs nothing.
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	n := level - 1
	return 50 * n * (n + 1)
}

// XPToNextLevel returns the XP a character at the given level with the given
// cumulative xp still needs to advance one level.
func XPToNextLevel(level, xp int) int {
	need := XPForLevel(level+1) - xp
	if need < 0 {
		return 0
	}
	return need
}
