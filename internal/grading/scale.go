// Package grading converts numeric scores into letter grades and letter
// grades into 4.0-scale GPA points.
//
// Two scales coexist. ScaleCoarse is the one used when a grade is written and
// its letter persisted. ScaleFine only derives a display letter for rows that
// have no stored letter. Callers always name the scale they want.
package grading

import "strings"

// Letter is a letter grade in display form, e.g. "A-" or "B+".
type Letter string

// Display letters.
const (
	APlus  Letter = "A+"
	A      Letter = "A"
	AMinus Letter = "A-"
	BPlus  Letter = "B+"
	B      Letter = "B"
	BMinus Letter = "B-"
	CPlus  Letter = "C+"
	C      Letter = "C"
	CMinus Letter = "C-"
	DPlus  Letter = "D+"
	D      Letter = "D"
	DMinus Letter = "D-"
	F      Letter = "F"
)

// Scale selects a score to letter banding.
type Scale int

const (
	// ScaleCoarse bands scores into A, B, C, D and F.
	ScaleCoarse Scale = iota + 1
	// ScaleFine bands scores into twelve plus/minus letters and F.
	ScaleFine
)

func (s Scale) String() string {
	switch s {
	case ScaleCoarse:
		return "coarse"
	case ScaleFine:
		return "fine"
	default:
		return "unknown"
	}
}

type band struct {
	min    float64
	letter Letter
}

var coarseBands = []band{
	{90, A},
	{80, B},
	{70, C},
	{60, D},
}

var fineBands = []band{
	{97, APlus},
	{93, A},
	{90, AMinus},
	{87, BPlus},
	{83, B},
	{80, BMinus},
	{77, CPlus},
	{73, C},
	{70, CMinus},
	{67, DPlus},
	{63, D},
	{60, DMinus},
}

var gpaPoints = map[Letter]float64{
	APlus:  4.0,
	A:      4.0,
	AMinus: 3.7,
	BPlus:  3.3,
	B:      3.0,
	BMinus: 2.7,
	CPlus:  2.3,
	C:      2.0,
	CMinus: 1.7,
	DPlus:  1.3,
	D:      1.0,
	DMinus: 0.7,
	F:      0.0,
}

// ScoreToLetter maps score onto the requested scale. An unknown scale falls
// back to ScaleCoarse since that is what gets persisted.
func ScoreToLetter(scale Scale, score float64) Letter {
	bands := coarseBands
	if scale == ScaleFine {
		bands = fineBands
	}
	for _, b := range bands {
		if score >= b.min {
			return b.letter
		}
	}
	return F
}

// GPAPoints returns the 4.0-scale value of letter. Unknown letters are worth
// 0.0, so callers must not use this to detect malformed data.
func GPAPoints(letter Letter) float64 {
	return gpaPoints[letter]
}

// Known reports whether letter belongs to either scale.
func Known(letter Letter) bool {
	_, ok := gpaPoints[letter]
	return ok
}

// Passing reports whether letter earns credit.
func (l Letter) Passing() bool {
	return Known(l) && l != F
}

// Stored returns the enumerated form persisted in letter_grade columns,
// e.g. "A_PLUS" for "A+".
func (l Letter) Stored() string {
	s := string(l)
	switch {
	case strings.HasSuffix(s, "+"):
		return strings.TrimSuffix(s, "+") + "_PLUS"
	case strings.HasSuffix(s, "-"):
		return strings.TrimSuffix(s, "-") + "_MINUS"
	default:
		return s
	}
}

// ParseStored normalises a persisted letter back to display form. It accepts
// the enumerated form ("B_MINUS") as well as display form ("b-"). Anything
// unrecognised yields ok == false.
func ParseStored(raw string) (Letter, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}
	switch {
	case strings.HasSuffix(s, "_PLUS"):
		s = strings.TrimSuffix(s, "_PLUS") + "+"
	case strings.HasSuffix(s, "_MINUS"):
		s = strings.TrimSuffix(s, "_MINUS") + "-"
	}
	letter := Letter(s)
	if !Known(letter) {
		return "", false
	}
	return letter, true
}

// DisplayLetter picks the letter shown to users: the stored letter when one
// parses, otherwise the fine-scale derivation of score. ok is false when
// neither source is usable.
func DisplayLetter(stored *string, score *float64) (Letter, bool) {
	if stored != nil {
		if letter, ok := ParseStored(*stored); ok {
			return letter, true
		}
	}
	if score != nil && ValidScore(*score) {
		return ScoreToLetter(ScaleFine, *score), true
	}
	return "", false
}

// ValidScore reports whether score lies in [0, 100].
func ValidScore(score float64) bool {
	return score >= 0 && score <= 100
}
