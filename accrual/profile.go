/*
profile.go - Driving behavior profiles

PURPOSE:
  A behavior profile scores four driving dimensions from 0 to 100. Each
  dimension collapses to one of two letters depending on whether it clears
  the favorable threshold, giving a compact 4-letter code such as "EDSF"
  or "HAIU". Improvement is judged letter by letter between two codes.

CODE LETTERS (favorable / unfavorable):
  Carbon    E / H   economical vs heavy
  Safety    D / A   defensive vs aggressive
  Accident  S / I   safe vs incident-prone
  Focus     F / U   focused vs unfocused

SEE ALSO:
  - engine.go: The improvement rule consuming these codes
*/
package accrual

// BehaviorProfile holds one measurement of the four driving dimensions.
// Nil dimensions count as unfavorable.
type BehaviorProfile struct {
	Carbon   *int `json:"carbonScore"`
	Safety   *int `json:"safetyScore"`
	Accident *int `json:"accidentScore"`
	Focus    *int `json:"focusScore"`
}

// dimension pairs a score accessor with its favorable/unfavorable letters.
var dimensions = []struct {
	score       func(BehaviorProfile) *int
	favorable   byte
	unfavorable byte
}{
	{func(p BehaviorProfile) *int { return p.Carbon }, 'E', 'H'},
	{func(p BehaviorProfile) *int { return p.Safety }, 'D', 'A'},
	{func(p BehaviorProfile) *int { return p.Accident }, 'S', 'I'},
	{func(p BehaviorProfile) *int { return p.Focus }, 'F', 'U'},
}

// Code collapses the profile to its 4-letter code. A dimension is favorable
// iff its score meets threshold.
func (p BehaviorProfile) Code(threshold int) string {
	code := make([]byte, len(dimensions))
	for i, d := range dimensions {
		score := d.score(p)
		if score != nil && *score >= threshold {
			code[i] = d.favorable
		} else {
			code[i] = d.unfavorable
		}
	}
	return string(code)
}

// improved reports whether current is a strict behavioral improvement over
// last: the codes differ and at least one position flipped from its
// unfavorable to its favorable letter.
func improved(last, current string) bool {
	if last == current || len(last) != len(current) {
		return false
	}
	for i, d := range dimensions {
		if last[i] == d.unfavorable && current[i] == d.favorable {
			return true
		}
	}
	return false
}
