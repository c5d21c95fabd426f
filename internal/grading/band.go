package grading

// Band is the qualitative category of an average, used for display only.
type Band string

const (
	BandExcellent    Band = "EXCELLENT"
	BandGood         Band = "GOOD"
	BandSatisfactory Band = "SATISFACTORY"
	BandSufficient   Band = "SUFFICIENT"
	BandInsufficient Band = "INSUFFICIENT"
	BandUndefined    Band = "UNDEFINED"
)

// QualitativeBand categorises an average. Thresholds are inclusive.
func QualitativeBand(avg Mean, defined bool) Band {
	if !defined {
		return BandUndefined
	}
	switch {
	case avg <= 130:
		return BandExcellent
	case avg <= 230:
		return BandGood
	case avg <= 330:
		return BandSatisfactory
	case avg <= 430:
		return BandSufficient
	default:
		return BandInsufficient
	}
}

// Emoji returns the symbol shown next to an average in this band.
func (b Band) Emoji() string {
	switch b {
	case BandExcellent:
		return "😊👍"
	case BandGood:
		return "🙂"
	case BandSatisfactory:
		return "😐"
	case BandSufficient:
		return "😕"
	case BandInsufficient:
		return "😟"
	default:
		return "—"
	}
}

// Color is the highlight category of a single grade.
type Color string

const (
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorRed    Color = "red"
	ColorDark   Color = "dark"
)

// ColorOf returns the highlight category of a grade.
func ColorOf(v Value) Color {
	switch {
	case v < 200:
		return ColorGreen
	case v < 400:
		return ColorYellow
	case v < 600:
		return ColorRed
	default:
		return ColorDark
	}
}

// Bucket is one entry of a grade distribution.
type Bucket struct {
	Tag   string
	Value Value
	Count int
}

// Distribution counts grades per tag. Only tags that occur are returned,
// in scale order. Values outside the scale are ignored.
func Distribution(grades []Value) []Bucket {
	counts := make(map[Value]int, len(scale))
	for _, g := range grades {
		if IsMember(g) {
			counts[g]++
		}
	}
	buckets := make([]Bucket, 0, len(counts))
	for _, e := range scale {
		if n := counts[e.value]; n > 0 {
			buckets = append(buckets, Bucket{Tag: e.tag, Value: e.value, Count: n})
		}
	}
	return buckets
}
