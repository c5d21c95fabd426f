package grading

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a decimal grade stored as an integer number of hundredths.
type Value int

// Float64 returns the decimal representation of the grade.
func (v Value) Float64() float64 {
	return float64(v) / 100
}

// String renders the grade with at least one fractional digit ("1.0", "2.3").
func (v Value) String() string {
	return formatHundredths(int64(v))
}

// MarshalJSON writes the grade as a JSON number.
func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalJSON accepts a JSON number that must be a member of the scale.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseValue(string(data))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

type entry struct {
	tag   string
	value Value
}

// scale is ordered by value ascending, which is also the display order.
var scale = []entry{
	{"1+", 70}, {"1", 100}, {"1-", 130},
	{"2+", 170}, {"2", 200}, {"2-", 230},
	{"3+", 270}, {"3", 300}, {"3-", 330},
	{"4+", 370}, {"4", 400}, {"4-", 430},
	{"5+", 470}, {"5", 500}, {"5-", 530},
	{"6", 600},
}

var (
	byTag   = make(map[string]Value, len(scale))
	byValue = make(map[Value]string, len(scale))
)

func init() {
	for _, e := range scale {
		byTag[e.tag] = e.value
		byValue[e.value] = e.tag
	}
}

// UnknownTagError reports a tag outside the grade scale.
type UnknownTagError struct {
	Tag string
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("unknown grade tag %q", e.Tag)
}

// UnknownValueError reports a decimal that no tag maps to.
type UnknownValueError struct {
	Value string
}

func (e *UnknownValueError) Error() string {
	return fmt.Sprintf("unknown grade value %s", e.Value)
}

// DecimalOf converts a tag such as "2-" into its decimal grade.
func DecimalOf(tag string) (Value, error) {
	v, ok := byTag[strings.TrimSpace(tag)]
	if !ok {
		return 0, &UnknownTagError{Tag: tag}
	}
	return v, nil
}

// TagOf converts a decimal grade back into its tag. Lookup is exact.
func TagOf(v Value) (string, error) {
	tag, ok := byValue[v]
	if !ok {
		return "", &UnknownValueError{Value: v.String()}
	}
	return tag, nil
}

// MustTagOf is TagOf for values already known to be on the scale.
func MustTagOf(v Value) string {
	tag, err := TagOf(v)
	if err != nil {
		panic(err)
	}
	return tag
}

// AllTags returns the 16 tags from best to worst.
func AllTags() []string {
	tags := make([]string, len(scale))
	for i, e := range scale {
		tags[i] = e.tag
	}
	return tags
}

// Values returns the scale values in display order.
func Values() []Value {
	values := make([]Value, len(scale))
	for i, e := range scale {
		values[i] = e.value
	}
	return values
}

// IsMember reports whether v is one of the scale values.
func IsMember(v Value) bool {
	_, ok := byValue[v]
	return ok
}

// ParseValue parses a decimal literal ("2.3", "2,3", "2.30") into a scale value.
func ParseValue(raw string) (Value, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, &UnknownValueError{Value: raw}
	}
	return ValueFromFloat(f)
}

// hundredthsTolerance absorbs binary float noise such as 0.7000000000000001
// without letting a third decimal place through.
const hundredthsTolerance = 1e-6

// ValueFromFloat converts f to hundredths and checks scale membership. f must
// already be a whole number of hundredths; 2.304 is rejected, not rounded.
func ValueFromFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &UnknownValueError{Value: strconv.FormatFloat(f, 'g', -1, 64)}
	}
	scaled := f * 100
	rounded := math.Round(scaled)
	v := Value(rounded)
	if math.Abs(scaled-rounded) > hundredthsTolerance || !IsMember(v) {
		return 0, &UnknownValueError{Value: strconv.FormatFloat(f, 'f', -1, 64)}
	}
	return v, nil
}

func formatHundredths(h int64) string {
	sign := ""
	if h < 0 {
		sign = "-"
		h = -h
	}
	whole, frac := h/100, h%100
	switch {
	case frac == 0:
		return fmt.Sprintf("%s%d.0", sign, whole)
	case frac%10 == 0:
		return fmt.Sprintf("%s%d.%d", sign, whole, frac/10)
	default:
		return fmt.Sprintf("%s%d.%02d", sign, whole, frac)
	}
}
