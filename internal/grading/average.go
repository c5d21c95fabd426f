package grading

import (
	"fmt"
	"math"
	"strconv"
)

// Mean is an average rounded to two decimals, stored in hundredths.
type Mean int64

// Float64 returns the decimal representation of the mean.
func (m Mean) Float64() float64 {
	return float64(m) / 100
}

// String renders the mean with exactly two decimals.
func (m Mean) String() string {
	h := int64(m)
	sign := ""
	if h < 0 {
		sign = "-"
		h = -h
	}
	return fmt.Sprintf("%s%d.%02d", sign, h/100, h%100)
}

// MarshalJSON writes the mean as a JSON number with two decimals.
func (m Mean) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON reads a JSON number and rounds it to hundredths.
func (m *Mean) UnmarshalJSON(data []byte) error {
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid mean %s: %w", data, err)
	}
	*m = Mean(math.Round(f * 100))
	return nil
}

// SubjectAverage is the arithmetic mean of a subject's grades. It is
// undefined for an empty sequence.
func SubjectAverage(grades []Value) (Mean, bool) {
	if len(grades) == 0 {
		return 0, false
	}
	var sum int64
	for _, g := range grades {
		sum += int64(g)
	}
	return roundedMean(sum, int64(len(grades))), true
}

// MeanOfMeans averages already rounded means (subject averages for a
// student, student averages for a class). Undefined when means is empty.
func MeanOfMeans(means []Mean) (Mean, bool) {
	if len(means) == 0 {
		return 0, false
	}
	var sum int64
	for _, m := range means {
		sum += int64(m)
	}
	return roundedMean(sum, int64(len(means))), true
}

// roundedMean divides sum by n and rounds half to even, all in hundredths.
func roundedMean(sum, n int64) Mean {
	q, r := sum/n, sum%n
	if r < 0 {
		q--
		r += n
	}
	switch {
	case 2*r > n:
		q++
	case 2*r == n && q%2 != 0:
		q++
	}
	return Mean(q)
}
