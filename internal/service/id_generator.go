package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/gradebook-api/internal/models"
)

const studentIDLayout = "20060102150405"

// Clock returns the current time. Tests replace it with a fixed clock.
type Clock func() time.Time

// StudentIDGenerator derives ids of the form schueler_<n>_<YYYYMMDDhhmmss>
// where n starts at the current student count plus one.
type StudentIDGenerator struct {
	now Clock
}

// NewStudentIDGenerator constructs a generator using clock, or the local wall
// clock when nil.
func NewStudentIDGenerator(clock Clock) *StudentIDGenerator {
	if clock == nil {
		clock = time.Now
	}
	return &StudentIDGenerator{now: clock}
}

// Next returns an id not present in records.
func (g *StudentIDGenerator) Next(records models.RecordSet) string {
	stamp := g.now().Format(studentIDLayout)
	for n := len(records) + 1; ; n++ {
		id := fmt.Sprintf("schueler_%d_%s", n, stamp)
		if _, taken := records[id]; !taken {
			return id
		}
	}
}
