package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/grading"
	"github.com/noah-isme/gradebook-api/internal/models"
)

type recordSource interface {
	SnapshotWithRevision() (models.RecordSet, uint64)
}

// StatisticsService computes class wide statistics and caches them per
// record set revision.
type StatisticsService struct {
	source recordSource
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
	now    Clock
}

// NewStatisticsService constructs the statistics service.
func NewStatisticsService(source recordSource, cache *CacheService, ttl time.Duration, logger *zap.Logger) *StatisticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatisticsService{source: source, cache: cache, ttl: ttl, logger: logger, now: time.Now}
}

// Class returns the class statistics. The bool reports whether the result
// was served from cache.
func (s *StatisticsService) Class(ctx context.Context) (*dto.StatisticsResponse, bool, error) {
	records, revision := s.source.SnapshotWithRevision()
	key := fmt.Sprintf("%s:%d", statisticsCacheKey, revision)

	value, hit, err := s.cache.Remember(ctx, key, s.ttl, &dto.StatisticsResponse{}, func() (interface{}, error) {
		return ComputeStatistics(records, s.now().UTC()), nil
	})
	if err != nil {
		return nil, false, err
	}
	resp, ok := value.(*dto.StatisticsResponse)
	if !ok {
		return nil, false, fmt.Errorf("unexpected statistics payload %T", value)
	}
	if !hit {
		s.logger.Sugar().Debugw("class statistics computed", "revision", revision, "students", resp.StudentCount)
	}
	return resp, hit, nil
}

// ComputeStatistics aggregates a record set.
func ComputeStatistics(records models.RecordSet, generatedAt time.Time) *dto.StatisticsResponse {
	avg, ok := records.ClassAverage()
	band := grading.QualitativeBand(avg, ok)

	resp := &dto.StatisticsResponse{
		ClassAverage: meanPtr(avg, ok),
		Band:         band,
		Emoji:        band.Emoji(),
		StudentCount: len(records),
		Distribution: make([]dto.DistributionEntry, 0),
		Subjects:     make([]dto.SubjectStatistics, 0),
		GeneratedAt:  generatedAt,
	}

	type subjectAggregate struct {
		name     string
		students int
		grades   []grading.Value
	}
	aggregates := make(map[string]*subjectAggregate)
	var order []string

	for _, id := range records.IDs() {
		student := records[id]
		if _, graded := student.Average(); graded {
			resp.GradedStudentCount++
		}
		for _, key := range student.SubjectKeys() {
			subject := student.Subjects[key]
			agg, seen := aggregates[key]
			if !seen {
				agg = &subjectAggregate{name: subject.Name}
				aggregates[key] = agg
				order = append(order, key)
			}
			agg.students++
			agg.grades = append(agg.grades, subject.Grades...)
		}
	}

	all := records.AllGrades()
	resp.GradeCount = len(all)
	for _, bucket := range grading.Distribution(all) {
		resp.Distribution = append(resp.Distribution, dto.DistributionEntry{Tag: bucket.Tag, Value: bucket.Value, Count: bucket.Count})
	}

	sort.Strings(order)
	for _, key := range order {
		agg := aggregates[key]
		subjectAvg, defined := grading.SubjectAverage(agg.grades)
		resp.Subjects = append(resp.Subjects, dto.SubjectStatistics{
			Key:          key,
			Name:         agg.name,
			StudentCount: agg.students,
			GradeCount:   len(agg.grades),
			Average:      meanPtr(subjectAvg, defined),
		})
	}
	return resp
}
