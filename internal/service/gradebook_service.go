package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/grading"
	"github.com/noah-isme/gradebook-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
)

type documentStore interface {
	Load(ctx context.Context) (models.RecordSet, error)
	Save(ctx context.Context, records models.RecordSet) error
}

// GradebookService owns the in-memory record set and persists it after every
// mutation. Mutations are serialized; each one works on a copy that only
// replaces the live set once it has been saved.
type GradebookService struct {
	mu        sync.RWMutex
	records   models.RecordSet
	revision  uint64
	store     documentStore
	ids       *StudentIDGenerator
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradebookService constructs the gradebook service. Call Bootstrap before
// serving requests.
func NewGradebookService(store documentStore, ids *StudentIDGenerator, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *GradebookService {
	if ids == nil {
		ids = NewStudentIDGenerator(nil)
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradebookService{
		records:   models.NewRecordSet(),
		store:     store,
		ids:       ids,
		cache:     cache,
		validator: validate,
		logger:    logger,
	}
}

// Bootstrap loads the record set from the store. An unreadable document is
// logged and the session starts empty.
func (s *GradebookService) Bootstrap(ctx context.Context) error {
	records, err := s.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, appErrors.ErrParse) {
			return err
		}
		s.logger.Sugar().Warnw("starting with an empty gradebook", "error", err)
		records = models.NewRecordSet()
	}
	if records == nil {
		records = models.NewRecordSet()
	}

	s.mu.Lock()
	s.records = records
	s.revision++
	s.mu.Unlock()

	s.logger.Sugar().Infow("gradebook loaded", "students", len(records))
	return nil
}

// Snapshot returns a deep copy of the current record set.
func (s *GradebookService) Snapshot() models.RecordSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.Clone()
}

// SnapshotWithRevision returns a deep copy of the record set together with
// its revision, which changes on every successful mutation.
func (s *GradebookService) SnapshotWithRevision() (models.RecordSet, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.Clone(), s.revision
}

// Mutate applies fn to a copy of the record set, saves the copy and makes it
// the live set. When fn or the save fails the live set is left untouched.
func (s *GradebookService) Mutate(ctx context.Context, fn func(models.RecordSet) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.records.Clone()
	if err := fn(working); err != nil {
		return err
	}
	if err := s.store.Save(ctx, working); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return appErrors.WrapAs(appErrors.ErrInternal, err, "failed to save records")
	}
	s.records = working
	s.revision++
	// Statistics are keyed by revision, so a failed invalidation only leaves
	// unreachable entries behind until they expire.
	if err := s.cache.Invalidate(ctx, gradebookCacheKeys); err != nil {
		s.logger.Debug("statistics cache invalidation failed", zap.Uint64("revision", s.revision), zap.Error(err))
	}
	return nil
}

// IDs returns the generator used for new students.
func (s *GradebookService) IDs() *StudentIDGenerator {
	return s.ids
}

// ListStudents returns the overview rows matching filter, best average first.
func (s *GradebookService) ListStudents(_ context.Context, filter models.StudentFilter) ([]dto.StudentOverview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]dto.StudentOverview, 0, len(s.records))
	for id, student := range s.records {
		if !matchesFilter(student, filter) {
			continue
		}
		rows = append(rows, buildStudentOverview(id, student))
	}
	sortOverview(rows)
	return rows, nil
}

// GetStudent returns a student with every subject and grade.
func (s *GradebookService) GetStudent(_ context.Context, id string) (*dto.StudentDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	student, ok := s.records[id]
	if !ok {
		return nil, studentNotFound()
	}
	return buildStudentDetail(id, student), nil
}

// CreateStudent adds an empty student.
func (s *GradebookService) CreateStudent(ctx context.Context, req dto.StudentRequest) (*dto.StudentDetail, error) {
	req = normalizeStudentRequest(req)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid student payload")
	}

	var (
		id      string
		student models.Student
	)
	err := s.Mutate(ctx, func(records models.RecordSet) error {
		id = s.ids.Next(records)
		student = models.NewStudent(req.Name, req.Class)
		records[id] = student
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Sugar().Infow("student created", "student_id", id)
	return buildStudentDetail(id, student), nil
}

// UpdateStudent renames or reclasses a student.
func (s *GradebookService) UpdateStudent(ctx context.Context, id string, req dto.StudentRequest) (*dto.StudentDetail, error) {
	req = normalizeStudentRequest(req)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid student payload")
	}

	var updated models.Student
	err := s.Mutate(ctx, func(records models.RecordSet) error {
		student, ok := records[id]
		if !ok {
			return studentNotFound()
		}
		student.Name = req.Name
		student.Class = req.Class
		records[id] = student
		updated = student
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buildStudentDetail(id, updated), nil
}

// DeleteStudent removes a student with all subjects and grades.
func (s *GradebookService) DeleteStudent(ctx context.Context, id string) error {
	err := s.Mutate(ctx, func(records models.RecordSet) error {
		if _, ok := records[id]; !ok {
			return studentNotFound()
		}
		delete(records, id)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Sugar().Infow("student deleted", "student_id", id)
	return nil
}

// AddSubject creates an empty subject under a student.
func (s *GradebookService) AddSubject(ctx context.Context, id string, req dto.SubjectRequest) (*dto.SubjectResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid subject payload")
	}
	key := models.SubjectKey(req.Name)

	var subject models.Subject
	err := s.Mutate(ctx, func(records models.RecordSet) error {
		student, ok := records[id]
		if !ok {
			return studentNotFound()
		}
		if _, exists := student.ResolveSubjectKey(req.Name); exists {
			return appErrors.Clone(appErrors.ErrConflict, "subject already exists")
		}
		subject = models.NewSubject(req.Name)
		student.Subjects[key] = subject
		records[id] = student
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := buildSubjectResponse(key, subject)
	return &resp, nil
}

// DeleteSubject removes a subject and its grades.
func (s *GradebookService) DeleteSubject(ctx context.Context, id, key string) error {
	return s.Mutate(ctx, func(records models.RecordSet) error {
		student, resolved, err := lookupSubject(records, id, key)
		if err != nil {
			return err
		}
		delete(student.Subjects, resolved)
		records[id] = student
		return nil
	})
}

// AddGrade appends the grade for tag to a subject.
func (s *GradebookService) AddGrade(ctx context.Context, id, key string, req dto.GradeRequest) (*dto.SubjectResponse, error) {
	value, err := s.gradeValue(req)
	if err != nil {
		return nil, err
	}
	return s.mutateSubject(ctx, id, key, func(subject *models.Subject) error {
		subject.Grades = append(subject.Grades, value)
		return nil
	})
}

// EditGrade replaces the grade at index.
func (s *GradebookService) EditGrade(ctx context.Context, id, key string, index int, req dto.GradeRequest) (*dto.SubjectResponse, error) {
	value, err := s.gradeValue(req)
	if err != nil {
		return nil, err
	}
	return s.mutateSubject(ctx, id, key, func(subject *models.Subject) error {
		if index < 0 || index >= len(subject.Grades) {
			return gradeNotFound(index)
		}
		subject.Grades[index] = value
		return nil
	})
}

// DeleteGrade removes the grade at index.
func (s *GradebookService) DeleteGrade(ctx context.Context, id, key string, index int) (*dto.SubjectResponse, error) {
	return s.mutateSubject(ctx, id, key, func(subject *models.Subject) error {
		if index < 0 || index >= len(subject.Grades) {
			return gradeNotFound(index)
		}
		subject.Grades = append(subject.Grades[:index], subject.Grades[index+1:]...)
		return nil
	})
}

func (s *GradebookService) mutateSubject(ctx context.Context, id, key string, fn func(*models.Subject) error) (*dto.SubjectResponse, error) {
	var (
		resolved string
		subject  models.Subject
	)
	err := s.Mutate(ctx, func(records models.RecordSet) error {
		student, k, err := lookupSubject(records, id, key)
		if err != nil {
			return err
		}
		current := student.Subjects[k]
		if err := fn(&current); err != nil {
			return err
		}
		student.Subjects[k] = current
		records[id] = student
		resolved, subject = k, current
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := buildSubjectResponse(resolved, subject)
	return &resp, nil
}

func (s *GradebookService) gradeValue(req dto.GradeRequest) (grading.Value, error) {
	req.Tag = strings.TrimSpace(req.Tag)
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid grade payload")
	}
	value, err := grading.DecimalOf(req.Tag)
	if err != nil {
		return 0, appErrors.WrapAs(appErrors.ErrUnknownTag, err, fmt.Sprintf("unknown grade tag %q", req.Tag))
	}
	return value, nil
}

// lookupSubject resolves key either as a stored key or as a display name.
func lookupSubject(records models.RecordSet, id, key string) (models.Student, string, error) {
	student, ok := records[id]
	if !ok {
		return models.Student{}, "", studentNotFound()
	}
	if resolved, ok := student.ResolveSubjectKey(key); ok {
		return student, resolved, nil
	}
	return models.Student{}, "", appErrors.Clone(appErrors.ErrNotFound, "subject not found")
}

func normalizeStudentRequest(req dto.StudentRequest) dto.StudentRequest {
	req.Name = strings.TrimSpace(req.Name)
	req.Class = strings.TrimSpace(req.Class)
	return req
}

func studentNotFound() error {
	return appErrors.Clone(appErrors.ErrNotFound, "student not found")
}

func gradeNotFound(index int) error {
	return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("grade %d not found", index))
}
