package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
	"github.com/noah-isme/gradebook-api/pkg/storage"
)

// FileDocumentStore keeps the record document as a JSON file on local disk.
type FileDocumentStore struct {
	files    *storage.LocalStorage
	name     string
	observer StoreObserver
	logger   *zap.Logger
	now      func() time.Time
}

// NewFileDocumentStore prepares the directory holding path and returns a store
// for the file itself.
func NewFileDocumentStore(path string, observer StoreObserver, logger *zap.Logger) (*FileDocumentStore, error) {
	if path == "" {
		path = "noten_db.json"
	}
	files, err := storage.NewLocalStorage(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileDocumentStore{
		files:    files,
		name:     filepath.Base(path),
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Path returns the location of the document on disk.
func (s *FileDocumentStore) Path() string {
	return s.files.Path(s.name)
}

// Load reads the document. A missing file yields an empty record set. An
// unreadable file is moved aside and an empty record set is returned together
// with an error matching appErrors.ErrParse.
func (s *FileDocumentStore) Load(ctx context.Context) (models.RecordSet, error) {
	defer observe(s.observer, "load", time.Now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := s.files.ReadFile(s.name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.NewRecordSet(), nil
		}
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to read record document")
	}

	records, err := DecodeDocument(data)
	if err != nil {
		target := quarantineName(s.name, s.now())
		if renameErr := s.files.Rename(s.name, target); renameErr != nil {
			s.logger.Error("failed to quarantine record document", zap.String("path", s.Path()), zap.Error(renameErr))
			return models.NewRecordSet(), appErrors.WrapAs(appErrors.ErrParse, err, "record document unreadable")
		}
		s.logger.Warn("record document quarantined", zap.String("path", s.Path()), zap.String("quarantine", s.files.Path(target)), zap.Error(err))
		return models.NewRecordSet(), appErrors.WrapAs(appErrors.ErrParse, err, "record document unreadable; moved to "+target)
	}
	return records, nil
}

// Save overwrites the document atomically.
func (s *FileDocumentStore) Save(ctx context.Context, records models.RecordSet) error {
	defer observe(s.observer, "save", time.Now())
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := EncodeDocument(records)
	if err != nil {
		return appErrors.WrapAs(appErrors.ErrInternal, err, "failed to encode record document")
	}
	if err := s.files.Replace(s.name, payload); err != nil {
		return appErrors.WrapAs(appErrors.ErrInternal, err, "failed to write record document")
	}
	return nil
}
