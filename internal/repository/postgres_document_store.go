package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
)

const (
	createDocumentsTable = `CREATE TABLE IF NOT EXISTS record_documents (
	name TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	selectDocument = `SELECT payload FROM record_documents WHERE name = $1`
	upsertDocument = `INSERT INTO record_documents (name, payload, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
	renameDocument = `UPDATE record_documents SET name = $1, updated_at = $2 WHERE name = $3`
)

// PostgresDocumentStore keeps the record document in a single row of the
// record_documents table.
type PostgresDocumentStore struct {
	db       *sqlx.DB
	name     string
	observer StoreObserver
	logger   *zap.Logger
	now      func() time.Time
}

// NewPostgresDocumentStore constructs a store for the named document row.
func NewPostgresDocumentStore(db *sqlx.DB, name string, observer StoreObserver, logger *zap.Logger) *PostgresDocumentStore {
	if name == "" {
		name = "noten_db"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresDocumentStore{db: db, name: name, observer: observer, logger: logger, now: time.Now}
}

// EnsureSchema creates the backing table when missing.
func (s *PostgresDocumentStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createDocumentsTable); err != nil {
		return fmt.Errorf("create record_documents table: %w", err)
	}
	return nil
}

// Load reads the document row. A missing row yields an empty record set; an
// unreadable payload is renamed to a quarantine row and reported as a parse
// error alongside an empty record set.
func (s *PostgresDocumentStore) Load(ctx context.Context) (models.RecordSet, error) {
	defer observe(s.observer, "load", time.Now())

	var payload string
	if err := s.db.GetContext(ctx, &payload, selectDocument, s.name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.NewRecordSet(), nil
		}
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to read record document")
	}

	records, err := DecodeDocument([]byte(payload))
	if err != nil {
		now := s.now().UTC()
		target := quarantineName(s.name, now)
		if _, renameErr := s.db.ExecContext(ctx, renameDocument, target, now, s.name); renameErr != nil {
			s.logger.Error("failed to quarantine record document", zap.String("document", s.name), zap.Error(renameErr))
			return models.NewRecordSet(), appErrors.WrapAs(appErrors.ErrParse, err, "record document unreadable")
		}
		s.logger.Warn("record document quarantined", zap.String("document", s.name), zap.String("quarantine", target), zap.Error(err))
		return models.NewRecordSet(), appErrors.WrapAs(appErrors.ErrParse, err, "record document unreadable; moved to "+target)
	}
	return records, nil
}

// Save upserts the whole document.
func (s *PostgresDocumentStore) Save(ctx context.Context, records models.RecordSet) error {
	defer observe(s.observer, "save", time.Now())

	payload, err := EncodeDocument(records)
	if err != nil {
		return appErrors.WrapAs(appErrors.ErrInternal, err, "failed to encode record document")
	}
	if _, err := s.db.ExecContext(ctx, upsertDocument, s.name, string(payload), s.now().UTC()); err != nil {
		return appErrors.WrapAs(appErrors.ErrInternal, err, "failed to write record document")
	}
	return nil
}
