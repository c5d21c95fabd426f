package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-api/internal/grading"
	"github.com/noah-isme/gradebook-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
)

type recordingObserver struct {
	mu         sync.Mutex
	operations []string
}

func (o *recordingObserver) ObserveStoreOperation(operation string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.operations = append(o.operations, operation)
}

func sampleRecords() models.RecordSet {
	records := models.NewRecordSet()
	anna := models.NewStudent("Anna Müller", "7b")
	anna.Subjects["mathe"] = models.Subject{Name: "Mathe", Grades: []grading.Value{130, 230}}
	anna.Subjects["kunst"] = models.NewSubject("Kunst")
	records["schueler_1_20240101120000"] = anna
	records["schueler_2_20240101120500"] = models.NewStudent("Ben <B>", "")
	return records
}

func TestEncodeDocumentFormatting(t *testing.T) {
	payload, err := EncodeDocument(sampleRecords())
	require.NoError(t, err)
	text := string(payload)

	assert.Contains(t, text, "\n  \"schueler_1_20240101120000\": {")
	assert.Contains(t, text, "Anna Müller", "non-ASCII must not be escaped")
	assert.Contains(t, text, "Ben <B>", "HTML characters must not be escaped")
	assert.Contains(t, text, "\"grades\": []")
	assert.Contains(t, text, "\"subjects\": {}")
	assert.Contains(t, text, "1.3,")
	assert.NotContains(t, text, "null")
	assert.Less(t, strings.Index(text, "\"kunst\""), strings.Index(text, "\"mathe\""), "keys are sorted")
}

func TestDecodeDocumentRoundTrip(t *testing.T) {
	original := sampleRecords()
	payload, err := EncodeDocument(original)
	require.NoError(t, err)

	decoded, err := DecodeDocument(payload)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestDecodeDocumentRejectsInvalidPayloads(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"array":        `[]`,
		"garbage":      `{"a": `,
		"non member":   `{"s1": {"name": "A", "class": "", "subjects": {"m": {"name": "M", "grades": [2.5]}}}}`,
		"off scale":    `{"s1": {"name": "A", "class": "", "subjects": {"m": {"name": "M", "grades": [2.304, 0.996]}}}}`,
		"missing name": `{"s1": {"name": "", "class": "", "subjects": {}}}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeDocument([]byte(payload))
			assert.Error(t, err)
		})
	}
}

func TestDecodeDocumentFillsMissingCollections(t *testing.T) {
	records, err := DecodeDocument([]byte(`{"s1": {"name": "A", "subjects": {"m": {"name": "M"}}}}`))
	require.NoError(t, err)
	require.NotNil(t, records["s1"].Subjects["m"].Grades)
	assert.Empty(t, records["s1"].Subjects["m"].Grades)
}

func TestFileDocumentStoreMissingFileIsEmpty(t *testing.T) {
	store, err := NewFileDocumentStore(filepath.Join(t.TempDir(), "noten_db.json"), nil, nil)
	require.NoError(t, err)

	records, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFileDocumentStoreSaveThenLoad(t *testing.T) {
	dir := t.TempDir()
	observer := &recordingObserver{}
	store, err := NewFileDocumentStore(filepath.Join(dir, "noten_db.json"), observer, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleRecords()))

	records, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), records)
	assert.Equal(t, []string{"save", "load"}, observer.operations)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFileDocumentStoreQuarantinesCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noten_db.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store, err := NewFileDocumentStore(path, nil, nil)
	require.NoError(t, err)
	store.now = func() time.Time { return time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC) }

	records, err := store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrParse))
	assert.NotNil(t, records)
	assert.Empty(t, records)

	quarantined, readErr := os.ReadFile(filepath.Join(dir, "noten_db.json.corrupt-20240301T083000Z"))
	require.NoError(t, readErr)
	assert.Equal(t, "{not json", string(quarantined))

	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))

	require.NoError(t, store.Save(context.Background(), records))
	reloaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reloaded)
}

func TestFileDocumentStoreHonoursCancelledContext(t *testing.T) {
	store, err := NewFileDocumentStore(filepath.Join(t.TempDir(), "db.json"), nil, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Save(ctx, sampleRecords()), context.Canceled)
}

func TestPostgresDocumentStoreEnsureSchema(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS record_documents")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, NewPostgresDocumentStore(db, "", nil, nil).EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDocumentStoreLoadMissingRow(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM record_documents WHERE name = $1")).
		WithArgs("noten_db").
		WillReturnError(sql.ErrNoRows)

	records, err := NewPostgresDocumentStore(db, "noten_db", nil, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDocumentStoreSaveAndLoad(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	store := NewPostgresDocumentStore(db, "noten_db", nil, nil)

	payload, err := EncodeDocument(sampleRecords())
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO record_documents (name, payload, updated_at) VALUES ($1, $2, $3) ON CONFLICT (name) DO UPDATE")).
		WithArgs("noten_db", string(payload), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Save(context.Background(), sampleRecords()))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM record_documents WHERE name = $1")).
		WithArgs("noten_db").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(string(payload)))
	records, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDocumentStoreQuarantinesCorruptRow(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	store := NewPostgresDocumentStore(db, "noten_db", nil, nil)
	store.now = func() time.Time { return time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC) }

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM record_documents WHERE name = $1")).
		WithArgs("noten_db").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow("{broken"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE record_documents SET name = $1, updated_at = $2 WHERE name = $3")).
		WithArgs("noten_db.corrupt-20240301T083000Z", sqlmock.AnyArg(), "noten_db").
		WillReturnResult(sqlmock.NewResult(0, 1))

	records, err := store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrParse))
	assert.Empty(t, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryCacheRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryCacheRepository(time.Minute, time.Minute)

	var out map[string]int
	assert.True(t, errors.Is(repo.Get(ctx, "stats:class", &out), appErrors.ErrCacheMiss))

	value := map[string]int{"students": 2}
	require.NoError(t, repo.Set(ctx, "stats:class", value, 0))
	require.NoError(t, repo.Set(ctx, "other", value, time.Minute))
	value["students"] = 5

	require.NoError(t, repo.Get(ctx, "stats:class", &out))
	assert.Equal(t, 2, out["students"])

	require.NoError(t, repo.DeleteByPattern(ctx, "stats:*"))
	assert.True(t, errors.Is(repo.Get(ctx, "stats:class", &out), appErrors.ErrCacheMiss))
	require.NoError(t, repo.Get(ctx, "other", &out))

	assert.Error(t, repo.DeleteByPattern(ctx, "["))
}

func TestCacheRepositoryWithoutClientMisses(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var out string
	assert.True(t, errors.Is(repo.Get(context.Background(), "k", &out), appErrors.ErrCacheMiss))
	assert.NoError(t, repo.Set(context.Background(), "k", "v", time.Minute))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "*"))
	assert.NoError(t, repo.Close())
}
