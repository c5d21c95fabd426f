package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-api/internal/grading"
	"github.com/noah-isme/gradebook-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
)

func newTransferForTest(t *testing.T, store *memoryStore, cfg TransferConfig) (*TransferService, *GradebookService) {
	t.Helper()
	gradebook := newGradebookForTest(t, store)
	return NewTransferService(gradebook, nil, nil, cfg, zap.NewNop()), gradebook
}

func TestTransferExportWritesBOMAndRows(t *testing.T) {
	store := &memoryStore{saved: statisticsFixture()}
	svc, _ := newTransferForTest(t, store, TransferConfig{})

	payload, err := svc.Export(context.Background())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(payload, []byte{0xEF, 0xBB, 0xBF}))

	lines := strings.Split(strings.TrimSpace(string(payload[3:])), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Schüler-ID,Name,Klasse,Fach,Note (Text),Note (Dezimal)", lines[0])
	assert.Equal(t, "s1,Anna,7b,Deutsch,5,5.0", lines[1])
	assert.Equal(t, "s1,Anna,7b,Mathe,1,1.0", lines[2])
	assert.Equal(t, "s2,Ben,7b,Mathe,2,2.0", lines[4])
}

func TestTransferExportImportRoundTrip(t *testing.T) {
	source, _ := newTransferForTest(t, &memoryStore{saved: statisticsFixture()}, TransferConfig{})
	payload, err := source.Export(context.Background())
	require.NoError(t, err)

	target, gradebook := newTransferForTest(t, &memoryStore{}, TransferConfig{})
	result, err := target.Import(context.Background(), bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, 4, result.RowsRead)
	assert.Equal(t, 4, result.GradesImported)
	assert.Equal(t, 2, result.StudentsCreated)
	assert.Equal(t, 3, result.SubjectsCreated)
	assert.Empty(t, result.Skipped)

	records := gradebook.Snapshot()
	require.Len(t, records, 2, "students without grades are not exported")
	assert.Equal(t, []grading.Value{100, 200}, records["s1"].Subjects["mathe"].Grades)
	assert.Equal(t, "7b", records["s2"].Class)
}

func TestTransferImportSkipsUnknownTagsAndExtendsExistingData(t *testing.T) {
	records := models.NewRecordSet()
	anna := models.NewStudent("Anna", "7b")
	anna.Subjects["mathe"] = models.Subject{Name: "Mathe", Grades: []grading.Value{100}}
	records["s1"] = anna
	store := &memoryStore{saved: records}
	svc, gradebook := newTransferForTest(t, store, TransferConfig{})
	savesBefore := store.saves

	csv := "student_id,name,class,subject,grade_tag\n" +
		"s1,Anders Name,9z,Mathe,2+\n" +
		"s1,Anna,7b,Mathe,7\n" +
		"s9,Neu,5c,Kunst Geschichte,1-\n" +
		",Niemand,,Mathe,1\n" +
		"s8,,,Mathe,1\n"
	result, err := svc.Import(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 5, result.RowsRead)
	assert.Equal(t, 2, result.GradesImported)
	assert.Equal(t, 1, result.StudentsCreated)
	assert.Equal(t, 1, result.SubjectsCreated)
	require.Len(t, result.Skipped, 3)
	assert.Equal(t, 2, result.Skipped[0].Row)
	assert.Equal(t, appErrors.ErrUnknownTag.Code, result.Skipped[0].Code)
	assert.Equal(t, appErrors.ErrImportRow.Code, result.Skipped[1].Code)

	assert.Equal(t, savesBefore+1, store.saves, "an import saves once")
	snapshot := gradebook.Snapshot()
	assert.Equal(t, "Anna", snapshot["s1"].Name, "existing students keep their data")
	assert.Equal(t, []grading.Value{100, 170}, snapshot["s1"].Subjects["mathe"].Grades)
	assert.Equal(t, []grading.Value{130}, snapshot["s9"].Subjects["kunst_geschichte"].Grades)
}

func TestTransferImportUnknownTagStillCreatesStudentAndSubject(t *testing.T) {
	svc, gradebook := newTransferForTest(t, &memoryStore{}, TransferConfig{})
	csv := "student_id,name,class,subject,grade_tag\n" +
		"s7,Neu,5c,Kunst,7\n"

	result, err := svc.Import(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, result.StudentsCreated)
	assert.Equal(t, 1, result.SubjectsCreated)
	assert.Zero(t, result.GradesImported)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, appErrors.ErrUnknownTag.Code, result.Skipped[0].Code)

	snapshot := gradebook.Snapshot()
	require.Contains(t, snapshot, "s7")
	assert.Equal(t, "Neu", snapshot["s7"].Name)
	assert.Equal(t, "5c", snapshot["s7"].Class)
	require.Contains(t, snapshot["s7"].Subjects, "kunst")
	assert.Equal(t, "Kunst", snapshot["s7"].Subjects["kunst"].Name)
	assert.Empty(t, snapshot["s7"].Subjects["kunst"].Grades)
}

func TestTransferImportExtendsLegacySubjectKeys(t *testing.T) {
	records := models.NewRecordSet()
	anna := models.NewStudent("Anna", "")
	anna.Subjects["deutsch__lk"] = models.Subject{Name: "Deutsch  LK", Grades: []grading.Value{200}}
	records["s1"] = anna
	svc, gradebook := newTransferForTest(t, &memoryStore{saved: records}, TransferConfig{})

	result, err := svc.Import(context.Background(), strings.NewReader("student_id,name,subject,grade_tag\ns1,Anna,Deutsch  LK,1\n"))
	require.NoError(t, err)
	assert.Zero(t, result.SubjectsCreated)

	subjects := gradebook.Snapshot()["s1"].Subjects
	assert.Len(t, subjects, 1)
	assert.Equal(t, []grading.Value{200, 100}, subjects["deutsch__lk"].Grades)
}

func TestTransferImportFallsBackToDecimalColumn(t *testing.T) {
	svc, gradebook := newTransferForTest(t, &memoryStore{}, TransferConfig{})
	csv := "Schüler-ID,Name,Fach,Note (Text),Note (Dezimal)\n" +
		"s1,Anna,Mathe,,\"2,3\"\n" +
		"s1,Anna,Mathe,,2.5\n"
	result, err := svc.Import(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, result.GradesImported)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, appErrors.ErrUnknownValue.Code, result.Skipped[0].Code)
	assert.Equal(t, []grading.Value{230}, gradebook.Snapshot()["s1"].Subjects["mathe"].Grades)
}

func TestTransferImportRejectsBrokenFiles(t *testing.T) {
	store := &memoryStore{}
	svc, _ := newTransferForTest(t, store, TransferConfig{MaxFileBytes: 64})
	ctx := context.Background()

	_, err := svc.Import(ctx, strings.NewReader(""))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Import(ctx, strings.NewReader("foo,bar\n1,2\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Contains(t, err.Error(), "Schüler-ID")

	_, err = svc.Import(ctx, strings.NewReader("student_id,name,subject,grade_tag\n"+strings.Repeat("s1,Anna,Mathe,1\n", 10)))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, 0, store.saves)
}

func TestTransferPreview(t *testing.T) {
	svc, gradebook := newTransferForTest(t, &memoryStore{}, TransferConfig{PreviewRows: 2})
	csv := "\ufeffstudent_id,name,subject,grade_tag\ns1,A,M,1\ns2,B,M,2\ns3,C,M,3\n"

	preview, err := svc.Preview(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, []string{"student_id", "name", "subject", "grade_tag"}, preview.Headers)
	assert.Len(t, preview.Rows, 2)
	assert.Equal(t, 3, preview.TotalRows)
	assert.Empty(t, gradebook.Snapshot(), "preview must not apply data")
}
