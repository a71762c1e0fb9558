package activity

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/masig/pricebook/internal/shared"
)

func strPtr(s string) *string { return &s }

func TestExportFileName(t *testing.T) {
	ts := time.Date(2024, 6, 5, 14, 30, 9, 0, time.UTC)
	require.Equal(t, "activity-logs-2024-06-05_14-30-09.pdf", ExportFileName("", ts, FormatPDF))
	require.Equal(t, "activity-logs-2024-06-05_14-30-09.pdf", ExportFileName("all", ts, FormatPDF))
	require.Equal(t, "deleted-logs-2024-06-05_14-30-09.csv", ExportFileName("deleted", ts, FormatCSV))
}

func TestRenderCSVUsesPlaceholders(t *testing.T) {
	rep := Report{Rows: []Entry{
		{UserEmail: "a@masig.test", Action: ActionAdded, ProductCode: strPtr("P001"), ProductName: strPtr("Cement"), CreatedAt: at("2024-06-01T09:00:00Z")},
		{UserEmail: "b@masig.test", Action: ActionViewed, CreatedAt: at("2024-06-02T10:00:00Z")},
	}}
	var buf bytes.Buffer
	require.NoError(t, RenderCSV(&buf, rep))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, []string{"Timestamp", "User", "Action", "Product Code", "Product Name"}, records[0])
	require.Equal(t, []string{"2024-06-01 09:00:00", "a@masig.test", "Added", "P001", "Cement"}, records[1])
	require.Equal(t, []string{"2024-06-02 10:00:00", "b@masig.test", "Viewed", "N/A", "N/A"}, records[2])
}

func TestRenderPDFProducesDocument(t *testing.T) {
	var buf bytes.Buffer
	err := RenderPDF(&buf, Report{
		Company:     "MASIG",
		GeneratedAt: at("2024-06-05T08:00:00Z"),
		Rows:        sampleLogs(),
	})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestServiceExportFiltersAndNames(t *testing.T) {
	repo := &memoryRepo{entries: sampleLogs()}
	svc := NewService(repo, "MASIG", time.UTC)
	svc.now = func() time.Time { return time.Date(2024, 6, 5, 14, 30, 9, 0, time.UTC) }

	out, err := svc.Export(context.Background(), ListFilter{Action: "edited"}, "", FormatCSV)
	require.NoError(t, err)
	require.Equal(t, "edited-logs-2024-06-05_14-30-09.csv", out.FileName)
	require.Equal(t, "text/csv", out.ContentType)

	records, err := csv.NewReader(bytes.NewReader(out.Body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
}

func TestServiceExportEmptyIsValidationError(t *testing.T) {
	repo := &memoryRepo{entries: sampleLogs()}
	svc := NewService(repo, "MASIG", time.UTC)

	_, err := svc.Export(context.Background(), ListFilter{Action: "viewed"}, "", FormatPDF)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "no data to export")
}

func TestServiceListNewestFirstWithFilters(t *testing.T) {
	repo := &memoryRepo{entries: sampleLogs()}
	svc := NewService(repo, "MASIG", time.UTC)

	from := at("2024-06-02T00:00:00Z")
	got, err := svc.List(context.Background(), ListFilter{From: &from, Action: "edited"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.True(t, got[0].CreatedAt.After(got[1].CreatedAt))
}

func TestServiceListRejectsBadInput(t *testing.T) {
	svc := NewService(&memoryRepo{}, "MASIG", time.UTC)

	_, err := svc.List(context.Background(), ListFilter{Action: "archived"})
	require.ErrorIs(t, err, shared.ErrValidation)

	from, to := at("2024-06-05T00:00:00Z"), at("2024-06-01T00:00:00Z")
	_, err = svc.List(context.Background(), ListFilter{From: &from, To: &to})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestServiceListPropagatesStorageError(t *testing.T) {
	svc := NewService(&memoryRepo{err: errStorageDown}, "MASIG", time.UTC)
	_, err := svc.List(context.Background(), ListFilter{})
	require.ErrorIs(t, err, errStorageDown)
}

func TestClampLimit(t *testing.T) {
	require.Equal(t, defaultListLimit, clampLimit(0))
	require.Equal(t, 5, clampLimit(5))
	require.Equal(t, maxListLimit, clampLimit(maxListLimit+1))
}

func TestExportReachesOlderRangeBeyondListLimit(t *testing.T) {
	repo := &memoryRepo{}
	for i := 0; i < 10; i++ {
		repo.entries = append(repo.entries, Entry{UserEmail: "a@masig.test", Action: ActionEdited,
			CreatedAt: time.Date(2024, 1, 10, i, 0, 0, 0, time.UTC)})
	}
	for i := 0; i < maxListLimit; i++ {
		repo.entries = append(repo.entries, Entry{UserEmail: "b@masig.test", Action: ActionViewed,
			CreatedAt: time.Date(2024, 7, 1, 0, 0, i, 0, time.UTC)})
	}
	svc := NewService(repo, "MASIG", time.UTC)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)

	out, err := svc.Export(context.Background(), ListFilter{From: &from, To: &to}, "", FormatCSV)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(out.Body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 11)

	listed, err := svc.List(context.Background(), ListFilter{From: &from, To: &to, Limit: 5})
	require.NoError(t, err)
	require.Len(t, listed, 5)
	require.Equal(t, 9, listed[0].CreatedAt.Hour())
}
