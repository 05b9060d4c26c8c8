package tabular_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/raysh454/uiflow/internal/tabular"
)

func loginSheet() tabular.Memory {
	return tabular.Memory{
		"Login": {
			{"Field", "Value"},
			{nil, "  Username ", "qa.user"},
			{"Password", tabular.RichRuns{{Text: "s3"}, {Text: "cret"}}},
			{"Pin", 4242.0},
			{"Remember", true},
			{"Tenant", tabular.RichText{Text: "acme"}},
			{"Blank", nil},
			{"Last"},
		},
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()
	src := loginSheet()
	tests := []struct {
		key  string
		want string
	}{
		{"Username", "qa.user"},
		{"Password", "s3cret"},
		{"Pin", "4242"},
		{"Remember", "true"},
		{"Tenant", "acme"},
		{"Blank", ""},
		{"Last", ""},
		{"Field", "Value"},
	}
	for _, tt := range tests {
		got, err := tabular.Lookup(src, "Login", tt.key)
		require.NoError(t, err, tt.key)
		assert.Equal(t, tt.want, got, tt.key)
	}
}

func TestLookupErrors(t *testing.T) {
	t.Parallel()
	src := loginSheet()

	_, err := tabular.Lookup(src, "Login", "Nope")
	assert.ErrorIs(t, err, tabular.ErrKeyNotFound)

	// keys are matched exactly, only the cell side is trimmed
	_, err = tabular.Lookup(src, "Login", "username")
	assert.ErrorIs(t, err, tabular.ErrKeyNotFound)

	_, err = tabular.Lookup(src, "Login", "")
	assert.ErrorIs(t, err, tabular.ErrKeyNotFound)

	_, err = tabular.Lookup(src, "Missing", "Username")
	assert.ErrorIs(t, err, tabular.ErrSheetNotFound)
}

func TestLookupAll(t *testing.T) {
	t.Parallel()
	got, err := tabular.LookupAll(loginSheet(), "Login", "Username", "Password", "Ghost")
	assert.ErrorIs(t, err, tabular.ErrKeyNotFound)
	assert.Equal(t, map[string]string{"Username": "qa.user", "Password": "s3cret"}, got)
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	when := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		in   tabular.Cell
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{1.5, "1.5"},
		{3.0, "3"},
		{7, "7"},
		{false, "false"},
		{when, "2025-01-02T03:04:05Z"},
		{tabular.RichText{Text: "r"}, "r"},
		{&tabular.RichText{Text: "p"}, "p"},
		{tabular.RichRuns{{Text: "a"}, {Text: "b"}}, "ab"},
		{[]int{1}, "[1]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tabular.Normalize(tt.in))
	}
}

func writeWorkbook(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "Credentials"))
	require.NoError(t, f.SetCellValue("Credentials", "A1", "Username"))
	require.NoError(t, f.SetCellValue("Credentials", "B1", "admin@example.test"))
	require.NoError(t, f.SetCellValue("Credentials", "B2", " Password"))
	require.NoError(t, f.SetCellRichText("Credentials", "C2", []excelize.RichTextRun{
		{Text: "Pa"},
		{Text: "ss!", Font: &excelize.Font{Bold: true}},
	}))
	require.NoError(t, f.SetCellValue("Credentials", "A3", "Branch"))
	require.NoError(t, f.SetCellValue("Credentials", "B3", 17))
	require.NoError(t, f.SetCellValue("Credentials", "A4", "Active"))
	require.NoError(t, f.SetCellValue("Credentials", "B4", true))
	require.NoError(t, f.SetCellValue("Credentials", "A5", "Empty"))

	_, err := f.NewSheet("Invoices")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Invoices", "A1", "File"))
	require.NoError(t, f.SetCellValue("Invoices", "B1", "invoice-001.pdf"))

	path := filepath.Join(t.TempDir(), "TestData.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestWorkbookLookup(t *testing.T) {
	t.Parallel()
	path := writeWorkbook(t)
	wb, err := tabular.OpenXLSX(path)
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, []string{"Credentials", "Invoices"}, wb.SheetNames())

	got, err := tabular.LookupAll(wb, "Credentials", "Username", "Password", "Branch", "Active", "Empty")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Username": "admin@example.test",
		"Password": "Pass!",
		"Branch":   "17",
		"Active":   "true",
		"Empty":    "",
	}, got)

	sheet, err := wb.Sheet("Credentials")
	require.NoError(t, err)
	assert.IsType(t, tabular.RichRuns{}, sheet.Rows[1][2])
	assert.Equal(t, 17.0, sheet.Rows[2][1])

	_, err = wb.Sheet("Nope")
	assert.ErrorIs(t, err, tabular.ErrSheetNotFound)

	v, err := tabular.LookupFile(path, "Invoices", "File")
	require.NoError(t, err)
	assert.Equal(t, "invoice-001.pdf", v)
}

func TestOpenXLSXMissingFile(t *testing.T) {
	t.Parallel()
	_, err := tabular.OpenXLSX(filepath.Join(t.TempDir(), "absent.xlsx"))
	assert.Error(t, err)
}
