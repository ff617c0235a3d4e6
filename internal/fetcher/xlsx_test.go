package fetcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

// createTestXLSX writes a workbook with one sheet per entry. Cells holding a
// float64 or int are written as numbers, everything else as strings.
func createTestXLSX(t *testing.T, sheets []string, data map[string][][]any) string {
	t.Helper()
	f := xlsx.NewFile()
	for _, name := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range data[name] {
			row := sheet.AddRow()
			for _, v := range rowData {
				cell := row.AddCell()
				switch v := v.(type) {
				case float64:
					cell.SetFloat(v)
				case int:
					cell.SetInt(v)
				default:
					cell.SetString(v.(string))
				}
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX_Basic(t *testing.T) {
	path := createTestXLSX(t, []string{"Sheet1"}, map[string][][]any{
		"Sheet1": {
			{"Transaction_ID", "Amount", "Vendor"},
			{"T1", 150000, "Acme"},
			{"T2", 49.5, "ShadyCorp"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Transaction_ID", "Amount", "Vendor"}, rows[0])
	assert.Equal(t, []string{"T1", "150000", "Acme"}, rows[1])
	assert.Equal(t, []string{"T2", "49.5", "ShadyCorp"}, rows[2])
}

func TestReadXLSX_SkipRows(t *testing.T) {
	path := createTestXLSX(t, []string{"Sheet1"}, map[string][][]any{
		"Sheet1": {
			{"Header1", "Header2"},
			{"a", "b"},
			{"c", "d"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{SkipRows: 1})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"a", "b"}, rows[0])
	assert.Equal(t, []string{"c", "d"}, rows[1])
}

func TestReadXLSX_SheetSelection(t *testing.T) {
	path := createTestXLSX(t, []string{"First", "Second"}, map[string][][]any{
		"First":  {{"a", "b"}},
		"Second": {{"x", "y"}, {"1", "2"}},
	})

	rows, err := ReadXLSX(path, XLSXOptions{SheetName: "Second"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"x", "y"}, rows[0])

	rows, err = ReadXLSX(path, XLSXOptions{SheetIndex: 1})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	names, err := SheetNames(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"First", "Second"}, names)
}

func TestReadXLSX_SheetErrors(t *testing.T) {
	path := createTestXLSX(t, []string{"Sheet1"}, map[string][][]any{
		"Sheet1": {{"a"}},
	})

	_, err := ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = ReadXLSX(path, XLSXOptions{SheetIndex: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")

	_, err = ReadXLSX(path, XLSXOptions{SheetIndex: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadXLSX_TrailingBlankCellsDropped(t *testing.T) {
	path := createTestXLSX(t, []string{"Sheet1"}, map[string][][]any{
		"Sheet1": {{"a", "", "b", "", "  "}},
	})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"a", "", "b"}, rows[0])
}

func TestReadXLSX_FileNotFound(t *testing.T) {
	_, err := ReadXLSX(filepath.Join(t.TempDir(), "missing.xlsx"), XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open file")

	_, err = SheetNames(filepath.Join(t.TempDir(), "missing.xlsx"))
	require.Error(t, err)
}

func TestReadXLSX_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip archive"), 0o644))

	_, err := ReadXLSX(path, XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open file")
}

func TestReadXLSX_EmptySheet(t *testing.T) {
	path := createTestXLSX(t, []string{"Empty"}, map[string][][]any{})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}
