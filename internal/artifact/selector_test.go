package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "transformation.log")
	require.NoError(t, os.WriteFile(p, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return p
}

func TestSelect_ZeroErrorRecordsInFileOrder(t *testing.T) {
	p := writeLog(t, "a.dat | 0 |", "b.dat | 2 |", "c.cfg | 0 |")

	got, err := Select(p, DefaultSchema())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.dat", "c.cfg"}, got)
}

func TestSelect_MissingLogIsEmptyNotError(t *testing.T) {
	got, err := Select(filepath.Join(t.TempDir(), "nope.log"), DefaultSchema())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSelect_LongLinesDoNotStopTheScan(t *testing.T) {
	noise := strings.Repeat("#", 3*1024*1024)
	p := writeLog(t, "| a.dat | 0 |", noise, "| b.src | 0 |", "| c.cfg | 1 |")

	got, err := Select(p, DefaultSchema())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.dat", "b.src"}, got)

	n, err := CountRecords(p, DefaultSchema(), []string{".src", ".dat", ".cfg"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSelect_CRLFAndMissingFinalNewline(t *testing.T) {
	p := filepath.Join(t.TempDir(), "transformation.log")
	require.NoError(t, os.WriteFile(p, []byte("| a.dat | 0 |\r\n| b.dat | 0 |"), 0o644))

	got, err := Select(p, DefaultSchema())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.dat", "b.dat"}, got)
}

func TestSelect_TableLayoutAndDuplicates(t *testing.T) {
	p := writeLog(t,
		"Transformation report",
		"| File | Errors | Status |",
		"|------|--------|--------|",
		"| Orders.src | 0 | ok |",
		"| orders.cfg | 1 | warn |",
		"| 3 | customers.dat | 0 |",
		"| Orders.src | 0 | ok |",
		"| legacy.dat | 00 | ok |",
		"| broken.dat | n/a |",
	)

	got, err := Select(p, DefaultSchema())
	require.NoError(t, err)
	assert.Equal(t, []string{"Orders.src", "customers.dat", "Orders.src"}, got)
}

func TestCountRecords_DelimitedLinesWithRecognizedExtensions(t *testing.T) {
	p := writeLog(t,
		"| a.src | 0 |",
		"| b.dat | 4 |",
		"| c.cfg | 0 |",
		"| d.xml | 0 |",
		"e.dat without delimiter",
		"| header | errors |",
	)

	n, err := CountRecords(p, DefaultSchema(), []string{".src", ".dat", ".cfg"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = CountRecords(filepath.Join(t.TempDir(), "missing.log"), DefaultSchema(), []string{".dat"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSchema_ParseRecord(t *testing.T) {
	s := DefaultSchema()
	tcs := map[string]struct {
		line    string
		ok      bool
		name    string
		success bool
	}{
		"no leading delimiter": {line: "a.dat | 0 |", ok: true, name: "a.dat", success: true},
		"leading delimiter":    {line: "| a.dat | 0 |", ok: true, name: "a.dat", success: true},
		"nonzero errors":       {line: "| b.dat | 2 |", ok: true, name: "b.dat", success: false},
		"padded zero":          {line: "|b.dat|   0   |", ok: true, name: "b.dat", success: true},
		"no extension":         {line: "| README | 0 |", ok: false},
		"non integer count":    {line: "| a.dat | zero |", ok: false},
		"no delimiter":         {line: "a.dat 0", ok: false},
		"name with spaces":     {line: "| my file.cfg | 0 |", ok: true, name: "my file.cfg", success: true},
	}
	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			rec, ok := s.ParseRecord(tc.line)
			require.Equal(t, tc.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tc.name, rec.Name)
			assert.Equal(t, tc.success, rec.Success)
		})
	}
}

func TestSchema_CustomDelimiter(t *testing.T) {
	s := DefaultSchema()
	s.Delimiter = ";"
	rec, ok := s.ParseRecord("x.cfg;0;")
	require.True(t, ok)
	assert.True(t, rec.Success)

	_, ok = s.ParseRecord("| x.cfg | 0 |")
	assert.False(t, ok)
}
