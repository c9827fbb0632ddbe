package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candlescope/pkg/model"
)

var events = []model.PatternEvent{
	{Time: time.Date(2024, 1, 15, 9, 31, 0, 0, time.UTC), Kind: model.PatternDoji},
	{Time: time.Date(2024, 1, 15, 9, 45, 0, 0, time.UTC), Kind: model.PatternHammer},
	{Time: time.Date(2024, 1, 15, 9, 45, 0, 0, time.UTC), Kind: model.PatternEngulfing},
}

func TestCSVSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.csv")
	require.NoError(t, CSVSink{}.Export(path, events))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Time,Pattern\n"+
		"2024-01-15 09:31:00,Doji\n"+
		"2024-01-15 09:45:00,Hammer\n"+
		"2024-01-15 09:45:00,Engulfing\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file cleaned up")
}

func TestJSONSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json")
	require.NoError(t, JSONSink{}.Export(path, events[:1]))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"time":"2024-01-15 09:31:00","pattern":"Doji"}]`, string(data))
}

func TestNew(t *testing.T) {
	s, err := New("csv")
	require.NoError(t, err)
	assert.Equal(t, "csv", s.Ext())

	s, err = New("json")
	require.NoError(t, err)
	assert.Equal(t, "json", s.Ext())

	_, err = New("xlsx")
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	last := time.Date(2024, 1, 15, 15, 59, 0, 0, time.UTC)
	assert.Equal(t, "BBB_Stock_20240115_1559_patterns.csv", FileName("BBB", "Stock", last, "csv"))
}

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	charts := filepath.Join(root, "charts")
	patterns := filepath.Join(root, "nested", "patterns")

	require.NoError(t, EnsureDirs(charts, patterns))
	require.NoError(t, EnsureDirs(charts, patterns), "second call is a no-op")
	assert.DirExists(t, charts)
	assert.DirExists(t, patterns)
}

func TestExportMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "p.csv")
	assert.Error(t, CSVSink{}.Export(path, events))
	assert.NoFileExists(t, path)
}
