package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"candlescope/pkg/model"
)

// TimeLayout is how pattern times are written
const TimeLayout = "2006-01-02 15:04:05"

// Sink writes the detected patterns of one run
type Sink interface {
	// Ext is the file extension without the dot
	Ext() string
	Export(path string, events []model.PatternEvent) error
}

// New returns the sink for a format name ("csv" or "json")
func New(format string) (Sink, error) {
	switch format {
	case "csv":
		return CSVSink{}, nil
	case "json":
		return JSONSink{}, nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// FileName returns {ticker}_{tag}_{YYYYMMDD_HHMM}_patterns.{ext}
func FileName(ticker, tag string, last time.Time, ext string) string {
	return fmt.Sprintf("%s_%s_%s_patterns.%s", ticker, tag, last.Format("20060102_1504"), ext)
}

// EnsureDirs creates the output directories; existing ones are left alone
func EnsureDirs(dirs ...string) error {
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", d, err)
		}
	}
	return nil
}

// CSVSink writes a Time,Pattern table
type CSVSink struct{}

func (CSVSink) Ext() string { return "csv" }

func (CSVSink) Export(path string, events []model.PatternEvent) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Time", "Pattern"}); err != nil {
		return err
	}
	for _, ev := range events {
		if err := w.Write([]string{ev.Time.Format(TimeLayout), string(ev.Kind)}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encoding csv: %w", err)
	}
	return writeFile(path, buf.Bytes())
}

// JSONSink writes an array of {time, pattern} objects
type JSONSink struct{}

func (JSONSink) Ext() string { return "json" }

type jsonRow struct {
	Time    string `json:"time"`
	Pattern string `json:"pattern"`
}

func (JSONSink) Export(path string, events []model.PatternEvent) error {
	rows := make([]jsonRow, len(events))
	for i, ev := range events {
		rows[i] = jsonRow{Time: ev.Time.Format(TimeLayout), Pattern: string(ev.Kind)}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// writeFile writes through a temp file so a failed export leaves nothing behind
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
