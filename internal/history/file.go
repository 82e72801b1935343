package history

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileRecorder appends one JSON record per line to a file.
type FileRecorder struct {
	Path string
}

// Name returns the recorder name.
func (f *FileRecorder) Name() string {
	return "file"
}

// Record appends rec to the file, creating it and its directory as needed.
func (f *FileRecorder) Record(_ context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}

	file, err := os.OpenFile(f.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		_ = file.Close()
		return fmt.Errorf("write history file: %w", err)
	}
	return file.Close()
}

// Recent returns at most limit of the newest records in the file, newest
// first. The file holds the runs of a single project, so project is not
// consulted.
func (f *FileRecorder) Recent(_ context.Context, _ string, limit int) ([]Record, error) {
	records, err := ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	return Last(records, limit), nil
}

// ReadFile returns the records stored at path, oldest first. A missing file
// holds no records.
func ReadFile(path string) ([]Record, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var records []Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}
	return records, nil
}

// Last returns at most n of the newest records, newest first.
func Last(records []Record, n int) []Record {
	if n <= 0 || n > len(records) {
		n = len(records)
	}
	out := make([]Record, 0, n)
	for i := len(records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, records[i])
	}
	return out
}
