package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"mbsheets/internal/model"
)

// JSONLSink appends query runs to a JSONL file.
type JSONLSink struct {
	path string
	mu   sync.Mutex
}

// NewJSONLSink creates a sink for the JSONL file at path.
func NewJSONLSink(path string) *JSONLSink {
	return &JSONLSink{path: path}
}

// PutRun appends run as one JSON line.
func (s *JSONLSink) PutRun(_ context.Context, run model.QueryRun) error {
	line, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal query run: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if _, err := writer.Write(line); err != nil {
		return fmt.Errorf("write query run: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// RecentRuns reads the file and returns the last limit runs, newest first.
// A missing file has no runs.
func (s *JSONLSink) RecentRuns(_ context.Context, limit int) ([]model.QueryRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.QueryRun{}, nil
		}
		return nil, fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	var runs []model.QueryRun
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var run model.QueryRun
		if err := json.Unmarshal(scanner.Bytes(), &run); err != nil {
			return nil, fmt.Errorf("parse query run on line %d: %w", line, err)
		}
		runs = append(runs, run)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read output file: %w", err)
	}

	if limit > 0 && len(runs) > limit {
		runs = runs[len(runs)-limit:]
	}
	out := make([]model.QueryRun, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		out = append(out, runs[i])
	}
	return out, nil
}
