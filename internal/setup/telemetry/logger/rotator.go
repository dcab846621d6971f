package logger

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Rotator is a log file writer that keeps only the most recent lines.
// Once twice the line cap has been written, the file is rewritten with the newest lines.
type Rotator struct {
	file     *os.File
	path     string
	maxLines int
	lines    [][]byte
	next     int
	filled   bool
	written  int
	mu       sync.Mutex
}

// OpenRotator opens or creates the log file at path.
func OpenRotator(path string, maxLines int) (*Rotator, error) {
	if maxLines <= 0 {
		maxLines = 100000
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file %s: %w", path, err)
	}

	return &Rotator{
		file:     file,
		path:     path,
		maxLines: maxLines,
		lines:    make([][]byte, maxLines),
	}, nil
}

// Write implements io.Writer.
func (r *Rotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.file.Write(p)
	if err != nil {
		return n, err
	}

	for line := range bytes.SplitSeq(bytes.TrimRight(p, "\n"), []byte("\n")) {
		if len(line) == 0 {
			continue
		}

		r.lines[r.next] = bytes.Clone(line)
		r.next = (r.next + 1) % r.maxLines
		if r.next == 0 {
			r.filled = true
		}
		r.written++
	}

	if r.written >= r.maxLines*2 {
		if err := r.rotate(); err != nil {
			return n, fmt.Errorf("failed to rotate log file: %w", err)
		}
	}

	return n, nil
}

// Sync flushes the underlying file.
func (r *Rotator) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.file.Sync()
}

// Close closes the underlying file.
func (r *Rotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.file.Close()
}

// tail returns the kept lines, oldest first.
func (r *Rotator) tail() [][]byte {
	if !r.filled {
		return r.lines[:r.next]
	}

	out := make([][]byte, 0, r.maxLines)
	out = append(out, r.lines[r.next:]...)
	out = append(out, r.lines[:r.next]...)

	return out
}

// rotate replaces the file with the kept lines through a temp file and rename.
func (r *Rotator) rotate() error {
	lines := r.tail()

	temp, err := os.CreateTemp(filepath.Dir(r.path), "temp-log-")
	if err != nil {
		return err
	}

	content := append(bytes.Join(lines, []byte("\n")), '\n')
	if _, err := temp.Write(content); err != nil {
		temp.Close()
		os.Remove(temp.Name())

		return err
	}

	if err := temp.Close(); err != nil {
		os.Remove(temp.Name())
		return err
	}

	r.file.Close()

	if err := os.Rename(temp.Name(), r.path); err != nil {
		return err
	}

	file, err := os.OpenFile(r.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	r.file = file
	r.written = len(lines)

	return nil
}
