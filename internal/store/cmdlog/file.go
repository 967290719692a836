package cmdlog

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File is the on-disk command log: one REGUP line per record, CRLF
// terminated, rewritten in full on every save.
type File struct {
	path string
}

// NewFile returns the command log stored at path.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Name() string { return "cmdlog" }

func (f *File) Path() string { return f.path }

// Save replaces the file with lines. The new content is written next to the
// file and renamed over it, so a crash never leaves a truncated log.
func (f *File) Save(_ context.Context, lines []string) error {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteString("\r\n")
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp command log: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write command log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close command log: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace command log: %w", err)
	}
	return nil
}

// Load reads every non-empty line of the file. The whole file is read before
// returning, so replaying the lines may rewrite it safely. A missing file is
// reported with an error matching fs.ErrNotExist.
func (f *File) Load(_ context.Context) ([]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read command log: %w", err)
	}

	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan command log: %w", err)
	}
	return lines, nil
}
