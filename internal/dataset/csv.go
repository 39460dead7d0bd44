package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// CSVSink appends rows to a delimited file, one flushed and synced line per
// row so a crash loses at most the row in flight.
type CSVSink struct {
	Path    string
	Missing string

	f *os.File
	w *csv.Writer
}

func NewCSVSink(path, missing string) *CSVSink {
	if missing == "" {
		missing = DefaultMissing
	}
	return &CSVSink{Path: path, Missing: missing}
}

// Open writes the header to a new or empty file. An existing file must
// already carry the same header.
func (s *CSVSink) Open(_ context.Context, header []string) error {
	f, err := os.OpenFile(s.Path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	if info.Size() > 0 {
		existing, err := csv.NewReader(f).Read()
		if err != nil && !errors.Is(err, io.EOF) {
			f.Close()
			return fmt.Errorf("read header of %s: %w", s.Path, err)
		}
		if !slices.Equal(existing, header) {
			f.Close()
			return fmt.Errorf("%s has header %q, want %q", s.Path, strings.Join(existing, ","), strings.Join(header, ","))
		}
	}

	s.f = f
	s.w = csv.NewWriter(f)
	if info.Size() == 0 {
		return s.writeRecord(header)
	}
	return nil
}

func (s *CSVSink) Write(_ context.Context, row Row) error {
	if s.w == nil {
		return fmt.Errorf("csv sink %s is not open", s.Path)
	}
	return s.writeRecord(row.Record(s.Missing))
}

func (s *CSVSink) writeRecord(record []string) error {
	if err := s.w.Write(record); err != nil {
		return err
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return err
	}
	return s.f.Sync()
}

func (s *CSVSink) Close() error {
	if s.f == nil {
		return nil
	}
	s.w.Flush()
	err := s.f.Close()
	s.f, s.w = nil, nil
	return err
}
