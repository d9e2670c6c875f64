package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// WriteCSV writes a header line followed by every row. NULL cells are written empty.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write header for %q: %w", t.Name, err)
	}

	record := make([]string, len(t.Columns))
	for i, row := range t.Rows {
		for j, v := range row {
			record[j] = Format(v)
		}
		if len(record) == 1 && record[0] == "" {
			// a bare empty line would be skipped on read
			cw.Flush()
			if _, err := io.WriteString(w, "\"\"\n"); err != nil {
				return fmt.Errorf("write row %d for %q: %w", i, t.Name, err)
			}
			continue
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d for %q: %w", i, t.Name, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a CSV stream with a header line. Empty cells become NULL.
func ReadCSV(name string, r io.Reader) (*Table, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return NewTable(name, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header for %q: %w", name, err)
	}

	t := NewTable(name, header)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", name, err)
		}
		row := make([]any, len(rec))
		for i, s := range rec {
			if s == "" {
				row[i] = nil
			} else {
				row[i] = s
			}
		}
		if err := t.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// WriteGzipCSV writes the table as gzip-compressed CSV.
func WriteGzipCSV(w io.Writer, t *Table) error {
	zw := gzip.NewWriter(w)
	if err := WriteCSV(zw, t); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// ReadGzipCSV parses gzip-compressed CSV.
func ReadGzipCSV(name string, r io.Reader) (*Table, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open gzip stream for %q: %w", name, err)
	}
	defer zr.Close()
	return ReadCSV(name, zr)
}

// WriteFile writes a table to a CSV file.
func WriteFile(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile loads a CSV file into a table with the given name.
func ReadFile(name, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(name, f)
}

// WriteDir writes every table to <dir>/<table>.csv and returns the file paths by table.
func WriteDir(dir string, d *Dataset) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	files := make(map[string]string, d.Len())
	err := d.Each(func(t *Table) error {
		path := filepath.Join(dir, t.Name+".csv")
		if err := WriteFile(path, t); err != nil {
			return err
		}
		files[t.Name] = path
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
