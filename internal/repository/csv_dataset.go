package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"EconCast/internal/domain/models"
	domrepo "EconCast/internal/domain/repository"
	applogger "EconCast/pkg/logger"
)

// CSVDataset reads the dataset from a CSV file with a header row. The file is
// re-read on every call so edits show up in the next forecast.
type CSVDataset struct {
	path  string
	comma rune
	l     *applogger.Logger
}

func NewCSVDataset(path string) *CSVDataset {
	return &CSVDataset{path: path, comma: ','}
}

// SetLogger injects a structured logger.
func (d *CSVDataset) SetLogger(l *applogger.Logger) { d.l = l }

// SetComma changes the field delimiter.
func (d *CSVDataset) SetComma(r rune) { d.comma = r }

func (d *CSVDataset) Table(ctx context.Context) (*models.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	f, err := os.Open(d.path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(d.path), filepath.Ext(d.path))
	t, err := ReadCSVTable(f, name, d.comma)
	if err != nil {
		if d.l != nil {
			d.l.Error("csv dataset read error", applogger.String("path", d.path), applogger.Error(err))
		}
		return nil, err
	}
	if d.l != nil {
		d.l.Debug("csv dataset read ok",
			applogger.String("path", d.path),
			applogger.Int("rows", t.Len()),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return t, nil
}

// ReadCSVTable parses CSV with a header row into a Table. Cells stay strings;
// short rows leave their trailing columns unset.
func ReadCSVTable(r io.Reader, name string, comma rune) (*models.Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read csv header: empty input")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
	}

	t := &models.Table{Name: name, Columns: cols}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		row := make(models.Row, len(cols))
		for i, c := range cols {
			if i < len(rec) {
				row[c] = rec[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

var _ domrepo.DatasetReader = (*CSVDataset)(nil)
