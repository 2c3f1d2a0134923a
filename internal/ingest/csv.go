package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/fairyhunter13/glass-catalog-updater/internal/model"
)

// ReadCSV decodes rows using the combined CSV header. Columns missing from
// the header stay empty and are left out of each row's Columns.
func ReadCSV(r io.Reader) ([]model.Row, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	var rows []model.Row
	if err := gocsv.UnmarshalBytes(b, &rows); err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	header, err := csv.NewReader(bytes.NewReader(b)).Read()
	if err != nil {
		return rows, nil
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	if cols := model.PresentColumns(header); cols != nil {
		for i := range rows {
			rows[i].Columns = cols
		}
	}
	return rows, nil
}

// ReadCSVFile opens path and decodes it with ReadCSV.
func ReadCSVFile(path string) ([]model.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// WriteCSVFile writes rows with the combined CSV header.
func WriteCSVFile(path string, rows []model.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write csv %s: %w", path, err)
	}
	return f.Close()
}
