package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrEmptySeedPath is returned when a seed file path is empty.
var ErrEmptySeedPath = errors.New("seed file path must not be empty")

// ReadCSV reads every record of r as one group. Records may have
// different field counts and bare quotes are accepted, since seed lists
// are usually exported by hand from other tools.
func ReadCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var groups [][]string
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return groups, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV seed: %w", err)
		}
		groups = append(groups, record)
	}
}

// ReadXLSX reads every row of every sheet of the workbook in r as one group.
func ReadXLSX(r io.Reader) (groups [][]string, err error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX seed: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close XLSX seed: %w", cerr)
		}
	}()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
		}
		groups = append(groups, rows...)
	}
	return groups, nil
}

// ReadFile reads a seed file. Files ending in .xlsx are read as
// workbooks; everything else is read as CSV, which also covers plain
// one-URL-per-line lists.
func ReadFile(path string) ([][]string, error) {
	if path == "" {
		return nil, ErrEmptySeedPath
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	var groups [][]string
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		groups, err = ReadXLSX(f)
	} else {
		groups, err = ReadCSV(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return groups, nil
}

// ReadFiles reads every seed file in order and concatenates their groups.
// It stops at the first unreadable file.
func ReadFiles(paths []string) ([][]string, error) {
	var groups [][]string
	for _, p := range paths {
		g, err := ReadFile(p)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g...)
	}
	return groups, nil
}
