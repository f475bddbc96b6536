package sheetio

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"mbsheets/internal/model"
)

// Output formats accepted by WriteGrid.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// DefaultSheet names the sheet written to xlsx output.
const DefaultSheet = "Sheet1"

// FormatFromPath infers the output format from a file extension.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".xlsx":
		return FormatXLSX
	default:
		return FormatJSON
	}
}

// WriteGrid encodes grid to w.
func WriteGrid(w io.Writer, format string, grid model.Grid) error {
	if grid == nil {
		grid = model.Grid{}
	}
	switch format {
	case "", FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(grid)
	case FormatCSV:
		writer := csv.NewWriter(w)
		for _, row := range grid {
			record := make([]string, len(row))
			for i, cell := range row {
				record[i] = cellString(cell)
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("write csv: %w", err)
			}
		}
		writer.Flush()
		return writer.Error()
	case FormatXLSX:
		return writeXLSX(w, grid)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// WriteGridFile writes grid to path in the format implied by its extension.
func WriteGridFile(path string, grid model.Grid) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := WriteGrid(file, FormatFromPath(path), grid); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func writeXLSX(w io.Writer, grid model.Grid) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range grid {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = xlsxValue(v)
		}
		if err := f.SetSheetRow(DefaultSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// xlsxValue keeps big integers as text so no precision is lost.
func xlsxValue(v interface{}) interface{} {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil && i < 1<<53 && i > -(1<<53) {
			return i
		}
		return n.String()
	default:
		return v
	}
}

func cellString(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
