package sheetio

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadRows loads an input block from a .csv, .xlsx or .json file. For xlsx
// the named sheet is read, or the first sheet when sheet is empty. Empty
// cells are returned as nil and rows are padded to the widest row.
func ReadRows(path, sheet string) ([][]interface{}, error) {
	if path == "" {
		return nil, fmt.Errorf("file path is empty")
	}

	var (
		rows [][]interface{}
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(path, sheet)
	case ".json":
		rows, err = readJSON(path)
	default:
		return nil, fmt.Errorf("unsupported input format %q", ext)
	}
	if err != nil {
		return nil, err
	}
	return pad(trimEmptyRows(rows)), nil
}

func readCSV(path string) ([][]interface{}, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return fromStrings(records), nil
}

func readXLSX(path, sheet string) ([][]interface{}, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("no sheets found in XLSX file")
		}
		sheet = sheets[0]
	}
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return fromStrings(records), nil
}

func readJSON(path string) ([][]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rows [][]interface{}
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("parse json rows: %w", err)
	}
	return rows, nil
}

func fromStrings(records [][]string) [][]interface{} {
	rows := make([][]interface{}, 0, len(records))
	for _, record := range records {
		row := make([]interface{}, len(record))
		for i, cell := range record {
			if strings.TrimSpace(cell) != "" {
				row[i] = cell
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func trimEmptyRows(rows [][]interface{}) [][]interface{} {
	end := len(rows)
	for end > 0 && isEmptyRow(rows[end-1]) {
		end--
	}
	return rows[:end]
}

func isEmptyRow(row []interface{}) bool {
	for _, cell := range row {
		if cell != nil {
			return false
		}
	}
	return true
}

func pad(rows [][]interface{}) [][]interface{} {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	for i, row := range rows {
		if len(row) < width {
			padded := make([]interface{}, width)
			copy(padded, row)
			rows[i] = padded
		}
	}
	return rows
}
