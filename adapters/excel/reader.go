package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"statcore/domain/dataset"
	"statcore/internal/errors"
)

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	config   ReaderConfig
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string, config ReaderConfig) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType, config: config}
}

// Read loads the file as a dataset
func (r *DataReader) Read(ctx context.Context) (*dataset.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}
	return ToDataset(data, r.config), nil
}

// ReadData reads data from Excel or CSV files into structured format
func (r *DataReader) ReadData() (*ExcelData, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.InvalidInput(fmt.Sprintf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath))
	}

	switch r.fileType {
	case "csv":
		file, err := os.Open(r.filePath)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open CSV file")
		}
		defer file.Close()
		return ReadCSVData(file)
	case "xlsx":
		return r.readExcelData()
	default:
		return nil, errors.InvalidInput("unsupported file type: " + r.fileType)
	}
}

func (r *DataReader) readExcelData() (*ExcelData, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open Excel file")
	}
	defer f.Close()

	sheet := r.config.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet %q", sheet)
	}
	return processRows(rows)
}

// ReadCSVData reads CSV text with a header row
func ReadCSVData(in io.Reader) (*ExcelData, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(errors.InvalidInput(err.Error()), "failed to read CSV")
	}
	return processRows(rows)
}

// processRows converts raw string rows into ExcelData format
func processRows(rows [][]string) (*ExcelData, error) {
	if len(rows) < 2 {
		return nil, errors.InvalidInput("file must have a header row and at least one data row")
	}

	headers := make([]string, len(rows[0]))
	seen := make(map[string]bool, len(headers))
	for i, header := range rows[0] {
		h := strings.TrimSpace(header)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		if seen[h] {
			return nil, errors.InvalidInput(fmt.Sprintf("duplicate column %q", h))
		}
		seen[h] = true
		headers[i] = h
	}

	dataRows := make([]RawRowData, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rowData := make(RawRowData, len(headers))
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}
	return &ExcelData{Headers: headers, Rows: dataRows}, nil
}

// InferColumnTypes classifies each column. A column with any non-missing cell
// that does not parse as a finite number is categorical.
func InferColumnTypes(data *ExcelData, config ReaderConfig) map[string]ColumnKind {
	missing := missingSet(config)
	kinds := make(map[string]ColumnKind, len(data.Headers))
	for _, h := range data.Headers {
		kind := ColumnEmpty
		for _, row := range data.Rows {
			cell := row[h]
			if missing[strings.ToLower(cell)] {
				continue
			}
			if _, ok := parseNumber(cell); !ok {
				kind = ColumnCategorical
				break
			}
			kind = ColumnNumeric
		}
		kinds[h] = kind
	}
	return kinds
}

// ToDataset converts raw rows into observation rows. Missing markers become
// absent cells.
func ToDataset(data *ExcelData, config ReaderConfig) *dataset.Dataset {
	missing := missingSet(config)
	kinds := InferColumnTypes(data, config)

	rows := make([]dataset.Row, len(data.Rows))
	for i, raw := range data.Rows {
		row := dataset.Row{Values: make(map[string]float64)}
		for _, h := range data.Headers {
			cell := raw[h]
			if missing[strings.ToLower(cell)] {
				continue
			}
			switch kinds[h] {
			case ColumnNumeric:
				v, _ := parseNumber(cell)
				row.Values[h] = v
			case ColumnCategorical:
				if row.Labels == nil {
					row.Labels = make(map[string]string)
				}
				row.Labels[h] = cell
			}
		}
		rows[i] = row
	}
	return dataset.New(data.Headers, rows)
}

func parseNumber(cell string) (float64, bool) {
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func missingSet(config ReaderConfig) map[string]bool {
	markers := config.MissingMarkers
	if markers == nil {
		markers = DefaultReaderConfig().MissingMarkers
	}
	set := make(map[string]bool, len(markers)+1)
	set[""] = true
	for _, m := range markers {
		set[strings.ToLower(strings.TrimSpace(m))] = true
	}
	return set
}
