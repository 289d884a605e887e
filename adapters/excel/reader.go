package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"echidna/internal/utilities"
	"echidna/ports"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// DataReader reads event lists from Excel or CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	sheet    string
	logger   *zap.Logger
}

// NewDataReader creates a reader for an Excel or CSV event list. Excel files
// are read from their first sheet.
func NewDataReader(filePath string, logger *zap.Logger) *DataReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType, logger: logger}
}

var _ ports.EventReader = (*DataReader)(nil)

// WithSheet reads the named sheet instead of the first one
func (r *DataReader) WithSheet(sheet string) *DataReader {
	r.sheet = sheet
	return r
}

// ReadData reads the file into rows keyed by header
func (r *DataReader) ReadData() (*ExcelData, error) {
	r.logger.Debug("reading event file", zap.String("type", r.fileType), zap.String("path", r.filePath))

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

// readExcelData reads the first sheet of the workbook
func (r *DataReader) readExcelData() (*ExcelData, error) {
	timer := utilities.StartTimer()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheet, err)
	}
	timer.StopAndLog(r.logger, "excel sheet read", zap.String("sheet", sheet), zap.Int("rows", len(rows)))

	if len(rows) < 2 {
		return nil, fmt.Errorf("Excel file must have at least a header row and one data row")
	}

	return r.processRows(rows)
}

// readCSVData reads CSV data into structured format
func (r *DataReader) readCSVData() (*ExcelData, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	timer := utilities.StartTimer()
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	timer.StopAndLog(r.logger, "csv file read", zap.Int("rows", len(rows)))

	if len(rows) < 2 {
		return nil, fmt.Errorf("CSV file must have at least a header row and one data row")
	}

	return r.processRows(rows)
}

// processRows converts raw string rows into ExcelData format
func (r *DataReader) processRows(rows [][]string) (*ExcelData, error) {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.ToLower(strings.TrimSpace(header))
	}

	var dataRows []RawRowData
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		rowData := make(RawRowData)
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}

	r.logger.Debug("event file processed",
		zap.String("type", r.fileType), zap.Int("columns", len(headers)), zap.Int("rows", len(dataRows)))

	return &ExcelData{
		Headers: headers,
		Rows:    dataRows,
	}, nil
}

// ReadEvents reads the file and parses energy, radius, time and optional
// weight columns. Missing weights default to one.
func (r *DataReader) ReadEvents() ([]ports.Event, error) {
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}

	energyCol, err := detectColumn(data.Headers, energyHeaders)
	if err != nil {
		return nil, err
	}
	radiusCol, err := detectColumn(data.Headers, radiusHeaders)
	if err != nil {
		return nil, err
	}
	timeCol, err := detectColumn(data.Headers, timeHeaders)
	if err != nil {
		return nil, err
	}
	weightCol, _ := detectColumn(data.Headers, weightHeaders)

	events := make([]ports.Event, 0, len(data.Rows))
	for i, row := range data.Rows {
		line := i + 2 // header is row 1
		ev := ports.Event{Weight: 1}
		if ev.Energy, err = parseCell(row, energyCol, line); err != nil {
			return nil, err
		}
		if ev.Radius, err = parseCell(row, radiusCol, line); err != nil {
			return nil, err
		}
		if ev.Time, err = parseCell(row, timeCol, line); err != nil {
			return nil, err
		}
		if weightCol != "" && row[weightCol] != "" {
			if ev.Weight, err = parseCell(row, weightCol, line); err != nil {
				return nil, err
			}
		}
		events = append(events, ev)
	}
	return events, nil
}

// detectColumn returns the first header matching one of the candidates
func detectColumn(headers, candidates []string) (string, error) {
	for _, c := range candidates {
		for _, h := range headers {
			if h == c {
				return h, nil
			}
		}
	}
	return "", fmt.Errorf("no column named any of %v", candidates)
}

func parseCell(row RawRowData, column string, line int) (float64, error) {
	v, err := strconv.ParseFloat(row[column], 64)
	if err != nil {
		return 0, fmt.Errorf("row %d column %s: %w", line, column, err)
	}
	return v, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
