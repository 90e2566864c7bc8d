package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/querydeck/querydeck/internal/dialect"
)

// SheetName is the single worksheet all spreadsheet exports write to.
const SheetName = "Query Results"

// Excel encodes a result set as a single-sheet XLSX workbook: bold
// header row, data from row 2, with booleans, numbers and temporals as
// native typed cells rather than text.
type Excel struct{}

func (Excel) Export(columns []string, rows []map[string]any) ([]byte, error) {
	unique := Disambiguate(columns)

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	dateFmt := "yyyy-mm-dd"
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
	if err != nil {
		return nil, fmt.Errorf("create date style: %w", err)
	}
	datetimeFmt := "yyyy-mm-dd hh:mm:ss"
	datetimeStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &datetimeFmt})
	if err != nil {
		return nil, fmt.Errorf("create datetime style: %w", err)
	}

	for i, name := range unique {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(SheetName, cell, name); err != nil {
			return nil, fmt.Errorf("write header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(SheetName, cell, cell, boldStyle); err != nil {
			return nil, fmt.Errorf("style header cell %s: %w", cell, err)
		}
	}

	for r, row := range rows {
		for i := range columns {
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return nil, err
			}

			var writeErr error
			switch val := cellValue(row, unique, i).(type) {
			case nil:
				// null stays an empty cell
			case bool:
				writeErr = f.SetCellValue(SheetName, cell, val)
			case int64:
				writeErr = f.SetCellValue(SheetName, cell, val)
			case float64:
				writeErr = f.SetCellValue(SheetName, cell, val)
			case dialect.Date:
				if writeErr = f.SetCellValue(SheetName, cell, val.Time); writeErr == nil {
					writeErr = f.SetCellStyle(SheetName, cell, cell, dateStyle)
				}
			case time.Time:
				if writeErr = f.SetCellValue(SheetName, cell, val); writeErr == nil {
					writeErr = f.SetCellStyle(SheetName, cell, cell, datetimeStyle)
				}
			case string:
				writeErr = f.SetCellValue(SheetName, cell, val)
			default:
				writeErr = f.SetCellValue(SheetName, cell, fmt.Sprintf("%v", val))
			}
			if writeErr != nil {
				return nil, fmt.Errorf("write cell %s: %w", cell, writeErr)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
