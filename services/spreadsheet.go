package services

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"rental-digest/models"
)

const (
	spreadsheetSheet       = "Listings"
	spreadsheetContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var spreadsheetHeaders = []string{"Source", "Neighborhood", "Price", "Area", "Rooms", "Parking", "Link", "First seen"}

// SpreadsheetFilename names the attachment after the report's generation time.
func SpreadsheetFilename(r *models.Report) string {
	return fmt.Sprintf("digest_%s.xlsx", r.GeneratedAt.Format("20060102_1504"))
}

// BuildSpreadsheet renders the report's listings, in report order, as an
// xlsx workbook.
func BuildSpreadsheet(r *models.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", spreadsheetSheet); err != nil {
		return nil, fmt.Errorf("xlsx: rename sheet: %w", err)
	}

	for i, h := range spreadsheetHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("xlsx: header cell: %w", err)
		}
		if err := f.SetCellValue(spreadsheetSheet, cell, h); err != nil {
			return nil, fmt.Errorf("xlsx: header %s: %w", h, err)
		}
	}

	for i, l := range r.Listings {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("xlsx: row cell: %w", err)
		}
		row := []any{l.Source, l.Neighborhood, l.Price, l.Area, l.Rooms, l.ParkingSpaces, l.DetailURL,
			l.FirstSeenAt.UTC().Format("2006-01-02 15:04")}
		if err := f.SetSheetRow(spreadsheetSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("xlsx: row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx: write: %w", err)
	}
	return buf.Bytes(), nil
}
