// Package bom parses bill-of-materials files into enrichment jobs.
package bom

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/bom-enrich/internal/model"
)

// LineItem is one parsed BOM row.
type LineItem struct {
	MPN          string
	Manufacturer string
	Quantity     int
}

// header names accepted for each column, lowercased.
var columnAliases = map[string][]string{
	"mpn":          {"mpn", "part number", "part_number", "partnumber", "manufacturer part number", "part no", "part no."},
	"manufacturer": {"manufacturer", "mfr", "mfg", "maker", "brand"},
	"quantity":     {"quantity", "qty", "count"},
}

// ParseFile dispatches on the file extension.
func ParseFile(path string) ([]LineItem, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "bom: open csv")
		}
		defer f.Close()
		return ParseCSV(f)
	case ".xlsx":
		return ParseXLSX(path)
	default:
		return nil, eris.Errorf("bom: unsupported file type %q", filepath.Ext(path))
	}
}

// ParseCSV reads BOM rows from CSV. The first row must be a header naming
// at least the MPN column; manufacturer and quantity are optional.
func ParseCSV(r io.Reader) ([]LineItem, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "bom: read csv header")
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var items []LineItem
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "bom: read csv row")
		}
		if item, ok := rowToItem(row, cols); ok {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return nil, eris.New("bom: no line items found")
	}
	return items, nil
}

// ParseXLSX reads BOM rows from the first sheet of an XLSX workbook.
func ParseXLSX(path string) ([]LineItem, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "bom: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("bom: workbook has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("bom: sheet is empty")
	}

	cols, err := mapColumns(rowToStrings(sheet.Rows[0]))
	if err != nil {
		return nil, err
	}

	var items []LineItem
	for _, row := range sheet.Rows[1:] {
		if item, ok := rowToItem(rowToStrings(row), cols); ok {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return nil, eris.New("bom: no line items found")
	}
	return items, nil
}

// Jobs converts parsed line items into enrichment jobs for one BOM.
func Jobs(bomID string, items []LineItem) []model.EnrichmentJob {
	now := time.Now()
	jobs := make([]model.EnrichmentJob, len(items))
	for i, item := range items {
		jobs[i] = model.EnrichmentJob{
			BOMID:        bomID,
			ItemID:       uuid.NewString(),
			MPN:          item.MPN,
			Manufacturer: item.Manufacturer,
			Quantity:     item.Quantity,
			RequestedAt:  now,
		}
	}
	return jobs
}

type columnMap struct {
	mpn          int
	manufacturer int
	quantity     int
}

func mapColumns(header []string) (columnMap, error) {
	cols := columnMap{mpn: -1, manufacturer: -1, quantity: -1}
	for i, raw := range header {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case cols.mpn < 0 && matchesAlias("mpn", name):
			cols.mpn = i
		case cols.manufacturer < 0 && matchesAlias("manufacturer", name):
			cols.manufacturer = i
		case cols.quantity < 0 && matchesAlias("quantity", name):
			cols.quantity = i
		}
	}
	if cols.mpn < 0 {
		return cols, eris.Errorf("bom: no mpn column in header %v", header)
	}
	return cols, nil
}

func matchesAlias(column, name string) bool {
	for _, alias := range columnAliases[column] {
		if name == alias {
			return true
		}
	}
	return false
}

func rowToItem(row []string, cols columnMap) (LineItem, bool) {
	item := LineItem{Quantity: 1}
	if cols.mpn >= len(row) {
		return item, false
	}
	item.MPN = strings.TrimSpace(row[cols.mpn])
	if item.MPN == "" {
		return item, false
	}
	if cols.manufacturer >= 0 && cols.manufacturer < len(row) {
		item.Manufacturer = strings.TrimSpace(row[cols.manufacturer])
	}
	if cols.quantity >= 0 && cols.quantity < len(row) {
		if qty, err := strconv.Atoi(strings.TrimSpace(row[cols.quantity])); err == nil && qty > 0 {
			item.Quantity = qty
		}
	}
	return item, true
}

func rowToStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		out[i] = cell.String()
	}
	return out
}
