package csvdata

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/Rixmerz/rmeter/internal/plan"
)

// ParseSource reads raw CSV text (header row plus data rows) into a
// plan.CSVSource's Columns/Rows, validating that every row has exactly
// len(columns) cells.
func ParseSource(name string, sharing plan.SharingMode, recycle bool, raw string) (*plan.CSVSource, error) {
	reader := csv.NewReader(strings.NewReader(raw))
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csvdata: parsing %q: %w", name, err)
	}
	if len(records) == 0 {
		return &plan.CSVSource{Name: name, Sharing: sharing, Recycle: recycle}, nil
	}

	columns := records[0]
	rows := records[1:]
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("csvdata: %q row %d has %d cells, want %d", name, i, len(row), len(columns))
		}
	}

	return &plan.CSVSource{
		Name:    name,
		Columns: columns,
		Rows:    rows,
		Sharing: sharing,
		Recycle: recycle,
	}, nil
}
