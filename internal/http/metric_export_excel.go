package httpapi

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"poem-backend/internal/domain"
)

// MetricExportHeader is the column layout of the metric inventory
// export.
var MetricExportHeader = []string{
	"Name",
	"Type",
	"Probe Version",
	"Group",
	"Description",
	"Parent",
	"Probe Executable",
	"Config",
	"Attribute",
	"Dependency",
	"Flags",
	"Parameter",
	"Tags",
}

// GenerateMetricExport renders a tenant's metric inventory as an xlsx
// workbook.
func GenerateMetricExport(metrics []*domain.Metric) ([]byte, error) {
	f := excelize.NewFile()
	// Note: no deferred Close() here, WriteTo needs the file open.

	sheetName := "Metrics"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range MetricExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for rowIdx, m := range metrics {
		values := []any{
			m.Name,
			m.MType,
			m.ProbeVersion,
			m.GroupName,
			m.Description,
			m.Parent,
			m.ProbeExecutable,
			m.Config,
			m.Attribute,
			m.Dependency,
			m.Flags,
			m.Parameter,
			domain.JoinTags(m.Tags),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}
