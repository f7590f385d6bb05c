// Package report builds the downloadable attendance workbook.
package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/Janhavi187/event-attendance-system/internal/attendance"
)

// ErrExport is returned when the workbook cannot be produced.
var ErrExport = errors.New("export error")

const (
	// SheetName is the single sheet of the workbook.
	SheetName = "Attendance"
	// ContentType is the MIME type of the produced document.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	// FileName is the suggested download name.
	FileName = "attendance.xlsx"
)

var header = []any{"ID", "Name", "Email", "Status", "Timestamp"}

// Lister supplies the snapshot to export.
type Lister interface {
	Students(ctx context.Context) ([]attendance.Student, error)
}

// Exporter turns the full student list into an xlsx workbook.
type Exporter struct {
	students Lister
}

// NewExporter creates an Exporter reading from students.
func NewExporter(students Lister) *Exporter {
	return &Exporter{students: students}
}

// Export returns the workbook bytes. Either the whole snapshot is written or
// an error wrapping ErrExport is returned.
func (e *Exporter) Export(ctx context.Context) ([]byte, error) {
	students, err := e.students.Students(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExport, err)
	}
	b, err := build(students)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExport, err)
	}
	return b, nil
}

func build(students []attendance.Student) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, st := range students {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{st.ID, st.Name, st.Email, st.Status(), st.TimestampString()}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
