package leaderboard

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/victornm/lms/internal/domain"
)

const exportSheet = "Leaderboard"

var exportHeader = []any{"Rank", "Handle", "Name", "Courses Enrolled", "Course Points", "Quiz Points", "Total Points"}

// Export writes the current leaderboard to w as an xlsx workbook.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	l, err := s.GetLeaderboard(ctx)
	if err != nil {
		return err
	}

	return WriteWorkbook(w, l)
}

// WriteWorkbook writes l as a single-sheet workbook, one row per entry below a header row.
func WriteWorkbook(w io.Writer, l *domain.Leaderboard) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close workbook: %w", cerr)
		}
	}()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := exportHeader
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, e := range l.Entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}

		row := []any{
			e.Rank,
			e.Handle,
			e.Name,
			e.CoursesEnrolled,
			e.CoursePoints.InexactFloat64(),
			e.QuizPoints.InexactFloat64(),
			e.TotalPoints.InexactFloat64(),
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	return nil
}
