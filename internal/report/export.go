package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	SheetSections  = "Sections"
	SheetQuestions = "Questions"
)

// WriteXLSX writes the result as a workbook with an overview sheet and a
// per-question sheet.
func WriteXLSX(w io.Writer, res Result) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetSections); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetQuestions); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	sections := [][]any{{"Section", "Score", "Max score", "Percentage", "Level", "Benchmark"}}
	for _, s := range res.Sections {
		var bench any
		if s.Benchmark != nil {
			bench = *s.Benchmark
		}
		sections = append(sections, []any{s.Name, s.Score, s.MaxScore, s.Percentage, string(s.Level), bench})
	}
	sections = append(sections, []any{"Overall", res.Score, res.MaxScore, res.Percentage, string(res.Level), nil})
	if err := writeRows(f, SheetSections, sections); err != nil {
		return err
	}

	questions := [][]any{{"Section", "Question", "Score", "Max score", "Percentage", "Level"}}
	for _, q := range res.Questions {
		questions = append(questions, []any{q.SectionName, q.Text, q.Score, q.MaxScore, q.Percentage, string(q.Level)})
	}
	if err := writeRows(f, SheetQuestions, questions); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
