package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/subscription-radar/internal/domain/subscriptions/repository"
)

// exportRow is one line of the CSV and XLSX exports. The csv tags are the header.
type exportRow struct {
	Name        string `csv:"Name"`
	Category    string `csv:"Category"`
	Price       string `csv:"Price"`
	NextPayment string `csv:"NextPayment"`
	Status      string `csv:"Status"`
	CreatedAt   string `csv:"CreatedAt"`
}

var exportHeader = []string{"Name", "Category", "Price", "NextPayment", "Status", "CreatedAt"}

func toExportRow(sub *repository.Subscription) exportRow {
	return exportRow{
		Name:        sub.Name,
		Category:    string(sub.Category),
		Price:       sub.Price.StringFixed(2),
		NextPayment: sub.NextPayment.String(),
		Status:      string(sub.Status),
		CreatedAt:   sub.CreatedAt.Format(repository.DateLayout),
	}
}

// ExportCSV renders every subscription as CSV: an unquoted header row followed
// by one fully quoted row per subscription.
func (s *Store) ExportCSV(ctx context.Context) (string, error) {
	all := s.GetAll(ctx)
	rows := make([]exportRow, len(all))
	for i, sub := range all {
		rows[i] = toExportRow(sub)
	}

	var sb strings.Builder
	if err := gocsv.MarshalCSV(&rows, newQuotingWriter(&sb)); err != nil {
		return "", fmt.Errorf("failed to export csv: %w", err)
	}
	return sb.String(), nil
}

// ExportXLSX writes the same table as ExportCSV as an Excel workbook.
func (s *Store) ExportXLSX(ctx context.Context, w io.Writer) error {
	const sheet = "Subscriptions"

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("failed to close workbook", slog.Any("error", err))
		}
	}()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	priceStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	if err != nil {
		return fmt.Errorf("failed to create price style: %w", err)
	}

	for i, sub := range s.GetAll(ctx) {
		row := toExportRow(sub)
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []interface{}{
			row.Name,
			row.Category,
			sub.Price.InexactFloat64(),
			row.NextPayment,
			row.Status,
			row.CreatedAt,
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}

		priceCell, _ := excelize.CoordinatesToCellName(3, i+2)
		if err := f.SetCellStyle(sheet, priceCell, priceCell, priceStyle); err != nil {
			return fmt.Errorf("failed to style row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// ImportError describes a row ImportCSV skipped.
type ImportError struct {
	Row int
	Err error
}

// ImportResult summarizes an ImportCSV run.
type ImportResult struct {
	TotalRows int
	Imported  []*repository.Subscription
	Errors    []ImportError
}

// ImportCSV adds one subscription per row of a file in the ExportCSV format.
// Invalid rows are reported and skipped. A row's status, when not active, is
// applied after the subscription is added.
func (s *Store) ImportCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var rows []exportRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	result := &ImportResult{TotalRows: len(rows)}
	for i, row := range rows {
		rowNum := i + 2 // 1-indexed plus header

		sub, err := s.Add(ctx, Draft{
			Name:        row.Name,
			Price:       row.Price,
			Category:    row.Category,
			NextPayment: row.NextPayment,
		})
		if sub == nil {
			result.Errors = append(result.Errors, ImportError{Row: rowNum, Err: err})
			continue
		}

		status := strings.TrimSpace(row.Status)
		if status != "" && status != string(repository.StatusActive) {
			updated, uerr := s.Update(ctx, sub.ID, Patch{Status: &status})
			if updated == nil {
				result.Errors = append(result.Errors, ImportError{Row: rowNum, Err: uerr})
			} else {
				sub = updated
			}
		}
		result.Imported = append(result.Imported, sub)
	}

	s.logger.Info("csv import finished",
		slog.Int("rows", result.TotalRows),
		slog.Int("imported", len(result.Imported)),
		slog.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// quotingWriter is a gocsv.CSVWriter that leaves the header bare and quotes
// every field of the data rows.
type quotingWriter struct {
	w          *bufio.Writer
	headerDone bool
	err        error
}

func newQuotingWriter(w io.Writer) *quotingWriter {
	return &quotingWriter{w: bufio.NewWriter(w)}
}

func (q *quotingWriter) Write(record []string) error {
	if q.err != nil {
		return q.err
	}
	for i, field := range record {
		if i > 0 {
			q.w.WriteByte(',')
		}
		if q.headerDone {
			q.w.WriteString(`"` + strings.ReplaceAll(field, `"`, `""`) + `"`)
		} else {
			q.w.WriteString(field)
		}
	}
	_, q.err = q.w.WriteString("\n")
	q.headerDone = true
	return q.err
}

func (q *quotingWriter) Flush() {
	if err := q.w.Flush(); err != nil && q.err == nil {
		q.err = err
	}
}

func (q *quotingWriter) Error() error {
	return q.err
}
