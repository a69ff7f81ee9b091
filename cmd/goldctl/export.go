package main

import (
	"fmt"
	"io"
	"os"

	"gold-monitor/internal/models"
	"gold-monitor/internal/services/convert"
	"gold-monitor/internal/services/sentiment"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"
)

const historySheet = "History"

var (
	exportDays int
	exportOut  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the recent daily price history to an .xlsx workbook",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().IntVar(&exportDays, "days", 30, "Number of trading days (1-60)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default <metal>-history.xlsx)")
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportDays < 1 || exportDays > 60 {
		return fmt.Errorf("--days must be between 1 and 60, got %d", exportDays)
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	points, err := s.client.GetHistoricalData(ctx, s.metal, s.cfg.BaseCurrency, exportDays)
	if err != nil {
		return err
	}
	series := &models.HistoricalSeries{Metal: s.metal, Currency: s.currency, Unit: s.unit, Days: exportDays, Points: points}
	degraded, note, err := s.client.ConvertSeries(ctx, series.Points, s.cfg.BaseCurrency, s.currency, s.unit)
	if err != nil {
		return err
	}
	if degraded {
		series.Degraded = true
		series.Notes = append(series.Notes, note)
		// Prices stayed in the base currency.
		series.Currency = s.cfg.BaseCurrency
	}

	out := exportOut
	if out == "" {
		out = fmt.Sprintf("%s-history.xlsx", series.Metal)
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := writeHistoryWorkbook(f, series); err != nil {
		return err
	}
	fmt.Printf("✓ Wrote %d days of %s prices to %s\n", len(series.Points), series.Metal.Name(), out)
	for _, n := range series.Notes {
		fmt.Printf("  ⚠️  %s\n", n)
	}
	return nil
}

// writeHistoryWorkbook writes one row per day under a header, then a summary block
// with the trend and its sentiment label.
func writeHistoryWorkbook(w io.Writer, series *models.HistoricalSeries) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return err
	}

	priceHeader := fmt.Sprintf("Price (%s per %s)", series.Currency, convert.UnitLabel(series.Unit))
	header := []any{"Date", priceHeader}
	if err := f.SetSheetRow(historySheet, "A1", &header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(historySheet, "A1", "B1", bold); err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return err
	}

	for i, p := range series.Points {
		row := i + 2
		dateCell, _ := excelize.CoordinatesToCellName(1, row)
		priceCell, _ := excelize.CoordinatesToCellName(2, row)
		if err := f.SetCellValue(historySheet, dateCell, p.Date.String()); err != nil {
			return err
		}
		if err := f.SetCellValue(historySheet, priceCell, p.Price.InexactFloat64()); err != nil {
			return err
		}
		if err := f.SetCellStyle(historySheet, priceCell, priceCell, money); err != nil {
			return err
		}
	}

	// Summary to the right of the table.
	trend := sentiment.TrendPercent(series.Points)
	label := sentiment.Analyze(0, series.Points).Label
	summary := [][]any{
		{"Metal", series.Metal.Name()},
		{"Days", len(series.Points)},
		{"Trend %", trend},
		{"Sentiment", label},
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(4, i+1)
		if err := f.SetSheetRow(historySheet, cell, &row); err != nil {
			return err
		}
	}
	if series.Degraded {
		cell, _ := excelize.CoordinatesToCellName(4, len(summary)+2)
		if err := f.SetCellValue(historySheet, cell, "Degraded: "+fmt.Sprint(series.Notes)); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(historySheet, "A", "B", 22); err != nil {
		return err
	}

	_, err = f.WriteTo(w)
	return err
}
