package main

import (
	"encoding/json"
	"fmt"
	"os"

	"gold-monitor/internal/models"
	"gold-monitor/internal/services/convert"

	"github.com/spf13/cobra"
)

var (
	priceDate string
	priceJSON bool
)

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Print the current or historical price",
	RunE:  runPrice,
}

func init() {
	priceCmd.Flags().StringVar(&priceDate, "date", "", "Historical date (YYYYMMDD or YYYY-MM-DD)")
	priceCmd.Flags().BoolVar(&priceJSON, "json", false, "Print the full snapshot as JSON")
}

func runPrice(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var snap *models.PriceSnapshot
	if priceDate == "" {
		snap, err = s.client.GetPriceWithConversion(ctx, s.metal, s.cfg.BaseCurrency, s.currency, s.unit)
	} else {
		date, perr := models.ParseDate(priceDate)
		if perr != nil {
			return perr
		}
		snap, err = s.client.GetHistoricalPrice(ctx, s.metal, s.cfg.BaseCurrency, date)
		if err == nil {
			err = s.client.ConvertSnapshot(ctx, snap, s.currency, s.unit)
		}
	}
	if err != nil {
		return err
	}

	if priceJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(snap)
	}

	fmt.Printf("%s %s %s per %s\n", s.metal.Name(), snap.Price.StringFixed(2), snap.Currency, convert.UnitLabel(snap.Unit))
	fmt.Printf("  Change: %s (%s%%)\n", snap.Change.StringFixed(2), snap.ChangePercent.StringFixed(2))
	fmt.Printf("  Ask/Bid: %s / %s\n", snap.Ask.StringFixed(2), snap.Bid.StringFixed(2))
	if snap.ResolvedDate != nil {
		fmt.Printf("  Date: %s\n", snap.ResolvedDate)
	}
	for _, note := range snap.Notes {
		fmt.Printf("  ⚠️  %s\n", note)
	}
	return nil
}
