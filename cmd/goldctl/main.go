// Command goldctl queries metal prices from the terminal, exports history to Excel
// and watches the price against alert thresholds.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"gold-monitor/internal/cache"
	"gold-monitor/internal/config"
	"gold-monitor/internal/models"
	"gold-monitor/internal/services/convert"
	"gold-monitor/internal/services/goldapi"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Global flags
var (
	metalCode string
	currency  string
	unitCode  string
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "goldctl",
	Short: "Query precious metal prices from GoldAPI",
	Long: `Query precious metal prices from GoldAPI.

Reads GOLD_API_KEY and the other server settings from the environment or a .env file.`,
	Example: `  # Current gold price per gram in EUR:
  goldctl price --currency EUR --unit gram

  # Price on a past date (closest earlier trading day if missing):
  goldctl price --date 20240105

  # Last 60 days to a workbook:
  goldctl export --days 60 --out gold.xlsx

  # Log when gold crosses 2100 or drops under 1900, checking hourly:
  goldctl watch --above 2100 --below 1900 --interval 1h`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&metalCode, "metal", string(models.Gold), "Metal code (XAU, XAG, XPT, XPD)")
	rootCmd.PersistentFlags().StringVar(&currency, "currency", "USD", "Quote currency")
	rootCmd.PersistentFlags().StringVar(&unitCode, "unit", string(models.Ounce), "Unit (oz, gram, kg, tola, baht)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Timeout for each upstream call")

	rootCmd.AddCommand(priceCmd, exportCmd, watchCmd)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// session is what every subcommand needs: validated flags and a GoldAPI client.
type session struct {
	cfg      *config.Config
	client   *goldapi.Client
	metal    models.Metal
	currency string
	unit     models.Unit
}

func newSession() (*session, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	metal, ok := models.ParseMetal(metalCode)
	if !ok {
		return nil, fmt.Errorf("unknown metal %q", metalCode)
	}
	unit := models.NormalizeUnit(unitCode)
	if !convert.IsSupportedUnit(unit) {
		return nil, fmt.Errorf("unknown unit %q, supported: %v", unitCode, convert.SupportedUnits())
	}

	store := cache.New()
	converter := convert.NewConverter(cfg.FXAPIBaseURL, timeout, store)
	return &session{
		cfg:      cfg,
		client:   goldapi.NewClient(cfg.GoldAPIBaseURL, cfg.GoldAPIKey, timeout, converter),
		metal:    metal,
		currency: models.NormalizeCurrency(currency),
		unit:     unit,
	}, nil
}
