package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gold-monitor/internal/services/alerts"
	"gold-monitor/internal/services/schedule"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	watchAbove    []string
	watchBelow    []string
	watchInterval time.Duration
	watchDaily    bool
	watchOnce     bool
	watchLogFile  string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the current price and log alerts as they trigger",
	Long: `Poll the current price and log alerts as they trigger.

Each alert fires once. The watcher exits when every alert has fired.
With --daily it checks right after midnight WIB instead of on a fixed interval.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringSliceVar(&watchAbove, "above", nil, "Alert when the price reaches this level (repeatable)")
	watchCmd.Flags().StringSliceVar(&watchBelow, "below", nil, "Alert when the price falls to this level (repeatable)")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Hour, "Polling interval")
	watchCmd.Flags().BoolVar(&watchDaily, "daily", false, "Check once a day at midnight WIB")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Check once and exit")
	watchCmd.Flags().StringVar(&watchLogFile, "log", "", "Log file path (default stdout)")
	watchCmd.MarkFlagsMutuallyExclusive("daily", "interval")
}

// PriceWatcher checks the price and evaluates alerts against it.
type PriceWatcher struct {
	session *session
	alerts  []alerts.Alert
	logger  *log.Logger
	now     func() time.Time
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	list, err := buildAlerts(watchAbove, watchBelow, s.currency)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return fmt.Errorf("nothing to watch: pass --above or --below")
	}

	logWriter := os.Stdout
	if watchLogFile != "" {
		logWriter, err = os.OpenFile(watchLogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer logWriter.Close()
	}

	watcher := &PriceWatcher{
		session: s,
		alerts:  list,
		logger:  log.New(logWriter, "[PriceWatcher] ", log.LstdFlags|log.Lshortfile),
		now:     time.Now,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher.logger.Printf("🚀 watching %s in %s per %s, %d alert(s)", s.metal.Name(), s.currency, s.unit, len(list))
	if watchOnce {
		watcher.runOnce(ctx)
		return nil
	}
	watcher.runLoop(ctx)
	return nil
}

// buildAlerts turns threshold flags into active alerts.
func buildAlerts(above, below []string, currency string) ([]alerts.Alert, error) {
	var list []alerts.Alert
	add := func(values []string, cond alerts.Condition) error {
		for _, v := range values {
			target, err := decimal.NewFromString(strings.TrimSpace(v))
			if err != nil || !target.IsPositive() {
				return fmt.Errorf("invalid %s threshold %q", cond, v)
			}
			list = append(list, alerts.Alert{
				ID:          fmt.Sprintf("%s-%s", cond, target),
				TargetPrice: target,
				Condition:   cond,
				Currency:    currency,
				Active:      true,
			})
		}
		return nil
	}
	if err := add(above, alerts.Above); err != nil {
		return nil, err
	}
	if err := add(below, alerts.Below); err != nil {
		return nil, err
	}
	return list, nil
}

func (w *PriceWatcher) runOnce(ctx context.Context) {
	if err := w.Check(ctx); err != nil {
		w.logger.Printf("❌ check failed: %v", err)
	}
}

func (w *PriceWatcher) runLoop(ctx context.Context) {
	// First check right away
	w.runOnce(ctx)

	for w.pending() > 0 {
		wait := watchInterval
		if watchDaily {
			wait = schedule.DurationUntilNextMidnight(w.now(), schedule.WIBOffset)
		}
		w.logger.Printf("next check in %s", wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			w.runOnce(ctx)
		case <-ctx.Done():
			timer.Stop()
			w.logger.Printf("watcher stopped")
			return
		}
	}
	w.logger.Printf("✅ all alerts fired")
}

// Check fetches the current price and logs every alert it triggers.
func (w *PriceWatcher) Check(ctx context.Context) error {
	s := w.session
	snap, err := s.client.GetPriceWithConversion(ctx, s.metal, s.cfg.BaseCurrency, s.currency, s.unit)
	if err != nil {
		return err
	}
	w.logger.Printf("📈 %s %s %s (%s%%)", s.metal, snap.Price.StringFixed(2), snap.Currency, snap.ChangePercent.StringFixed(2))
	if snap.Degraded {
		// The price may not be in the alert currency.
		w.logger.Printf("⚠️  degraded price, alerts not evaluated: %s", strings.Join(snap.Notes, "; "))
		return nil
	}

	for _, a := range alerts.Evaluate(w.alerts, snap.Price, snap.Currency) {
		w.logger.Printf("🔔 %s", a.Message(s.metal.Name()))
	}
	return nil
}

func (w *PriceWatcher) pending() int {
	n := 0
	for _, a := range w.alerts {
		if a.Active {
			n++
		}
	}
	return n
}
