package alerts

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Condition string

const (
	Above Condition = "above"
	Below Condition = "below"
)

// Alert fires once when the price in Currency crosses TargetPrice.
type Alert struct {
	ID          string          `json:"id"`
	TargetPrice decimal.Decimal `json:"targetPrice"`
	Condition   Condition       `json:"condition"`
	Currency    string          `json:"currency"`
	Active      bool            `json:"active"`
}

func ParseCondition(s string) (Condition, error) {
	switch c := Condition(strings.ToLower(strings.TrimSpace(s))); c {
	case Above, Below:
		return c, nil
	default:
		return "", fmt.Errorf("unknown alert condition %q", s)
	}
}

// ShouldTrigger reports whether an active alert in the same currency is met by price.
func (a Alert) ShouldTrigger(price decimal.Decimal, currency string) bool {
	if !a.Active || a.Currency != currency {
		return false
	}
	switch a.Condition {
	case Above:
		return price.GreaterThanOrEqual(a.TargetPrice)
	case Below:
		return price.LessThanOrEqual(a.TargetPrice)
	}
	return false
}

// Evaluate returns the alerts that fire for price and deactivates them in place.
func Evaluate(list []Alert, price decimal.Decimal, currency string) []Alert {
	var fired []Alert
	for i := range list {
		if list[i].ShouldTrigger(price, currency) {
			list[i].Active = false
			fired = append(fired, list[i])
		}
	}
	return fired
}

func (a Alert) Message(metal string) string {
	return fmt.Sprintf("%s price is now %s %s %s", metal, a.Condition, a.TargetPrice.StringFixed(2), a.Currency)
}
