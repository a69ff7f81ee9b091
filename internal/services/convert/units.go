package convert

import (
	"sort"

	"gold-monitor/internal/apperr"
	"gold-monitor/internal/models"

	"github.com/shopspring/decimal"
)

// GramsPerOunce is one troy ounce in grams.
var GramsPerOunce = decimal.RequireFromString("31.1035")

// unitFactors divide a per-troy-ounce price into a per-unit price.
var unitFactors = map[models.Unit]decimal.Decimal{
	models.Ounce: decimal.NewFromInt(1),
	models.Gram:  GramsPerOunce,
	models.Kilo:  decimal.RequireFromString("0.0311035"),
	models.Tola:  decimal.RequireFromString("2.6667"),
	models.Baht:  decimal.RequireFromString("15.244"),
}

var unitLabels = map[models.Unit]string{
	models.Ounce: "Troy Ounce",
	models.Gram:  "Gram",
	models.Kilo:  "Kilogram",
	models.Tola:  "Tola",
	models.Baht:  "Baht",
}

// ConvertUnit turns a per-troy-ounce price into a price per unit.
func ConvertUnit(pricePerOz decimal.Decimal, unit models.Unit) (decimal.Decimal, error) {
	factor, ok := unitFactors[unit]
	if !ok {
		return decimal.Zero, apperr.New(apperr.KindUnsupportedUnit, "unsupported unit %q", unit)
	}
	return pricePerOz.Div(factor), nil
}

func IsSupportedUnit(unit models.Unit) bool {
	_, ok := unitFactors[unit]
	return ok
}

// SupportedUnits lists unit codes in a stable order.
func SupportedUnits() []models.Unit {
	units := make([]models.Unit, 0, len(unitFactors))
	for u := range unitFactors {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool { return units[i] < units[j] })
	return units
}

// UnitLabel returns a display name, or the raw code for units it does not know.
func UnitLabel(unit models.Unit) string {
	if label, ok := unitLabels[unit]; ok {
		return label
	}
	return string(unit)
}
