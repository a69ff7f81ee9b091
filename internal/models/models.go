package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// The dashboard reads prices as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Metal is an ISO 4217 precious-metal code.
type Metal string

const (
	Gold      Metal = "XAU"
	Silver    Metal = "XAG"
	Platinum  Metal = "XPT"
	Palladium Metal = "XPD"
)

var metals = map[Metal]string{
	Gold:      "Gold",
	Silver:    "Silver",
	Platinum:  "Platinum",
	Palladium: "Palladium",
}

// ParseMetal normalizes s to upper case and reports whether it is a known metal.
func ParseMetal(s string) (Metal, bool) {
	m := Metal(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := metals[m]
	return m, ok
}

func (m Metal) Name() string {
	if name, ok := metals[m]; ok {
		return name
	}
	return string(m)
}

// Unit is the physical unit a price is quoted per.
type Unit string

const (
	Ounce Unit = "oz"
	Gram  Unit = "gram"
	Kilo  Unit = "kg"
	Tola  Unit = "tola"
	Baht  Unit = "baht"
)

func NormalizeUnit(s string) Unit {
	return Unit(strings.ToLower(strings.TrimSpace(s)))
}

// NormalizeCurrency upper-cases a currency code.
func NormalizeCurrency(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// PriceSnapshot is one normalized price observation. Monetary fields are per Unit in Currency.
type PriceSnapshot struct {
	Metal         Metal           `json:"metal"`
	Currency      string          `json:"currency"`
	Unit          Unit            `json:"unit"`
	Price         decimal.Decimal `json:"price"`
	Ask           decimal.Decimal `json:"ask"`
	Bid           decimal.Decimal `json:"bid"`
	PreviousClose decimal.Decimal `json:"prev_close_price"`
	Change        decimal.Decimal `json:"ch"`
	ChangePercent decimal.Decimal `json:"chp"`

	PriceGram24k decimal.Decimal `json:"price_gram_24k"`
	PriceGram22k decimal.Decimal `json:"price_gram_22k"`
	PriceGram21k decimal.Decimal `json:"price_gram_21k"`
	PriceGram20k decimal.Decimal `json:"price_gram_20k"`
	PriceGram18k decimal.Decimal `json:"price_gram_18k"`

	// ObservedAt is the upstream's date/time for the quote, not the fetch time.
	ObservedAt time.Time `json:"-"`
	Timestamp  int64     `json:"timestamp"`

	// Set only by historical lookups.
	RequestedDate    *Date `json:"requested_date,omitempty"`
	ResolvedDate     *Date `json:"resolved_date,omitempty"`
	UsedFallbackDate bool  `json:"used_fallback_date,omitempty"`

	// Degraded marks best-effort results; Notes say which fallback was taken.
	Degraded bool     `json:"degraded"`
	Notes    []string `json:"notes,omitempty"`
}

// Degrade flags the snapshot as best-effort and records why.
func (s *PriceSnapshot) Degrade(note string) {
	s.Degraded = true
	s.Notes = append(s.Notes, note)
}

// HistoricalPoint is the closing price of one calendar day.
type HistoricalPoint struct {
	Date  Date            `json:"date"`
	Price decimal.Decimal `json:"price"`
}

// NewsArticle is the trimmed article shape served by the news endpoint.
type NewsArticle struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	PublishedAt string `json:"publishedAt"`
	Description string `json:"description"`
}

// HistoricalSeries is a range of daily closes, oldest first, in Currency per Unit.
type HistoricalSeries struct {
	Metal    Metal             `json:"metal"`
	Currency string            `json:"currency"`
	Unit     Unit              `json:"unit"`
	Days     int               `json:"days"`
	Points   []HistoricalPoint `json:"points"`
	Degraded bool              `json:"degraded"`
	Notes    []string          `json:"notes,omitempty"`
}
