package transaction

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrEmptyDataset is returned by Clean when no row survives validation.
var ErrEmptyDataset = errors.New("empty dataset")

// CleanStats counts rows per outcome of the cleaning chain.
type CleanStats struct {
	Raw             int `yaml:"raw" json:"raw"`
	Kept            int `yaml:"kept" json:"kept"`
	Malformed       int `yaml:"malformed" json:"malformed"`
	MissingCustomer int `yaml:"missing_customer" json:"missing_customer"`
	BadQuantity     int `yaml:"bad_quantity" json:"bad_quantity"`
	BadPrice        int `yaml:"bad_price" json:"bad_price"`
	BadTimestamp    int `yaml:"bad_timestamp" json:"bad_timestamp"`
	Duplicate       int `yaml:"duplicate" json:"duplicate"`
}

// Dropped returns the total number of rejected rows.
func (s CleanStats) Dropped() int {
	return s.Malformed + s.MissingCustomer + s.BadQuantity + s.BadPrice + s.BadTimestamp + s.Duplicate
}

func (s CleanStats) String() string {
	return fmt.Sprintf("raw=%d kept=%d malformed=%d missing_customer=%d bad_quantity=%d bad_price=%d bad_timestamp=%d duplicate=%d",
		s.Raw, s.Kept, s.Malformed, s.MissingCustomer, s.BadQuantity, s.BadPrice, s.BadTimestamp, s.Duplicate)
}

// timestampLayouts are tried in order. Slash dates are month-first.
var timestampLayouts = []string{
	time.DateTime,
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	time.DateOnly,
}

var countryPlaceholders = map[string]struct{}{
	"":            {},
	"unspecified": {},
	"unknown":     {},
	"n/a":         {},
	"na":          {},
	"none":        {},
	"-":           {},
}

var ukAliases = map[string]struct{}{
	"united kingdom": {},
	"uk":             {},
	"u.k.":           {},
	"great britain":  {},
	"england":        {},
	"gb":             {},
}

// Clean validates raw rows and returns the canonical transaction table.
// Malformed rows are dropped and counted; the input slice is not modified.
func Clean(rows []RawRow) (*Table, error) {
	stats := CleanStats{Raw: len(rows)}
	records := make([]Record, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))

	for _, row := range rows {
		if row.Malformed {
			stats.Malformed++
			continue
		}

		customer := NormalizeCustomerID(row.CustomerID)
		if customer == "" {
			stats.MissingCustomer++
			continue
		}

		qty, ok := parseQuantity(row.Quantity)
		if !ok || qty <= 0 {
			stats.BadQuantity++
			continue
		}

		price, ok := parsePrice(row.UnitPrice)
		if !ok || !price.IsPositive() {
			stats.BadPrice++
			continue
		}

		ts, ok := parseTimestamp(row.InvoiceDate)
		if !ok {
			stats.BadTimestamp++
			continue
		}

		rec := Record{
			InvoiceNo:   strings.TrimSpace(row.InvoiceNo),
			StockCode:   strings.TrimSpace(row.StockCode),
			Description: strings.TrimSpace(row.Description),
			Quantity:    qty,
			UnitPrice:   price,
			InvoiceDate: ts,
			CustomerID:  customer,
			Country:     NormalizeCountry(row.Country),
		}

		key := dedupKey(rec)
		if _, dup := seen[key]; dup {
			stats.Duplicate++
			continue
		}

		seen[key] = struct{}{}

		rec.LineRevenue = price.Mul(decimal.NewFromInt(qty))
		records = append(records, rec)
	}

	stats.Kept = len(records)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no usable rows (%s)", ErrEmptyDataset, stats)
	}

	return &Table{Records: records, Stats: stats}, nil
}

// NormalizeCustomerID trims the identifier and strips a float suffix
// ("17850.0" becomes "17850") left behind by spreadsheet exports.
func NormalizeCustomerID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return ""
	}

	if !strings.Contains(s, ".") {
		return s
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1e15 {
		return s
	}

	return strconv.FormatInt(int64(f), 10)
}

// NormalizeCountry collapses whitespace, maps placeholders to UnknownCountry
// and UK spellings to UKCountry.
func NormalizeCountry(s string) string {
	s = strings.Join(strings.Fields(s), " ")

	lower := strings.ToLower(s)
	if _, ok := countryPlaceholders[lower]; ok {
		return UnknownCountry
	}

	if _, ok := ukAliases[lower]; ok {
		return UKCountry
	}

	return s
}

func parseQuantity(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}

	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() {
		return 0, false
	}

	return d.IntPart(), true
}

func parsePrice(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}

	if !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}

	return d, true
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	return time.Time{}, false
}

func dedupKey(r Record) string {
	return strings.Join([]string{
		r.InvoiceNo,
		r.StockCode,
		r.Description,
		strconv.FormatInt(r.Quantity, 10),
		r.UnitPrice.String(),
		r.InvoiceDate.Format(time.RFC3339Nano),
		r.CustomerID,
		r.Country,
	}, "\x1f")
}
