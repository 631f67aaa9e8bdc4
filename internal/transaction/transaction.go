package transaction

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// UnknownCountry marks a country value that was blank or a known placeholder.
	UnknownCountry = "unknown"
	// UKCountry is the canonical label for the United Kingdom.
	UKCountry = "United Kingdom"
)

// RawRow is a line item exactly as read from a source, before validation.
type RawRow struct {
	Line        int // 1-based position in the source, for diagnostics
	InvoiceNo   string
	StockCode   string
	Description string
	Quantity    string
	InvoiceDate string
	UnitPrice   string
	CustomerID  string
	Country     string
	// Malformed marks a source line that could not be split into fields.
	Malformed bool
}

// Record is a validated, canonical line item.
type Record struct {
	InvoiceNo   string
	StockCode   string
	Description string
	Quantity    int64
	UnitPrice   decimal.Decimal
	InvoiceDate time.Time
	CustomerID  string
	Country     string
	LineRevenue decimal.Decimal
}

// Table is the cleaned transaction table. It is read-only once returned by Clean.
type Table struct {
	Records []Record
	Stats   CleanStats
}

// Horizon returns the latest invoice timestamp in the table.
func (t *Table) Horizon() time.Time {
	var h time.Time
	for i := range t.Records {
		if t.Records[i].InvoiceDate.After(h) {
			h = t.Records[i].InvoiceDate
		}
	}

	return h
}

// CustomerCount returns the number of distinct customers in the table.
func (t *Table) CustomerCount() int {
	seen := make(map[string]struct{})
	for i := range t.Records {
		seen[t.Records[i].CustomerID] = struct{}{}
	}

	return len(seen)
}
