// Package feature aggregates the cleaned transaction table into one
// behavioral feature vector per customer.
package feature

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/segmenter/internal/transaction"
)

// UnknownCountry is reported when a customer only has placeholder countries.
const UnknownCountry = "Unknown"

// Shares holds the revenue share per category, indexed by Category.
type Shares [NumCategories]float64

// Sum returns the total of all shares.
func (s Shares) Sum() float64 {
	var total float64
	for _, v := range s {
		total += v
	}

	return total
}

// Map returns the shares keyed by category name.
func (s Shares) Map() map[string]float64 {
	m := make(map[string]float64, NumCategories)
	for i, v := range s {
		m[Category(i).String()] = v
	}

	return m
}

// MarshalJSON encodes the shares as an object keyed by category name.
func (s Shares) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

// UnmarshalJSON decodes an object keyed by category name. Unknown names are
// ignored and missing categories are 0.
func (s *Shares) UnmarshalJSON(data []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	*s = Shares{}
	for _, c := range Categories() {
		s[c] = m[c.String()]
	}

	return nil
}

// Vector is the feature row for one customer.
type Vector struct {
	CustomerID     string
	Recency        int // whole days between the customer's last purchase and the dataset horizon
	Frequency      int // distinct invoices
	Monetary       float64
	Shares         Shares
	PrimaryCountry string
	IsUK           bool
}

type countryRevenue struct {
	country string
	revenue decimal.Decimal
}

type accumulator struct {
	last      time.Time
	invoices  map[string]struct{}
	monetary  decimal.Decimal
	category  [NumCategories]decimal.Decimal
	countries []countryRevenue // first-encountered order
}

func (a *accumulator) addCountry(country string, revenue decimal.Decimal) {
	for i := range a.countries {
		if a.countries[i].country == country {
			a.countries[i].revenue = a.countries[i].revenue.Add(revenue)
			return
		}
	}

	a.countries = append(a.countries, countryRevenue{country: country, revenue: revenue})
}

// Build returns one Vector per distinct customer in the table, ordered by
// customer ID.
func Build(table *transaction.Table) []Vector {
	horizon := table.Horizon()

	groups := make(map[string]*accumulator)

	for i := range table.Records {
		rec := &table.Records[i]

		acc, ok := groups[rec.CustomerID]
		if !ok {
			acc = &accumulator{invoices: make(map[string]struct{})}
			groups[rec.CustomerID] = acc
		}

		if rec.InvoiceDate.After(acc.last) {
			acc.last = rec.InvoiceDate
		}

		acc.invoices[rec.InvoiceNo] = struct{}{}
		acc.monetary = acc.monetary.Add(rec.LineRevenue)

		cat := Classify(rec.Description)
		acc.category[cat] = acc.category[cat].Add(rec.LineRevenue)

		acc.addCountry(rec.Country, rec.LineRevenue)
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	vectors := make([]Vector, 0, len(ids))
	for _, id := range ids {
		acc := groups[id]

		country := primaryCountry(acc.countries)

		vectors = append(vectors, Vector{
			CustomerID:     id,
			Recency:        wholeDays(horizon.Sub(acc.last)),
			Frequency:      len(acc.invoices),
			Monetary:       acc.monetary.InexactFloat64(),
			Shares:         shares(acc.category, acc.monetary),
			PrimaryCountry: country,
			IsUK:           country == transaction.UKCountry,
		})
	}

	return vectors
}

func wholeDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}

	return int(d / (24 * time.Hour))
}

func shares(category [NumCategories]decimal.Decimal, total decimal.Decimal) Shares {
	var s Shares
	if !total.IsPositive() {
		return s
	}

	t := total.InexactFloat64()
	for i, rev := range category {
		s[i] = rev.InexactFloat64() / t
	}

	return s
}

// primaryCountry picks the known country with the highest revenue. Ties keep
// the first one encountered.
func primaryCountry(countries []countryRevenue) string {
	best := -1
	for i, c := range countries {
		if c.country == transaction.UnknownCountry {
			continue
		}

		if best == -1 || c.revenue.GreaterThan(countries[best].revenue) {
			best = i
		}
	}

	if best == -1 {
		return UnknownCountry
	}

	return countries[best].country
}
