package clv

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/segmenter/internal/transaction"
)

// Summary is the purchase history of one customer reduced to the inputs of
// the BG/NBD and Gamma-Gamma models. Durations are in fractional days.
type Summary struct {
	CustomerID    string
	Frequency     int     // repeat purchase events
	Recency       float64 // first to last purchase event
	T             float64 // first purchase event to the dataset horizon
	MonetaryValue float64 // mean value of repeat events, zero when Frequency is 0
}

// HasMonetary reports whether the customer has at least one repeat event.
func (s Summary) HasMonetary() bool {
	return s.Frequency > 0
}

type event struct {
	invoice string
	at      time.Time
	value   decimal.Decimal
}

// Summarize groups records into invoices, treats each invoice as a purchase
// event and derives one Summary per customer, ordered by customer ID.
func Summarize(table *transaction.Table) []Summary {
	horizon := table.Horizon()

	type key struct{ customer, invoice string }

	events := make(map[key]*event)
	byCustomer := make(map[string][]*event)

	for i := range table.Records {
		rec := &table.Records[i]
		k := key{rec.CustomerID, rec.InvoiceNo}

		ev, ok := events[k]
		if !ok {
			ev = &event{invoice: rec.InvoiceNo, at: rec.InvoiceDate}
			events[k] = ev
			byCustomer[rec.CustomerID] = append(byCustomer[rec.CustomerID], ev)
		}

		if rec.InvoiceDate.Before(ev.at) {
			ev.at = rec.InvoiceDate
		}

		ev.value = ev.value.Add(rec.LineRevenue)
	}

	ids := make([]string, 0, len(byCustomer))
	for id := range byCustomer {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	summaries := make([]Summary, 0, len(ids))
	for _, id := range ids {
		evs := byCustomer[id]
		slices.SortFunc(evs, func(a, b *event) int {
			if c := a.at.Compare(b.at); c != 0 {
				return c
			}

			return cmp.Compare(a.invoice, b.invoice)
		})

		first, last := evs[0].at, evs[len(evs)-1].at

		s := Summary{
			CustomerID: id,
			Frequency:  len(evs) - 1,
			Recency:    days(last.Sub(first)),
			T:          days(horizon.Sub(first)),
		}

		if s.Frequency > 0 {
			total := decimal.Zero
			for _, ev := range evs[1:] {
				total = total.Add(ev.value)
			}

			s.MonetaryValue = total.Div(decimal.NewFromInt(int64(s.Frequency))).InexactFloat64()
		}

		summaries = append(summaries, s)
	}

	return summaries
}

func days(d time.Duration) float64 {
	return d.Hours() / 24
}
