package retail

import (
	"strings"
	"unicode"
)

// Profile describes the header names of one transaction export layout.
// Names are compared after normalization, so "Customer ID", "CustomerID" and
// "customer_id" are the same column.
type Profile struct {
	Name        string
	InvoiceNo   string
	StockCode   string
	Description string
	Quantity    string
	InvoiceDate string
	UnitPrice   string
	CustomerID  string
	Country     string
}

// columns returns the header names in RawRow field order.
func (p Profile) columns() []string {
	return []string{
		p.InvoiceNo, p.StockCode, p.Description, p.Quantity,
		p.InvoiceDate, p.UnitPrice, p.CustomerID, p.Country,
	}
}

var (
	OnlineRetail = Profile{
		Name:        "online-retail",
		InvoiceNo:   "InvoiceNo",
		StockCode:   "StockCode",
		Description: "Description",
		Quantity:    "Quantity",
		InvoiceDate: "InvoiceDate",
		UnitPrice:   "UnitPrice",
		CustomerID:  "CustomerID",
		Country:     "Country",
	}

	OnlineRetailII = Profile{
		Name:        "online-retail-ii",
		InvoiceNo:   "Invoice",
		StockCode:   "StockCode",
		Description: "Description",
		Quantity:    "Quantity",
		InvoiceDate: "InvoiceDate",
		UnitPrice:   "Price",
		CustomerID:  "Customer ID",
		Country:     "Country",
	}
)

// Profiles is the ordered list of layouts tried during auto-detection.
func Profiles() []Profile {
	return []Profile{OnlineRetail, OnlineRetailII}
}

func normalizeHeader(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}

	return b.String()
}
