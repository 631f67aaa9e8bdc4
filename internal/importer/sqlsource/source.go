// Package sqlsource reads raw transaction rows from a relational table with
// the canonical column names invoice_no, stock_code, description, quantity,
// invoice_date, unit_price, customer_id and country.
package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/MrJamesThe3rd/segmenter/internal/transaction"
)

// tableName accepts "table" or "schema.table".
var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

const selectColumns = `invoice_no, stock_code, description, quantity, invoice_date, unit_price, customer_id, country`

// ValidateTable rejects anything but a plain, optionally schema-qualified,
// identifier. The name is interpolated into the query.
func ValidateTable(table string) error {
	if !tableName.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}

	return nil
}

// Load reads every row of table. Typed columns are converted to their string
// form so the Cleaner applies the same rules as for file exports. Line is the
// 1-based ordinal of the row in the result set.
func Load(ctx context.Context, db *sql.DB, table string) ([]transaction.RawRow, error) {
	if err := ValidateTable(table); err != nil {
		return nil, err
	}

	query := `SELECT ` + selectColumns + ` FROM ` + table

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	var out []transaction.RawRow

	for rows.Next() {
		var invoice, stock, description, quantity, date, price, customer, country sql.NullString

		if err := rows.Scan(&invoice, &stock, &description, &quantity, &date, &price, &customer, &country); err != nil {
			return nil, fmt.Errorf("scanning row %d: %w", len(out)+1, err)
		}

		out = append(out, transaction.RawRow{
			Line:        len(out) + 1,
			InvoiceNo:   invoice.String,
			StockCode:   stock.String,
			Description: description.String,
			Quantity:    quantity.String,
			InvoiceDate: date.String,
			UnitPrice:   price.String,
			CustomerID:  customer.String,
			Country:     country.String,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	slog.Info("loaded transactions from database", "table", table, "rows", len(out))

	return out, nil
}
