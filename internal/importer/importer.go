package importer

import (
	"io"

	"github.com/MrJamesThe3rd/segmenter/internal/transaction"
)

// Format selects the column layout of a transaction export.
type Format string

const (
	FormatAuto           Format = "auto"
	FormatOnlineRetail   Format = "online-retail"
	FormatOnlineRetailII Format = "online-retail-ii"
)

type Importer interface {
	Parse(r io.Reader) ([]transaction.RawRow, error)
}
