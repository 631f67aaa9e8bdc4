package importer

import (
	"fmt"
	"io"

	"github.com/MrJamesThe3rd/segmenter/internal/importer/retail"
	"github.com/MrJamesThe3rd/segmenter/internal/transaction"
)

type Service struct {
	importers map[Format]Importer
}

func NewService() *Service {
	return &Service{
		importers: map[Format]Importer{
			FormatAuto:           retail.New(),
			FormatOnlineRetail:   retail.New(retail.OnlineRetail),
			FormatOnlineRetailII: retail.New(retail.OnlineRetailII),
		},
	}
}

// Import parses r with the importer registered for format. An empty format
// means auto-detection.
func (s *Service) Import(format Format, r io.Reader) ([]transaction.RawRow, error) {
	if format == "" {
		format = FormatAuto
	}

	importer, ok := s.importers[format]
	if !ok {
		return nil, fmt.Errorf("unknown format: %s", format)
	}

	return importer.Parse(r)
}
