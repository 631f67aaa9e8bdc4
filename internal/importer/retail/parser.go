package retail

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	enc "github.com/MrJamesThe3rd/segmenter/internal/encoding"
	"github.com/MrJamesThe3rd/segmenter/internal/transaction"
)

// headerSearchLines bounds how far into the file the header may appear.
const headerSearchLines = 64

var delimiters = []rune{',', ';', '\t'}

var ErrNoHeader = errors.New("no recognizable header")

// Parser reads header-bearing delimited transaction exports. It detects the
// charset, the delimiter and which Profile the header matches.
type Parser struct {
	profiles []Profile
}

// New returns a parser that tries profiles in order, or every known profile
// when none are given.
func New(profiles ...Profile) *Parser {
	if len(profiles) == 0 {
		profiles = Profiles()
	}

	return &Parser{profiles: profiles}
}

func (p *Parser) Parse(r io.Reader) ([]transaction.RawRow, error) {
	utf8r, charset, err := enc.Detect(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	data, err := io.ReadAll(utf8r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	delim, ok := p.sniffDelimiter(data)
	if !ok {
		return nil, fmt.Errorf("%w: expected columns for %s", ErrNoHeader, p.names())
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delim
	reader.FieldsPerRecord = -1

	var (
		profile   *Profile
		cols      []int
		rows      []transaction.RawRow
		malformed int
	)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}

		var perr *csv.ParseError
		if errors.As(err, &perr) {
			if profile != nil {
				rows = append(rows, transaction.RawRow{Line: perr.StartLine, Malformed: true})
				malformed++
			}

			continue
		}

		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		line, _ := reader.FieldPos(0)

		if profile == nil {
			profile, cols = p.detectProfile(record)
			if profile == nil && line > headerSearchLines {
				break
			}

			continue
		}

		if blank(record) {
			continue
		}

		rows = append(rows, toRawRow(record, cols, line))
	}

	if profile == nil {
		return nil, fmt.Errorf("%w: expected columns for %s", ErrNoHeader, p.names())
	}

	slog.Info("parsed transaction export",
		"profile", profile.Name, "charset", charset, "delimiter", string(delim), "rows", len(rows), "malformed", malformed)

	return rows, nil
}

// sniffDelimiter returns the first delimiter under which one of the leading
// lines parses as a known header.
func (p *Parser) sniffDelimiter(data []byte) (rune, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for n := 0; n < headerSearchLines && scanner.Scan(); n++ {
		line := scanner.Text()

		for _, d := range delimiters {
			if !strings.ContainsRune(line, d) {
				continue
			}

			reader := csv.NewReader(strings.NewReader(line))
			reader.Comma = d
			reader.LazyQuotes = true

			record, err := reader.Read()
			if err != nil {
				continue
			}

			if profile, _ := p.detectProfile(record); profile != nil {
				return d, true
			}
		}
	}

	return 0, false
}

// detectProfile matches a record against the profiles. It returns the
// matched profile and, per RawRow field, the column index.
func (p *Parser) detectProfile(record []string) (*Profile, []int) {
	index := make(map[string]int, len(record))
	for i, cell := range record {
		if name := normalizeHeader(cell); name != "" {
			if _, dup := index[name]; !dup {
				index[name] = i
			}
		}
	}

	for i := range p.profiles {
		cols, ok := matchProfile(&p.profiles[i], index)
		if ok {
			return &p.profiles[i], cols
		}
	}

	return nil, nil
}

func matchProfile(profile *Profile, index map[string]int) ([]int, bool) {
	names := profile.columns()
	cols := make([]int, len(names))

	for i, name := range names {
		idx, ok := index[normalizeHeader(name)]
		if !ok {
			return nil, false
		}

		cols[i] = idx
	}

	return cols, true
}

func toRawRow(record []string, cols []int, line int) transaction.RawRow {
	cell := func(field int) string {
		idx := cols[field]
		if idx >= len(record) {
			return ""
		}

		return strings.TrimSpace(record[idx])
	}

	return transaction.RawRow{
		Line:        line,
		InvoiceNo:   cell(0),
		StockCode:   cell(1),
		Description: cell(2),
		Quantity:    cell(3),
		InvoiceDate: cell(4),
		UnitPrice:   cell(5),
		CustomerID:  cell(6),
		Country:     cell(7),
	}
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}

	return true
}

func (p *Parser) names() string {
	names := make([]string, len(p.profiles))
	for i, profile := range p.profiles {
		names[i] = profile.Name
	}

	return strings.Join(names, ", ")
}
