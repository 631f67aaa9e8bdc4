package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const peekSize = 4096

// Charset names the encoding a reader was decoded from.
type Charset string

const (
	UTF8        Charset = "UTF-8"
	UTF16LE     Charset = "UTF-16LE"
	UTF16BE     Charset = "UTF-16BE"
	Windows1252 Charset = "windows-1252"
	ISO88599    Charset = "ISO-8859-9"
	ISO885915   Charset = "ISO-8859-15"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

var decoders = map[Charset]encoding.Encoding{
	UTF16LE:     unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	UTF16BE:     unicode.UTF16(unicode.BigEndian, unicode.UseBOM),
	Windows1252: charmap.Windows1252,
	ISO88599:    charmap.ISO8859_9,
	ISO885915:   charmap.ISO8859_15,
}

// NewUTF8Reader detects the encoding of the input and returns a reader
// that decodes the content to UTF-8.
func NewUTF8Reader(r io.Reader) (io.Reader, error) {
	out, _, err := Detect(r)
	return out, err
}

// Detect is NewUTF8Reader that also reports the detected charset.
//
// Detection order:
//  1. Check for BOM (UTF-8 BOM is stripped; UTF-16 LE/BE is decoded)
//  2. Validate if the content is valid UTF-8 and return as-is
//  3. Heuristic detection via chardet
//  4. Fallback to Windows-1252
func Detect(r io.Reader) (io.Reader, Charset, error) {
	br := bufio.NewReaderSize(r, peekSize)

	buf, err := br.Peek(peekSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, "", fmt.Errorf("peek: %w", err)
	}

	charset := sniff(buf, len(buf) == peekSize)

	switch charset {
	case UTF8:
		if bytes.HasPrefix(buf, bomUTF8) {
			_, _ = br.Discard(len(bomUTF8))
		}

		return br, UTF8, nil
	default:
		return transform.NewReader(br, decoders[charset].NewDecoder()), charset, nil
	}
}

func sniff(buf []byte, truncated bool) Charset {
	switch {
	case bytes.HasPrefix(buf, bomUTF8):
		return UTF8
	case bytes.HasPrefix(buf, bomUTF16LE):
		return UTF16LE
	case bytes.HasPrefix(buf, bomUTF16BE):
		return UTF16BE
	}

	if validUTF8(buf, truncated) {
		return UTF8
	}

	result, err := chardet.NewTextDetector().DetectBest(buf)
	if err == nil {
		switch result.Charset {
		case "UTF-8":
			return UTF8
		case "ISO-8859-1", "windows-1252":
			return Windows1252
		case "ISO-8859-9":
			return ISO88599
		case "ISO-8859-15":
			return ISO885915
		}
	}

	return Windows1252
}

// validUTF8 ignores an incomplete rune at the end of a truncated peek.
func validUTF8(buf []byte, truncated bool) bool {
	if !truncated {
		return utf8.Valid(buf)
	}

	for i := 1; i <= utf8.UTFMax && i <= len(buf); i++ {
		if utf8.RuneStart(buf[len(buf)-i]) {
			if !utf8.FullRune(buf[len(buf)-i:]) {
				buf = buf[:len(buf)-i]
			}

			break
		}
	}

	return utf8.Valid(buf)
}
