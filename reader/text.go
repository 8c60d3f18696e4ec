package reader

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// ExtractText returns the text shown by the page's content streams.
//
// Strings passed to the text-showing operators (Tj, TJ, ' and ") are decoded
// as PDF text strings; font encodings and ToUnicode maps are not consulted,
// so text set in symbolic or CID fonts may come out garbled.
func (p *Page) ExtractText() (string, error) {
	data, err := p.ContentStream()
	if err != nil {
		return "", err
	}
	return extractText(data), nil
}

// textWriter accumulates extracted text, collapsing runs of separators.
type textWriter struct {
	buf []byte
}

func (w *textWriter) text(s string) {
	w.buf = append(w.buf, s...)
}

func (w *textWriter) String() string {
	return string(w.buf)
}

// sep writes a word (' ') or line ('\n') break unless the output is empty or
// already ends in a break. A line break upgrades a trailing space.
func (w *textWriter) sep(b byte) {
	n := len(w.buf)
	if n == 0 {
		return
	}
	switch last := w.buf[n-1]; {
	case last == '\n':
		return
	case last == ' ' && b == ' ':
		return
	case last == ' ':
		w.buf[n-1] = b
		return
	}
	w.buf = append(w.buf, b)
}

// kernSpaceThreshold is the TJ displacement, in thousandths of a text space
// unit, beyond which an inter-word gap is assumed.
const kernSpaceThreshold = 200

// extractText tokenizes a content stream with the object parser and
// interprets the text operators.
func extractText(data []byte) string {
	var (
		out      textWriter
		operands []Object
		inText   bool
	)
	p := newParser(data)

	for {
		p.skipWhitespace()
		if p.pos >= len(p.data) {
			break
		}

		if isOperandStart(p.data[p.pos]) {
			start := p.pos
			obj, err := p.ParseObject()
			if err != nil {
				// Damaged operand; resume where the parse gave up.
				if p.pos <= start {
					p.pos = start + 1
				}
				operands = operands[:0]
				continue
			}
			operands = append(operands, obj)
			continue
		}

		op := p.readToken()
		if op == "" {
			p.pos++ // stray delimiter such as ']' or '}'
			continue
		}

		switch op {
		case "true", "false":
			operands = append(operands, Boolean(op == "true"))
			continue
		case "null":
			operands = append(operands, Null{})
			continue
		case "BT":
			inText = true
		case "ET":
			inText = false
			out.sep('\n')
		case "ID":
			p.skipInlineImage()
		}

		if inText {
			showText(&out, op, operands)
		}
		operands = operands[:0]
	}

	return strings.TrimSpace(out.String())
}

func showText(out *textWriter, op string, operands []Object) {
	switch op {
	case "Tj":
		if s, ok := lastString(operands); ok {
			out.text(s.Text())
		}
	case "'", "\"":
		out.sep('\n')
		if s, ok := lastString(operands); ok {
			out.text(s.Text())
		}
	case "TJ":
		if len(operands) == 0 {
			return
		}
		arr, _ := operands[len(operands)-1].(Array)
		for _, item := range arr {
			switch v := item.(type) {
			case String:
				out.text(v.Text())
			case Integer:
				if -v > kernSpaceThreshold {
					out.sep(' ')
				}
			case Real:
				if -v > kernSpaceThreshold {
					out.sep(' ')
				}
			}
		}
	case "T*":
		out.sep('\n')
	case "Td", "TD":
		if len(operands) == 2 && numberValue(operands[1]) != 0 {
			out.sep('\n')
		} else {
			out.sep(' ')
		}
	case "Tm":
		out.sep(' ')
	}
}

func lastString(operands []Object) (String, bool) {
	if len(operands) == 0 {
		return String{}, false
	}
	s, ok := operands[len(operands)-1].(String)
	return s, ok
}

func numberValue(obj Object) float64 {
	switch v := obj.(type) {
	case Integer:
		return float64(v)
	case Real:
		return float64(v)
	}
	return 0
}

func isOperandStart(b byte) bool {
	switch {
	case b == '(', b == '<', b == '/', b == '[':
		return true
	case b >= '0' && b <= '9', b == '+', b == '-', b == '.':
		return true
	}
	return false
}

// skipInlineImage moves past the binary data of an inline image, which runs
// from just after "ID" to an "EI" operator surrounded by whitespace.
func (p *parser) skipInlineImage() {
	for i := p.pos; i+2 <= len(p.data); i++ {
		if p.data[i] != 'E' || p.data[i+1] != 'I' {
			continue
		}
		before := i == 0 || isWhitespace(p.data[i-1])
		after := i+2 == len(p.data) || isWhitespace(p.data[i+2]) || isDelimiter(p.data[i+2])
		if before && after {
			p.pos = i + 2
			return
		}
	}
	p.pos = len(p.data)
}

var (
	utf16BEBOM = []byte{0xFE, 0xFF}
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
)

// decodePDFString converts a PDF text string to UTF-8. Strings starting with
// a UTF-16BE or UTF-8 byte order mark are decoded accordingly; anything else
// is PDFDocEncoding.
func decodePDFString(data []byte) string {
	switch {
	case bytes.HasPrefix(data, utf16BEBOM):
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		if out, err := dec.Bytes(data); err == nil {
			return string(out)
		}
	case bytes.HasPrefix(data, utf8BOM):
		if rest := data[len(utf8BOM):]; utf8.Valid(rest) {
			return string(rest)
		}
	}
	return decodePDFDocEncoding(data)
}

// pdfDocDiffs lists the PDFDocEncoding code points that differ from
// ISO 8859-1 (ISO 32000-1, Annex D.2).
var pdfDocDiffs = map[byte]rune{
	0x18: '˘', 0x19: 'ˇ', 0x1A: 'ˆ', 0x1B: '˙',
	0x1C: '˝', 0x1D: '˛', 0x1E: '˚', 0x1F: '˜',
	0x80: '•', 0x81: '†', 0x82: '‡', 0x83: '…',
	0x84: '—', 0x85: '–', 0x86: 'ƒ', 0x87: '⁄',
	0x88: '‹', 0x89: '›', 0x8A: '−', 0x8B: '‰',
	0x8C: '„', 0x8D: '“', 0x8E: '”', 0x8F: '‘',
	0x90: '’', 0x91: '‚', 0x92: '™', 0x93: 'ﬁ',
	0x94: 'ﬂ', 0x95: 'Ł', 0x96: 'Œ', 0x97: 'Š',
	0x98: 'Ÿ', 0x99: 'Ž', 0x9A: 'ı', 0x9B: 'ł',
	0x9C: 'œ', 0x9D: 'š', 0x9E: 'ž', 0xA0: '€',
}

func decodePDFDocEncoding(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data))
	for _, b := range data {
		if r, ok := pdfDocDiffs[b]; ok {
			sb.WriteRune(r)
			continue
		}
		sb.WriteRune(rune(b))
	}
	return sb.String()
}
