package reader

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// maxObjectDepth bounds the nesting of arrays and dictionaries.
const maxObjectDepth = 256

// parser is a recursive descent parser for PDF syntax.
type parser struct {
	data  []byte
	pos   int
	depth int // current array/dictionary nesting

	// decrypt, when set, is applied to every string and stream body of the
	// object being parsed.
	decrypt func([]byte)
	// resolveLength resolves an indirect /Length value of a stream.
	resolveLength func(Reference) (int64, bool)
}

func newParser(data []byte) *parser {
	return &parser{data: data}
}

// skipWhitespace advances past whitespace and comments.
func (p *parser) skipWhitespace() {
	for p.pos < len(p.data) {
		b := p.data[p.pos]
		switch b {
		case ' ', '\t', '\n', '\r', '\f', 0:
			p.pos++
		case '%':
			// Comment: skip to end of line
			for p.pos < len(p.data) && p.data[p.pos] != '\n' && p.data[p.pos] != '\r' {
				p.pos++
			}
		default:
			return
		}
	}
}

// isWhitespace returns true if the byte is a PDF whitespace character.
func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == 0
}

// isDelimiter returns true if the byte is a PDF delimiter character.
func isDelimiter(b byte) bool {
	return b == '(' || b == ')' || b == '<' || b == '>' ||
		b == '[' || b == ']' || b == '{' || b == '}' ||
		b == '/' || b == '%'
}

// isRegular returns true if the byte is a regular (non-whitespace, non-delimiter) character.
func isRegular(b byte) bool {
	return !isWhitespace(b) && !isDelimiter(b)
}

// readToken reads the next token (keyword or number) as a string.
func (p *parser) readToken() string {
	p.skipWhitespace()
	start := p.pos
	for p.pos < len(p.data) && isRegular(p.data[p.pos]) {
		p.pos++
	}
	return string(p.data[start:p.pos])
}

// ParseObject parses the next PDF object from the current position.
func (p *parser) ParseObject() (Object, error) {
	p.skipWhitespace()
	if p.pos >= len(p.data) {
		return nil, io.ErrUnexpectedEOF
	}

	b := p.data[p.pos]

	switch {
	case b == '<':
		// Could be hex string or dictionary
		if p.pos+1 < len(p.data) && p.data[p.pos+1] == '<' {
			return p.parseDict()
		}
		return p.parseHexString()

	case b == '(':
		return p.parseLiteralString()

	case b == '/':
		return p.parseName()

	case b == '[':
		return p.parseArray()

	case b == 't' || b == 'f':
		return p.parseBoolean()

	case b == 'n':
		return p.parseNull()

	case b >= '0' && b <= '9', b == '+', b == '-', b == '.':
		return p.parseNumberOrRef()

	default:
		return nil, fmt.Errorf("unexpected character %q at position %d", b, p.pos)
	}
}

// parseName parses a PDF name object (/Name).
func (p *parser) parseName() (Name, error) {
	if p.data[p.pos] != '/' {
		return "", fmt.Errorf("expected '/' at position %d", p.pos)
	}
	p.pos++ // skip '/'

	var buf bytes.Buffer
	for p.pos < len(p.data) {
		b := p.data[p.pos]
		if isWhitespace(b) || isDelimiter(b) {
			break
		}
		if b == '#' && p.pos+2 < len(p.data) {
			// Hex-encoded character
			hi := unhex(p.data[p.pos+1])
			lo := unhex(p.data[p.pos+2])
			if hi >= 0 && lo >= 0 {
				buf.WriteByte(byte(hi<<4 | lo))
				p.pos += 3
				continue
			}
		}
		buf.WriteByte(b)
		p.pos++
	}
	return Name(buf.String()), nil
}

// parseBoolean parses a PDF boolean (true/false).
func (p *parser) parseBoolean() (Boolean, error) {
	tok := p.readToken()
	switch tok {
	case "true":
		return Boolean(true), nil
	case "false":
		return Boolean(false), nil
	default:
		return false, fmt.Errorf("expected boolean, got %q", tok)
	}
}

// parseNull parses a PDF null object.
func (p *parser) parseNull() (Null, error) {
	tok := p.readToken()
	if tok != "null" {
		return Null{}, fmt.Errorf("expected null, got %q", tok)
	}
	return Null{}, nil
}

// parseNumberOrRef parses a number (integer or real) or an indirect reference (N G R).
func (p *parser) parseNumberOrRef() (Object, error) {
	savedPos := p.pos
	tok := p.readToken()

	// Try integer first
	intVal, err := strconv.ParseInt(tok, 10, 64)
	if err == nil {
		// Could be start of an indirect reference "N G R"
		pos2 := p.pos
		p.skipWhitespace()
		if p.pos < len(p.data) && p.data[p.pos] >= '0' && p.data[p.pos] <= '9' {
			tok2 := p.readToken()
			genVal, err2 := strconv.ParseInt(tok2, 10, 64)
			if err2 == nil {
				p.skipWhitespace()
				if p.pos < len(p.data) && p.data[p.pos] == 'R' &&
					(p.pos+1 == len(p.data) || !isRegular(p.data[p.pos+1])) {
					p.pos++ // consume 'R'
					return Reference{Number: int(intVal), Generation: int(genVal)}, nil
				}
			}
		}
		// Not a reference, restore position after first token
		p.pos = pos2
		return Integer(intVal), nil
	}

	// Try real number
	p.pos = savedPos
	tok = p.readToken()
	realVal, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q at position %d", tok, savedPos)
	}
	return Real(realVal), nil
}

// parseLiteralString parses a PDF literal string: (text).
func (p *parser) parseLiteralString() (String, error) {
	if p.data[p.pos] != '(' {
		return String{}, fmt.Errorf("expected '(' at position %d", p.pos)
	}
	p.pos++ // skip '('

	var buf bytes.Buffer
	depth := 1

	for p.pos < len(p.data) && depth > 0 {
		b := p.data[p.pos]
		p.pos++

		switch b {
		case '(':
			depth++
			buf.WriteByte(b)
		case ')':
			depth--
			if depth > 0 {
				buf.WriteByte(b)
			}
		case '\\':
			if p.pos >= len(p.data) {
				return String{}, fmt.Errorf("unexpected end of string escape")
			}
			esc := p.data[p.pos]
			p.pos++
			switch esc {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			case 'b':
				buf.WriteByte('\b')
			case 'f':
				buf.WriteByte('\f')
			case '(', ')', '\\':
				buf.WriteByte(esc)
			default:
				// Octal escape
				if esc >= '0' && esc <= '7' {
					oct := int(esc - '0')
					for i := 0; i < 2 && p.pos < len(p.data) && p.data[p.pos] >= '0' && p.data[p.pos] <= '7'; i++ {
						oct = oct*8 + int(p.data[p.pos]-'0')
						p.pos++
					}
					buf.WriteByte(byte(oct))
				} else {
					buf.WriteByte(esc)
				}
			}
		default:
			buf.WriteByte(b)
		}
	}

	if depth != 0 {
		return String{}, fmt.Errorf("unterminated literal string")
	}
	data := buf.Bytes()
	if p.decrypt != nil {
		p.decrypt(data)
	}
	return String{Value: data}, nil
}

// parseHexString parses a PDF hex string: <hex digits>.
func (p *parser) parseHexString() (String, error) {
	if p.data[p.pos] != '<' {
		return String{}, fmt.Errorf("expected '<' at position %d", p.pos)
	}
	p.pos++ // skip '<'

	var buf bytes.Buffer
	var hi int = -1

	for p.pos < len(p.data) {
		b := p.data[p.pos]
		p.pos++

		if b == '>' {
			if hi >= 0 {
				buf.WriteByte(byte(hi << 4)) // trailing nibble
			}
			data := buf.Bytes()
			if p.decrypt != nil {
				p.decrypt(data)
			}
			return String{Value: data, IsHex: true}, nil
		}

		if isWhitespace(b) {
			continue
		}

		v := unhex(b)
		if v < 0 {
			return String{}, fmt.Errorf("invalid hex character %q in hex string", b)
		}

		if hi < 0 {
			hi = v
		} else {
			buf.WriteByte(byte(hi<<4 | v))
			hi = -1
		}
	}

	return String{}, fmt.Errorf("unterminated hex string")
}

func (p *parser) enter() error {
	if p.depth >= maxObjectDepth {
		return corrupt("objects nested deeper than %d levels at position %d", maxObjectDepth, p.pos)
	}
	p.depth++
	return nil
}

func (p *parser) leave() {
	p.depth--
}

// parseArray parses a PDF array: [obj1 obj2 ...].
func (p *parser) parseArray() (Array, error) {
	if p.data[p.pos] != '[' {
		return nil, fmt.Errorf("expected '[' at position %d", p.pos)
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	p.pos++ // skip '['

	var arr Array
	for {
		p.skipWhitespace()
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("unterminated array")
		}
		if p.data[p.pos] == ']' {
			p.pos++ // skip ']'
			return arr, nil
		}
		obj, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("in array: %w", err)
		}
		arr = append(arr, obj)
	}
}

// parseDict parses a PDF dictionary: << /Key Value ... >>.
func (p *parser) parseDict() (Dict, error) {
	if p.pos+1 >= len(p.data) || p.data[p.pos] != '<' || p.data[p.pos+1] != '<' {
		return nil, fmt.Errorf("expected '<<' at position %d", p.pos)
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	p.pos += 2 // skip '<<'

	d := make(Dict)
	for {
		p.skipWhitespace()
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("unterminated dictionary")
		}
		if p.pos+1 < len(p.data) && p.data[p.pos] == '>' && p.data[p.pos+1] == '>' {
			p.pos += 2 // skip '>>'
			return d, nil
		}
		// Key must be a name
		key, err := p.parseName()
		if err != nil {
			return nil, fmt.Errorf("dict key: %w", err)
		}
		// Value is any object
		val, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("dict value for %s: %w", key, err)
		}
		d[key] = val
	}
}

// ParseIndirectObject parses "N G obj ... endobj".
func (p *parser) ParseIndirectObject() (*IndirectObject, error) {
	p.skipWhitespace()

	// Read object number
	numTok := p.readToken()
	num, err := strconv.ParseInt(numTok, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("expected object number, got %q", numTok)
	}

	// Read generation number
	p.skipWhitespace()
	genTok := p.readToken()
	gen, err := strconv.ParseInt(genTok, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("expected generation number, got %q", genTok)
	}

	// Read "obj" keyword
	p.skipWhitespace()
	objTok := p.readToken()
	if objTok != "obj" {
		return nil, fmt.Errorf("expected 'obj', got %q", objTok)
	}

	// Parse the object value
	val, err := p.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("object %d %d: %w", num, gen, err)
	}

	// Check for stream
	p.skipWhitespace()
	if p.pos+6 <= len(p.data) && string(p.data[p.pos:p.pos+6]) == "stream" {
		dict, ok := val.(Dict)
		if !ok {
			return nil, fmt.Errorf("stream object %d %d has non-dict header", num, gen)
		}

		p.pos += 6 // skip "stream"
		// Skip single \r\n or \n after "stream"
		if p.pos < len(p.data) && p.data[p.pos] == '\r' {
			p.pos++
		}
		if p.pos < len(p.data) && p.data[p.pos] == '\n' {
			p.pos++
		}

		streamData, err := p.readStreamBody(dict)
		if err != nil {
			return nil, fmt.Errorf("stream object %d %d: %w", num, gen, err)
		}
		if p.decrypt != nil {
			p.decrypt(streamData)
		}

		val = Stream{Dict: dict, Data: streamData}
	}

	// Skip "endobj"
	p.skipWhitespace()
	if p.pos+6 <= len(p.data) && string(p.data[p.pos:p.pos+6]) == "endobj" {
		p.pos += 6
	}

	return &IndirectObject{
		Reference: Reference{Number: int(num), Generation: int(gen)},
		Value:     val,
	}, nil
}

// readStreamBody reads the bytes between "stream" and "endstream". The
// declared /Length is trusted only when "endstream" follows it; otherwise the
// body runs up to the next "endstream" keyword.
func (p *parser) readStreamBody(dict Dict) ([]byte, error) {
	length := int64(-1)
	switch v := dict["Length"].(type) {
	case Integer:
		length = int64(v)
	case Real:
		length = int64(v)
	case Reference:
		if p.resolveLength != nil {
			if n, ok := p.resolveLength(v); ok {
				length = n
			}
		}
	}

	start := p.pos
	if length >= 0 && start+int(length) <= len(p.data) {
		end := start + int(length)
		q := &parser{data: p.data, pos: end}
		q.skipWhitespace()
		if bytes.HasPrefix(p.data[q.pos:], []byte("endstream")) {
			p.pos = q.pos + len("endstream")
			return bytes.Clone(p.data[start:end]), nil
		}
	}

	idx := bytes.Index(p.data[start:], []byte("endstream"))
	if idx < 0 {
		return nil, corrupt("missing endstream")
	}
	end := start + idx
	p.pos = end + len("endstream")
	// The EOL before endstream is not part of the data.
	if end > start && p.data[end-1] == '\n' {
		end--
	}
	if end > start && p.data[end-1] == '\r' {
		end--
	}
	return bytes.Clone(p.data[start:end]), nil
}

// unhex returns the numeric value of a hex digit, or -1 if not valid.
func unhex(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10
	default:
		return -1
	}
}
