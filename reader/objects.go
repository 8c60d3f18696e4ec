// Package reader parses existing PDF files far enough to inspect them.
//
// It walks the cross-reference data, resolves indirect objects (including
// objects packed into object streams), decrypts documents protected by the
// RC4 standard security handler, and exposes the page count, the text of
// every page and the document information dictionary.
//
//	doc, err := reader.Parse(data)
//	if err != nil {
//		return err
//	}
//	text, err := doc.Text()
//	info := doc.Info()
package reader

import (
	"fmt"
)

// Object is the interface satisfied by all PDF object types.
type Object interface {
	pdfObject()
	String() string
}

// Null represents the PDF null object.
type Null struct{}

func (Null) pdfObject()     {}
func (Null) String() string { return "null" }

// Boolean represents a PDF boolean value.
type Boolean bool

func (Boolean) pdfObject() {}
func (b Boolean) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Integer represents a PDF integer value.
type Integer int64

func (Integer) pdfObject()       {}
func (i Integer) String() string { return fmt.Sprintf("%d", int64(i)) }

// Real represents a PDF real value.
type Real float64

func (Real) pdfObject()       {}
func (r Real) String() string { return fmt.Sprintf("%g", float64(r)) }

// Name represents a PDF name object such as /Type.
type Name string

func (Name) pdfObject()       {}
func (n Name) String() string { return "/" + string(n) }

// String represents a PDF string, literal or hexadecimal.
type String struct {
	Value []byte
	IsHex bool
}

func (String) pdfObject() {}
func (s String) String() string {
	if s.IsHex {
		return fmt.Sprintf("<%x>", s.Value)
	}
	return fmt.Sprintf("(%s)", s.Value)
}

// Text decodes the string as a PDF text string.
func (s String) Text() string {
	return decodePDFString(s.Value)
}

// Array represents a PDF array.
type Array []Object

func (Array) pdfObject()       {}
func (a Array) String() string { return fmt.Sprintf("[array len=%d]", len(a)) }

// Dict represents a PDF dictionary.
type Dict map[Name]Object

func (Dict) pdfObject()       {}
func (d Dict) String() string { return fmt.Sprintf("<<dict len=%d>>", len(d)) }

// GetName returns the value of a name entry, or "" if absent.
func (d Dict) GetName(key Name) Name {
	if n, ok := d[key].(Name); ok {
		return n
	}
	return ""
}

// GetInt returns the value of a numeric entry truncated to an integer.
func (d Dict) GetInt(key Name) (int64, bool) {
	switch n := d[key].(type) {
	case Integer:
		return int64(n), true
	case Real:
		return int64(n), true
	}
	return 0, false
}

// GetDict returns a direct sub-dictionary, or nil.
func (d Dict) GetDict(key Name) Dict {
	if sub, ok := d[key].(Dict); ok {
		return sub
	}
	return nil
}

// GetArray returns a direct array entry, or nil.
func (d Dict) GetArray(key Name) Array {
	if arr, ok := d[key].(Array); ok {
		return arr
	}
	return nil
}

// Stream represents a PDF stream: a dictionary plus its encoded bytes.
type Stream struct {
	Dict Dict
	Data []byte
}

func (Stream) pdfObject()       {}
func (s Stream) String() string { return fmt.Sprintf("<<stream len=%d>>", len(s.Data)) }

// Reference is an indirect object reference such as "10 0 R".
type Reference struct {
	Number     int
	Generation int
}

func (Reference) pdfObject() {}
func (r Reference) String() string {
	return fmt.Sprintf("%d %d R", r.Number, r.Generation)
}

// IndirectObject is a parsed "N G obj ... endobj" definition.
type IndirectObject struct {
	Reference
	Value Object
}

func (IndirectObject) pdfObject() {}
func (o IndirectObject) String() string {
	return fmt.Sprintf("%d %d obj %s", o.Number, o.Generation, o.Value)
}
