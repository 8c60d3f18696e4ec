package reader

import (
	"bytes"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"
)

// Document is a parsed PDF document.
type Document struct {
	Version string // PDF version from the file header, e.g. "1.7"

	xref       xrefTable
	trailer    Dict
	data       []byte
	pages      []*Page
	encrypt    *encryptInfo // non-nil once the document has been decrypted
	encryptRef *Reference   // the /Encrypt object, which is never decrypted
	objStreams map[int]*objectStream
}

// objectStream is a decoded /Type /ObjStm stream.
type objectStream struct {
	data    []byte
	offsets []int // offsets[i] is where the i-th packed object starts
}

// Open reads and parses a PDF file.
func Open(filename string, opts ...Option) (*Document, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, &Error{Op: "Open", Err: err}
	}
	return Parse(data, opts...)
}

// ReadFrom reads r to the end and parses the result.
func ReadFrom(r io.Reader, opts ...Option) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &Error{Op: "ReadFrom", Err: err}
	}
	return Parse(data, opts...)
}

// Parse builds a Document from the complete bytes of a PDF file. When the
// declared cross-reference data is unusable the object table is rebuilt by
// scanning the file.
func Parse(data []byte, opts ...Option) (*Document, error) {
	cfg := newParseConfig(opts)

	doc := &Document{
		Version:    parseVersion(data),
		data:       data,
		objStreams: make(map[int]*objectStream),
	}
	if doc.Version == "" {
		return nil, newError("Parse", corrupt("missing %%PDF header"))
	}

	xref, trailer, err := readDeclaredXRef(data)
	if err != nil {
		if xref, trailer, err = reconstructXRef(data); err != nil {
			return nil, newError("Parse", err)
		}
	}
	doc.xref = xref
	doc.trailer = trailer

	if _, ok := doc.trailer["Encrypt"]; ok {
		if ref, ok := doc.trailer["Encrypt"].(Reference); ok {
			doc.encryptRef = &ref
		}
		if err := doc.decrypt(cfg.password); err != nil {
			return nil, newError("Parse", err)
		}
	}

	if err := doc.buildPageList(); err != nil {
		return nil, newError("Parse", err)
	}
	return doc, nil
}

func readDeclaredXRef(data []byte) (xrefTable, Dict, error) {
	startXRef, err := findStartXRef(data)
	if err != nil {
		return nil, nil, err
	}
	return readXRef(data, startXRef)
}

// parseVersion extracts the version from the "%PDF-x.y" header, which may be
// preceded by junk within the first kilobyte.
func parseVersion(data []byte) string {
	head := data[:min(1024, len(data))]
	idx := bytes.Index(head, []byte("%PDF-"))
	if idx < 0 {
		return ""
	}
	rest := head[idx+len("%PDF-"):]
	end := 0
	for end < len(rest) && (rest[end] == '.' || (rest[end] >= '0' && rest[end] <= '9')) {
		end++
	}
	return string(rest[:end])
}

// NumPages returns the number of pages.
func (d *Document) NumPages() int {
	return len(d.pages)
}

// Page returns the page at the given 1-based index.
func (d *Document) Page(n int) (*Page, error) {
	if n < 1 || n > len(d.pages) {
		return nil, fmt.Errorf("page %d out of range [1, %d]", n, len(d.pages))
	}
	return d.pages[n-1], nil
}

// Pages returns an iterator over all pages. The index is 1-based.
func (d *Document) Pages() iter.Seq2[int, *Page] {
	return func(yield func(int, *Page) bool) {
		for i, page := range d.pages {
			if !yield(i+1, page) {
				return
			}
		}
	}
}

// Text returns the text of every page, pages separated by a blank line.
// A document whose pages carry no text operators yields "".
func (d *Document) Text() (string, error) {
	texts := make([]string, 0, len(d.pages))
	for n, page := range d.Pages() {
		text, err := page.ExtractText()
		if err != nil {
			return "", newError("Text", fmt.Errorf("page %d: %w", n, err))
		}
		texts = append(texts, text)
	}
	return strings.Join(texts, "\n\n"), nil
}

// Catalog returns the document catalog (the /Root dictionary).
func (d *Document) Catalog() (Dict, error) {
	rootObj, ok := d.trailer["Root"]
	if !ok {
		return nil, corrupt("missing /Root in trailer")
	}
	resolved, err := d.resolveIfRef(rootObj)
	if err != nil {
		return nil, fmt.Errorf("resolving /Root: %w", err)
	}
	catalog, ok := resolved.(Dict)
	if !ok {
		return nil, corrupt("/Root is not a dictionary")
	}
	return catalog, nil
}

// ResolveReference resolves an indirect reference. Free or missing objects
// resolve to Null.
func (d *Document) ResolveReference(ref Reference) (Object, error) {
	return d.resolve(ref)
}

func (d *Document) resolve(ref Reference) (Object, error) {
	entry, ok := d.xref[ref.Number]
	if !ok || !entry.InUse {
		return Null{}, nil
	}
	if entry.Compressed {
		return d.resolveCompressed(ref, entry)
	}

	if entry.Offset < 0 || entry.Offset >= int64(len(d.data)) {
		return nil, corrupt("object %d offset %d out of bounds", ref.Number, entry.Offset)
	}

	p := newParser(d.data[entry.Offset:])
	if d.encryptRef == nil || *d.encryptRef != ref {
		p.decrypt = d.objectDecrypter(ref.Number, ref.Generation)
	}
	p.resolveLength = d.resolveLength

	obj, err := p.ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("parsing object %d: %w", ref.Number, err)
	}
	return obj.Value, nil
}

// resolveLength resolves an indirect stream /Length. Lengths are plain
// integers at file offsets, so no further indirection is followed.
func (d *Document) resolveLength(ref Reference) (int64, bool) {
	entry, ok := d.xref[ref.Number]
	if !ok || !entry.InUse || entry.Compressed {
		return 0, false
	}
	if entry.Offset < 0 || entry.Offset >= int64(len(d.data)) {
		return 0, false
	}
	obj, err := newParser(d.data[entry.Offset:]).ParseIndirectObject()
	if err != nil {
		return 0, false
	}
	n, ok := obj.Value.(Integer)
	return int64(n), ok
}

// resolveCompressed reads an object packed into an object stream. Objects in
// object streams are not individually encrypted.
func (d *Document) resolveCompressed(ref Reference, entry xrefEntry) (Object, error) {
	stm, err := d.loadObjectStream(entry.Stream)
	if err != nil {
		return nil, fmt.Errorf("object %d in object stream %d: %w", ref.Number, entry.Stream, err)
	}
	if entry.Index < 0 || entry.Index >= len(stm.offsets) {
		return nil, corrupt("object %d index %d outside object stream %d", ref.Number, entry.Index, entry.Stream)
	}

	p := newParser(stm.data[stm.offsets[entry.Index]:])
	obj, err := p.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("parsing object %d: %w", ref.Number, err)
	}
	return obj, nil
}

func (d *Document) loadObjectStream(num int) (*objectStream, error) {
	if stm, ok := d.objStreams[num]; ok {
		return stm, nil
	}

	entry, ok := d.xref[num]
	if !ok || !entry.InUse || entry.Compressed {
		return nil, corrupt("object stream %d is not a top-level object", num)
	}
	obj, err := d.resolve(Reference{Number: num, Generation: entry.Generation})
	if err != nil {
		return nil, err
	}
	s, ok := obj.(Stream)
	if !ok {
		return nil, corrupt("object %d is not a stream", num)
	}

	decoded, err := decodeStream(s)
	if err != nil {
		return nil, err
	}
	n, _ := s.Dict.GetInt("N")
	first, _ := s.Dict.GetInt("First")
	if n < 0 || first < 0 || first > int64(len(decoded)) {
		return nil, corrupt("invalid object stream header")
	}

	header := newParser(decoded[:first])
	stm := &objectStream{data: decoded, offsets: make([]int, 0, n)}
	for range n {
		if _, err := strconv.Atoi(header.readToken()); err != nil {
			return nil, corrupt("invalid object stream header")
		}
		off, err := strconv.Atoi(header.readToken())
		if err != nil || int(first)+off > len(decoded) {
			return nil, corrupt("invalid object stream offset")
		}
		stm.offsets = append(stm.offsets, int(first)+off)
	}

	d.objStreams[num] = stm
	return stm, nil
}

func (d *Document) resolveIfRef(obj Object) (Object, error) {
	if ref, ok := obj.(Reference); ok {
		return d.resolve(ref)
	}
	if obj == nil {
		return Null{}, nil
	}
	return obj, nil
}

// IsEncrypted reports whether the document declares a security handler.
func (d *Document) IsEncrypted() bool {
	return d.encrypt != nil
}
