package reader

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
)

// xrefEntry locates one indirect object.
type xrefEntry struct {
	Offset     int64
	Generation int
	InUse      bool

	// Compressed entries live inside the object stream Stream at position
	// Index rather than at a file offset.
	Compressed bool
	Stream     int
	Index      int
}

// xrefTable maps object numbers to their locations.
type xrefTable map[int]xrefEntry

// findStartXRef locates the "startxref" offset near the end of the file.
func findStartXRef(data []byte) (int64, error) {
	searchLen := min(1024, len(data))
	tail := data[len(data)-searchLen:]

	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, corrupt("startxref not found")
	}

	p := newParser(tail[idx+len("startxref"):])
	tok := p.readToken()
	offset, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return 0, corrupt("invalid startxref offset %q", tok)
	}
	return offset, nil
}

type xrefSection struct {
	offset int64
	hybrid bool // reached through a classic trailer's /XRefStm
}

// readXRef reads the cross-reference section at offset together with every
// section reachable through /XRefStm and /Prev. Entries from newer sections
// take precedence; trailer keys missing from the newest trailer are filled
// from older ones.
func readXRef(data []byte, offset int64) (xrefTable, Dict, error) {
	table := make(xrefTable)
	trailer := make(Dict)
	seen := make(map[int64]bool)

	queue := []xrefSection{{offset: offset}}
	for len(queue) > 0 {
		sec := queue[0]
		queue = queue[1:]
		if seen[sec.offset] {
			continue
		}
		seen[sec.offset] = true

		entries, sectionTrailer, err := readXRefSection(data, sec.offset)
		if err != nil {
			return nil, nil, err
		}
		for num, entry := range entries {
			existing, ok := table[num]
			// Hybrid files list compressed objects as free in the classic table.
			if !ok || (sec.hybrid && !existing.InUse && entry.InUse) {
				table[num] = entry
			}
		}
		for k, v := range sectionTrailer {
			if _, ok := trailer[k]; !ok {
				trailer[k] = v
			}
		}

		if stm, ok := sectionTrailer.GetInt("XRefStm"); ok {
			queue = append(queue, xrefSection{offset: stm, hybrid: true})
		}
		if prev, ok := sectionTrailer.GetInt("Prev"); ok {
			queue = append(queue, xrefSection{offset: prev})
		}
	}
	return table, trailer, nil
}

// readXRefSection parses one classic table or cross-reference stream.
func readXRefSection(data []byte, offset int64) (xrefTable, Dict, error) {
	if offset < 0 || offset >= int64(len(data)) {
		return nil, nil, corrupt("xref offset %d out of bounds", offset)
	}

	p := newParser(data[offset:])
	if p.readToken() != "xref" {
		return parseXRefStream(data, offset)
	}
	return parseXRefTable(p)
}

// parseXRefTable parses the subsections of a classic table positioned just
// after the "xref" keyword, followed by its trailer dictionary.
func parseXRefTable(p *parser) (xrefTable, Dict, error) {
	table := make(xrefTable)

	for {
		p.skipWhitespace()
		if p.pos >= len(p.data) {
			return nil, nil, corrupt("xref table without trailer")
		}

		savedPos := p.pos
		if p.readToken() == "trailer" {
			break
		}
		p.pos = savedPos

		startObj, err := readInt(p, "xref start object")
		if err != nil {
			return nil, nil, err
		}
		count, err := readInt(p, "xref count")
		if err != nil {
			return nil, nil, err
		}

		for i := int64(0); i < count; i++ {
			entryOffset, err := readInt(p, "xref entry offset")
			if err != nil {
				return nil, nil, err
			}
			gen, err := readInt(p, "xref entry generation")
			if err != nil {
				return nil, nil, err
			}
			kind := p.readToken()

			table[int(startObj+i)] = xrefEntry{
				Offset:     entryOffset,
				Generation: int(gen),
				InUse:      kind == "n",
			}
		}
	}

	obj, err := p.ParseObject()
	if err != nil {
		return nil, nil, fmt.Errorf("trailer dict: %w", err)
	}
	trailer, ok := obj.(Dict)
	if !ok {
		return nil, nil, corrupt("trailer is not a dictionary")
	}
	return table, trailer, nil
}

func readInt(p *parser, what string) (int64, error) {
	tok := p.readToken()
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return 0, corrupt("%s %q", what, tok)
	}
	return v, nil
}

// parseXRefStream parses a cross-reference stream (PDF 1.5+).
func parseXRefStream(data []byte, offset int64) (xrefTable, Dict, error) {
	p := newParser(data[offset:])
	obj, err := p.ParseIndirectObject()
	if err != nil {
		return nil, nil, fmt.Errorf("xref stream object: %w", err)
	}

	stream, ok := obj.Value.(Stream)
	if !ok || stream.Dict.GetName("Type") != "XRef" {
		return nil, nil, corrupt("no xref table or stream at offset %d", offset)
	}

	decoded, err := decodeStream(stream)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding xref stream: %w", err)
	}

	wArr := stream.Dict.GetArray("W")
	if len(wArr) != 3 {
		return nil, nil, corrupt("xref stream /W must have 3 elements")
	}
	var widths [3]int
	for i, w := range wArr {
		n, ok := w.(Integer)
		if !ok || n < 0 || n > 8 {
			return nil, nil, corrupt("invalid xref stream /W entry %v", w)
		}
		widths[i] = int(n)
	}
	entrySize := widths[0] + widths[1] + widths[2]
	if entrySize == 0 {
		return nil, nil, corrupt("xref stream /W is all zero")
	}

	var indices []int
	if idxArr := stream.Dict.GetArray("Index"); idxArr != nil {
		for _, v := range idxArr {
			if n, ok := v.(Integer); ok {
				indices = append(indices, int(n))
			}
		}
	} else {
		size, _ := stream.Dict.GetInt("Size")
		indices = []int{0, int(size)}
	}

	table := make(xrefTable)
	pos := 0
	for i := 0; i+1 < len(indices); i += 2 {
		startObj, count := indices[i], indices[i+1]
		for j := 0; j < count && pos+entrySize <= len(decoded); j++ {
			var fields [3]int64
			for f := range 3 {
				for range widths[f] {
					fields[f] = fields[f]<<8 | int64(decoded[pos])
					pos++
				}
			}

			kind := fields[0]
			if widths[0] == 0 {
				kind = 1
			}

			objNum := startObj + j
			switch kind {
			case 0:
				table[objNum] = xrefEntry{Generation: int(fields[2])}
			case 1:
				table[objNum] = xrefEntry{Offset: fields[1], Generation: int(fields[2]), InUse: true}
			case 2:
				table[objNum] = xrefEntry{
					InUse:      true,
					Compressed: true,
					Stream:     int(fields[1]),
					Index:      int(fields[2]),
				}
			}
		}
	}

	return table, stream.Dict, nil
}

var objHeaderRE = regexp.MustCompile(`(\d+)[ \t\r\n\f\x00]+(\d+)[ \t\r\n\f\x00]+obj\b`)

// reconstructXRef rebuilds the cross-reference table by scanning the file for
// object headers. It is used when the declared xref data cannot be read.
func reconstructXRef(data []byte) (xrefTable, Dict, error) {
	table := make(xrefTable)
	var catalog *Reference

	for _, m := range objHeaderRE.FindAllSubmatchIndex(data, -1) {
		// Object headers start a line; skip matches inside other tokens.
		if m[0] > 0 && !isWhitespace(data[m[0]-1]) {
			continue
		}
		num, err1 := strconv.Atoi(string(data[m[2]:m[3]]))
		gen, err2 := strconv.Atoi(string(data[m[4]:m[5]]))
		if err1 != nil || err2 != nil {
			continue
		}
		// Later definitions win, as with incremental updates.
		table[num] = xrefEntry{Offset: int64(m[0]), Generation: gen, InUse: true}

		p := newParser(data[m[0]:])
		if obj, err := p.ParseIndirectObject(); err == nil {
			if d, ok := obj.Value.(Dict); ok && d.GetName("Type") == "Catalog" {
				ref := Reference{Number: num, Generation: gen}
				catalog = &ref
			}
		}
	}

	if len(table) == 0 {
		return nil, nil, corrupt("no objects found")
	}

	trailer := make(Dict)
	if idx := bytes.LastIndex(data, []byte("trailer")); idx >= 0 {
		p := newParser(data[idx+len("trailer"):])
		if obj, err := p.ParseObject(); err == nil {
			if d, ok := obj.(Dict); ok {
				trailer = d
			}
		}
	}
	if _, ok := trailer["Root"]; !ok {
		if catalog == nil {
			return nil, nil, corrupt("document catalog not found")
		}
		trailer["Root"] = *catalog
	}
	return table, trailer, nil
}
