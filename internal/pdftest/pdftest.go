// Package pdftest assembles small, well-formed PDF files for tests.
//
// Unlike a general PDF generator it writes exactly what it is given: a
// document without Info entries has no /Info dictionary at all, which makes
// it suitable for checking how absent metadata is reported.
package pdftest

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
)

// Document describes the PDF to build.
type Document struct {
	// Version is the header version; "1.4" when empty.
	Version string
	// Pages holds the text shown on each page, one string per page. Lines
	// within a page are separated by '\n'.
	Pages []string
	// Info entries are written as literal strings into the /Info
	// dictionary, which is omitted when Info is empty.
	Info map[string]string
	// AcroForm is inserted verbatim as the catalog's /AcroForm value,
	// e.g. "<< /Fields [] >>".
	AcroForm string
}

// Bytes renders the document with a classic cross-reference table whose
// offsets match the output.
func (d Document) Bytes() []byte {
	version := d.Version
	if version == "" {
		version = "1.4"
	}

	// Object numbers: 1 catalog, 2 page tree, then a page and a content
	// stream per page, then the info dictionary.
	var objs []string
	pageRef := func(i int) int { return 3 + 2*i }

	catalog := "<< /Type /Catalog /Pages 2 0 R"
	if d.AcroForm != "" {
		catalog += " /AcroForm " + d.AcroForm
	}
	objs = append(objs, catalog+" >>")

	kids := make([]string, len(d.Pages))
	for i := range d.Pages {
		kids[i] = fmt.Sprintf("%d 0 R", pageRef(i))
	}
	objs = append(objs, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(d.Pages)))

	for i, text := range d.Pages {
		objs = append(objs, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R"+
				" /Resources << /Font << /F1 << /Type /Font /Subtype /Type1 /BaseFont /Helvetica >> >> >> >>",
			pageRef(i)+1))
		content := contentStream(text)
		objs = append(objs, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	infoNum := 0
	if len(d.Info) > 0 {
		keys := make([]string, 0, len(d.Info))
		for k := range d.Info {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		var sb strings.Builder
		sb.WriteString("<<")
		for _, k := range keys {
			fmt.Fprintf(&sb, " /%s (%s)", k, Escape(d.Info[k]))
		}
		sb.WriteString(" >>")
		objs = append(objs, sb.String())
		infoNum = len(objs)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", version)

	offsets := make([]int, len(objs))
	for i, obj := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}

	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R", len(objs)+1)
	if infoNum > 0 {
		fmt.Fprintf(&buf, " /Info %d 0 R", infoNum)
	}
	fmt.Fprintf(&buf, " >>\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes()
}

func contentStream(text string) string {
	if text == "" {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("BT /F1 12 Tf 72 720 Td 14 TL")
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			sb.WriteString(" T*")
		}
		fmt.Fprintf(&sb, " (%s) Tj", Escape(line))
	}
	sb.WriteString(" ET")
	return sb.String()
}

// Escape escapes s for use inside a PDF literal string.
func Escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`, "\r", `\r`)
	return r.Replace(s)
}
