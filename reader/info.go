package reader

import (
	"regexp"
	"strconv"
	"time"
)

// Info holds the document information dictionary and form flags.
// Absent or non-string entries are empty; unparsable dates are nil.
type Info struct {
	Title    string
	Author   string
	Subject  string
	Keywords string
	Creator  string
	Producer string

	CreationDate *time.Time
	ModDate      *time.Time

	// HasAcroForm reports interactive form fields, excluding forms that only
	// hold invisible document signatures.
	HasAcroForm bool
	// HasXFA reports an XFA form description.
	HasXFA bool
}

// maxFieldDepth bounds recursion through form field /Kids.
const maxFieldDepth = 16

// Info returns the document information. Damaged or missing entries are
// skipped rather than reported.
func (d *Document) Info() Info {
	var info Info

	if infoObj, err := d.resolveIfRef(d.trailer["Info"]); err == nil {
		if dict, ok := infoObj.(Dict); ok {
			info.Title = d.textEntry(dict, "Title")
			info.Author = d.textEntry(dict, "Author")
			info.Subject = d.textEntry(dict, "Subject")
			info.Keywords = d.textEntry(dict, "Keywords")
			info.Creator = d.textEntry(dict, "Creator")
			info.Producer = d.textEntry(dict, "Producer")
			info.CreationDate = parseDate(d.textEntry(dict, "CreationDate"))
			info.ModDate = parseDate(d.textEntry(dict, "ModDate"))
		}
	}

	if catalog, err := d.Catalog(); err == nil {
		info.HasAcroForm, info.HasXFA = d.formFlags(catalog)
	}
	return info
}

func (d *Document) textEntry(dict Dict, key Name) string {
	obj, err := d.resolveIfRef(dict[key])
	if err != nil {
		return ""
	}
	if s, ok := obj.(String); ok {
		return s.Text()
	}
	return ""
}

func (d *Document) formFlags(catalog Dict) (hasAcroForm, hasXFA bool) {
	formObj, err := d.resolveIfRef(catalog["AcroForm"])
	if err != nil {
		return false, false
	}
	form, ok := formObj.(Dict)
	if !ok {
		return false, false
	}

	if xfa, err := d.resolveIfRef(form["XFA"]); err == nil {
		switch x := xfa.(type) {
		case Array:
			hasXFA = len(x) > 0
		case Stream:
			hasXFA = len(x.Data) > 0
		}
	}

	fieldsObj, err := d.resolveIfRef(form["Fields"])
	if err != nil {
		return false, hasXFA
	}
	fields, _ := fieldsObj.(Array)
	if len(fields) == 0 {
		return false, hasXFA
	}

	sigFlags, _ := form.GetInt("SigFlags")
	if sigFlags&1 != 0 && d.onlySignatures(fields, 0) {
		return false, hasXFA
	}
	return true, hasXFA
}

// onlySignatures reports whether every terminal field is an invisible
// signature field, that is one with a zero-area /Rect.
func (d *Document) onlySignatures(fields Array, depth int) bool {
	if depth > maxFieldDepth {
		return false
	}
	for _, f := range fields {
		obj, err := d.resolveIfRef(f)
		if err != nil {
			return false
		}
		field, ok := obj.(Dict)
		if !ok {
			return false
		}
		if kidsObj, ok := field["Kids"]; ok {
			kids, err := d.resolveIfRef(kidsObj)
			if err != nil {
				return false
			}
			arr, _ := kids.(Array)
			if !d.onlySignatures(arr, depth+1) {
				return false
			}
			continue
		}
		if field.GetName("FT") != "Sig" || !zeroRect(field.GetArray("Rect")) {
			return false
		}
	}
	return true
}

func zeroRect(rect Array) bool {
	if rect == nil {
		return false
	}
	for _, v := range rect {
		if numberValue(v) != 0 {
			return false
		}
	}
	return true
}

// pdfDateRE matches "D:YYYYMMDDHHmmSSOHH'mm'" where every component after
// the year is optional and the "D:" prefix is often left out.
var pdfDateRE = regexp.MustCompile(`^(?:D:)?(\d{4})(\d{2})?(\d{2})?(\d{2})?(\d{2})?(\d{2})?([Zz+\-])?(\d{2})?'?(\d{2})?'?`)

// parseDate parses a PDF date string. Missing components default to the
// start of their range and a missing offset means UTC. It returns nil for
// strings that are not dates or carry out-of-range components.
func parseDate(s string) *time.Time {
	m := pdfDateRE.FindStringSubmatch(s)
	if m == nil {
		return nil
	}

	num := func(i, def, lo, hi int) (int, bool) {
		if m[i] == "" {
			return def, true
		}
		v, err := strconv.Atoi(m[i])
		if err != nil || v < lo || v > hi {
			return 0, false
		}
		return v, true
	}

	year, _ := num(1, 0, 0, 9999)
	month, ok1 := num(2, 1, 1, 12)
	day, ok2 := num(3, 1, 1, 31)
	hour, ok3 := num(4, 0, 0, 23)
	minute, ok4 := num(5, 0, 0, 59)
	second, ok5 := num(6, 0, 0, 59)
	offHour, ok6 := num(8, 0, 0, 23)
	offMin, ok7 := num(9, 0, 0, 59)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 || !ok6 || !ok7 {
		return nil
	}

	offset := offHour*3600 + offMin*60
	if m[7] == "-" {
		offset = -offset
	} else if m[7] == "" || m[7] == "Z" || m[7] == "z" {
		offset = 0
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.FixedZone("", offset)).UTC()
	return &t
}
