package reader

import (
	"fmt"
)

// maxPageTreeDepth bounds page tree recursion.
const maxPageTreeDepth = 64

// Page is a single page of a document.
type Page struct {
	Number   int // 1-based
	Contents []Stream
}

// ContentStream returns the decoded content of the page. Multiple content
// streams are concatenated with a newline separator.
func (p *Page) ContentStream() ([]byte, error) {
	var result []byte
	for _, s := range p.Contents {
		decoded, err := decodeStream(s)
		if err != nil {
			return nil, fmt.Errorf("decoding page %d content: %w", p.Number, err)
		}
		result = append(result, decoded...)
		result = append(result, '\n')
	}
	return result, nil
}

// buildPageList flattens the page tree into d.pages.
func (d *Document) buildPageList() error {
	catalog, err := d.Catalog()
	if err != nil {
		return err
	}

	pagesObj, err := d.resolveIfRef(catalog["Pages"])
	if err != nil {
		return fmt.Errorf("resolving /Pages: %w", err)
	}
	pagesDict, ok := pagesObj.(Dict)
	if !ok {
		return corrupt("/Pages is not a dictionary")
	}

	d.pages = nil
	seen := make(map[Reference]bool)
	if ref, ok := catalog["Pages"].(Reference); ok {
		seen[ref] = true
	}
	return d.traversePageTree(pagesDict, 0, seen)
}

// traversePageTree appends the leaf pages under node in document order.
// A node reachable twice makes the tree cyclic or shared, both invalid.
func (d *Document) traversePageTree(node Dict, depth int, seen map[Reference]bool) error {
	if depth > maxPageTreeDepth {
		return corrupt("page tree deeper than %d levels", maxPageTreeDepth)
	}

	// Some producers omit /Type on leaves; a node without /Kids is a page.
	kidsObj, hasKids := node["Kids"]
	if node.GetName("Type") == "Page" || (!hasKids && node.GetName("Type") != "Pages") {
		return d.addPage(node)
	}

	resolved, err := d.resolveIfRef(kidsObj)
	if err != nil {
		return fmt.Errorf("resolving /Kids: %w", err)
	}
	kids, _ := resolved.(Array)

	for _, kid := range kids {
		if ref, ok := kid.(Reference); ok {
			if seen[ref] {
				return corrupt("page tree node %s visited twice", ref)
			}
			seen[ref] = true
		}
		kidObj, err := d.resolveIfRef(kid)
		if err != nil {
			return fmt.Errorf("resolving page tree kid: %w", err)
		}
		kidDict, ok := kidObj.(Dict)
		if !ok {
			continue
		}
		if err := d.traversePageTree(kidDict, depth+1, seen); err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) addPage(node Dict) error {
	page := &Page{Number: len(d.pages) + 1}

	if contents, ok := node["Contents"]; ok {
		resolved, err := d.resolveIfRef(contents)
		if err != nil {
			return fmt.Errorf("page %d contents: %w", page.Number, err)
		}

		switch c := resolved.(type) {
		case Stream:
			page.Contents = []Stream{c}
		case Array:
			for _, item := range c {
				streamObj, err := d.resolveIfRef(item)
				if err != nil {
					return fmt.Errorf("page %d contents: %w", page.Number, err)
				}
				if s, ok := streamObj.(Stream); ok {
					page.Contents = append(page.Contents, s)
				}
			}
		}
	}

	d.pages = append(d.pages, page)
	return nil
}
