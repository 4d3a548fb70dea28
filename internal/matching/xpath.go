package matching

import (
	"bytes"
	"strings"

	"github.com/beevik/etree"
)

// XPath is a compiled XPath-style selector. The last step may address an
// attribute ("/user/@id").
type XPath struct {
	raw       string
	element   etree.Path
	attribute string
}

// CompileXPath compiles an XPath selector. etree's own compile step is used
// so an invalid path is reported as an error instead of a panic.
func CompileXPath(xpath string) (*XPath, error) {
	xpath = strings.TrimSpace(xpath)
	x := &XPath{raw: xpath}

	elemPath := xpath
	if idx := strings.LastIndex(xpath, "/@"); idx >= 0 && !strings.ContainsAny(xpath[idx+2:], "/[]") {
		elemPath = xpath[:idx]
		x.attribute = xpath[idx+2:]
		if elemPath == "" {
			elemPath = "/*"
		}
	}

	p, err := etree.CompilePath(elemPath)
	if err != nil {
		return nil, err
	}
	x.element = p
	return x, nil
}

// String returns the selector source.
func (x *XPath) String() string { return x.raw }

// Lookup returns the trimmed text of the first matching element, or the
// attribute value when the selector ends in "/@name".
func (x *XPath) Lookup(doc *etree.Document) (string, bool) {
	if x == nil || doc == nil {
		return "", false
	}
	elem := doc.FindElementPath(x.element)
	if elem == nil {
		return "", false
	}
	if x.attribute == "" {
		return strings.TrimSpace(elem.Text()), true
	}
	attr := elem.SelectAttr(x.attribute)
	if attr == nil {
		return "", false
	}
	return attr.Value, true
}

// ParseXMLBody parses body as an XML document. Returns false when the body is
// empty or not well-formed XML with a root element.
func ParseXMLBody(body []byte) (*etree.Document, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '<' {
		return nil, false
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(trimmed); err != nil {
		return nil, false
	}
	if doc.Root() == nil {
		return nil, false
	}
	return doc, true
}
