// Package document implements the XML tree documents object graphs are
// written to.
//
// A document has a single Content root element whose xmlns attributes form
// the type table of the document: each symbolic type name is declared as a
// namespace prefix bound to the identity of the type. Every element below
// it is prefixed with the name of the type of the value it holds, and named
// after the member holding it:
//
//	<Content xmlns:ns0="example.com/pkg.Scene" xmlns:ns1="string">
//	  <ns0:Asset>
//	    <ns1:Name Value="level one"/>
//	  </ns0:Asset>
//	  <Shared/>
//	</Content>
package document

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"

	"github.com/stealthrocket/graphdoc/types"
)

// Names of the structural elements and attributes of documents.
const (
	RootName   = "Content"
	AssetName  = "Asset"
	SharedName = "Shared"
	KeysName   = "Keys"
	ValuesName = "Values"
	ItemName   = "Item"

	AttrValue      = "Value"
	AttrLength     = "Length"
	AttrID         = "ID"
	AttrDimensions = "Dimensions"

	// Null is the value of Value and ID attributes standing for absent
	// values.
	Null = "null"
)

const xmlns = "xmlns"

// ErrMalformed is returned for documents missing a required structure.
var ErrMalformed = errors.New("malformed document")

// ErrUnrepresentable is returned for values that a document cannot carry
// without altering them.
var ErrUnrepresentable = errors.New("value cannot be represented in a document")

// Document is an XML object graph document.
type Document struct {
	doc  *etree.Document
	root *etree.Element
}

// New returns an empty document. The comment, when not empty, is written as
// the first child of the root element.
func New(comment string) *Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement(RootName)
	if comment != "" {
		root.CreateComment(comment)
	}
	return &Document{doc: doc, root: root}
}

// Parse parses a document from its XML representation.
func Parse(b []byte) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return fromTree(doc)
}

// Read parses a document from r.
func Read(r io.Reader) (*Document, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return fromTree(doc)
}

// ReadFile parses the document stored in the file at path.
func ReadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

func fromTree(doc *etree.Document) (*Document, error) {
	root := doc.Root()
	if root == nil || root.Tag != RootName {
		return nil, fmt.Errorf("%w: missing %s root element", ErrMalformed, RootName)
	}
	return &Document{doc: doc, root: root}, nil
}

// WriteTo writes the document to w, indented by indent spaces per level
// (no indentation when indent is negative).
//
// Tabs, line feeds and carriage returns in attribute values are written as
// character references, which XML parsers do not normalize.
func (d *Document) WriteTo(w io.Writer, indent int) (int64, error) {
	d.indent(indent)
	d.doc.WriteSettings.CanonicalAttrVal = true
	return d.doc.WriteTo(w)
}

// Bytes returns the XML representation of the document.
func (d *Document) Bytes(indent int) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.WriteTo(&buf, indent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile stores the document in the file at path.
func (d *Document) WriteFile(path string, indent int) error {
	b, err := d.Bytes(indent)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func (d *Document) indent(n int) {
	if n < 0 {
		d.doc.Indent(etree.NoIndent)
	} else {
		d.doc.Indent(n)
	}
}

// Root returns the root element of the document.
func (d *Document) Root() *etree.Element { return d.root }

// AddType declares a type of the type table.
func (d *Document) AddType(name, identity string) {
	d.root.CreateAttr(xmlns+":"+name, identity)
}

// Types returns the type table of the document in declaration order.
func (d *Document) Types() []types.Entry {
	var table []types.Entry
	for _, a := range d.root.Attr {
		if a.Space == xmlns {
			table = append(table, types.Entry{Name: a.Key, Identity: a.Value})
		}
	}
	return table
}

// CreateAsset creates the Asset section, prefixed with the name of the root
// type.
func (d *Document) CreateAsset(typeName string) *etree.Element {
	return d.root.CreateElement(typeName + ":" + AssetName)
}

// Asset returns the Asset section, or nil if the document has none.
func (d *Document) Asset() *etree.Element {
	return Child(d.root, AssetName)
}

// CreateShared creates the Shared section.
func (d *Document) CreateShared() *etree.Element {
	return d.root.CreateElement(SharedName)
}

// Shared returns the Shared section, or nil if the document has none.
func (d *Document) Shared() *etree.Element {
	return Child(d.root, SharedName)
}

// RootTypeName returns the symbolic name of the root type, which prefixes
// the Asset section.
func (d *Document) RootTypeName() (string, bool) {
	asset := d.Asset()
	if asset == nil || asset.Space == "" {
		return "", false
	}
	return asset.Space, true
}

// RootIdentity returns the identity of the root type of the document.
func (d *Document) RootIdentity() (string, bool) {
	name, ok := d.RootTypeName()
	if !ok {
		return "", false
	}
	for _, e := range d.Types() {
		if e.Name == name {
			return e.Identity, true
		}
	}
	return "", false
}

// CheckText returns an error wrapping ErrUnrepresentable if s is not valid
// UTF-8 or contains a character outside of the XML 1.0 character range.
func CheckText(s string) error {
	for i := 0; i < len(s); {
		r, n := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && n == 1 {
			return fmt.Errorf("%w: invalid UTF-8 at offset %d of %q", ErrUnrepresentable, i, s)
		}
		if !isChar(r) {
			return fmt.Errorf("%w: character %U at offset %d of %q", ErrUnrepresentable, r, i, s)
		}
		i += n
	}
	return nil
}

func isChar(r rune) bool {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	default:
		return r >= 0x10000 && r <= utf8.MaxRune
	}
}

// Child returns the first child element of e with the given local name,
// whatever its prefix.
func Child(e *etree.Element, tag string) *etree.Element {
	for _, c := range e.ChildElements() {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// Attr returns the value of the attribute of e with the given key.
func Attr(e *etree.Element, key string) (string, bool) {
	a := e.SelectAttr(key)
	if a == nil {
		return "", false
	}
	return a.Value, true
}

// SetBlob embeds data in e as base64 text, with the length of the
// uncompressed data as attribute.
func SetBlob(e *etree.Element, data []byte, length int) {
	e.CreateAttr(AttrLength, strconv.Itoa(length))
	e.CreateCData(base64.StdEncoding.EncodeToString(data))
}

// Blob returns the data embedded in e with SetBlob. ok is false if e has no
// Length attribute.
func Blob(e *etree.Element) (data []byte, length int, ok bool, err error) {
	l, ok := Attr(e, AttrLength)
	if !ok {
		return nil, 0, false, nil
	}
	length, err = strconv.Atoi(l)
	if err != nil || length < 0 {
		return nil, 0, true, fmt.Errorf("%w: invalid length %q", ErrMalformed, l)
	}
	data, err = base64.StdEncoding.DecodeString(strings.TrimSpace(e.Text()))
	if err != nil {
		return nil, 0, true, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return data, length, true, nil
}

// FormatDimensions renders array dimensions as "2;3;".
func FormatDimensions(dims []int) string {
	var b strings.Builder
	for _, d := range dims {
		b.WriteString(strconv.Itoa(d))
		b.WriteByte(';')
	}
	return b.String()
}

// ParseDimensions parses array dimensions, with or without the trailing
// separator.
func ParseDimensions(s string) ([]int, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), ";")
	if s == "" {
		return nil, fmt.Errorf("%w: empty dimensions", ErrMalformed)
	}
	parts := strings.Split(s, ";")
	dims := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: invalid dimension %q", ErrMalformed, p)
		}
		dims[i] = n
	}
	return dims, nil
}
