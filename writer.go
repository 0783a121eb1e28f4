package graphdoc

import (
	"fmt"
	"reflect"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/stealthrocket/graphdoc/document"
	"github.com/stealthrocket/graphdoc/internal/reflectext"
	"github.com/stealthrocket/graphdoc/meta"
	"github.com/stealthrocket/graphdoc/types"
)

// writer holds the state of one Serialize call. Its methods panic on
// errors, which Serialize recovers.
type writer struct {
	s      *Serializer
	ns     *types.Namespace
	shared *sharedPool
	depth  int
}

func newWriter(s *Serializer) *writer {
	return &writer{s: s}
}

func (w *writer) write(root reflect.Value) *document.Document {
	ns, err := types.Discover(root, w.s.members, w.s.codecs, w.s.maxDepth)
	if err != nil {
		panic(err)
	}
	w.ns = ns
	w.s.logger.Debug("discovered object graph types",
		zap.Stringer("root", root.Type()),
		zap.Int("types", ns.Len()))

	catalog := w.s.codecs.Catalog()
	doc := document.New(comment)
	for _, e := range ns.Entries() {
		id := types.Identity(e.Type)
		catalog.Add(e.Type)
		if known, err := catalog.Resolve(id); err == nil && known != e.Type {
			panic(fmt.Errorf("%w: %q already names %s, cannot write %s", types.ErrAmbiguousIdentity, id, known, e.Type))
		}
		doc.AddType(e.Name, id)
	}

	rootNs := w.lookup(root.Type())
	asset := doc.CreateAsset(rootNs.Name)
	w.shared = newSharedPool(doc.CreateShared())
	w.writeMembers(asset, reflectext.Addressable(root))
	return doc
}

func (w *writer) lookup(t reflect.Type) *types.Ns {
	ns, err := w.ns.Lookup(t, w.s.codecs)
	if err != nil {
		panic(err)
	}
	return ns
}

func (w *writer) enter() {
	w.depth++
	if w.s.maxDepth > 0 && w.depth > w.s.maxDepth {
		panic(fmt.Errorf("%w (%d)", ErrMaxDepth, w.s.maxDepth))
	}
}

func (w *writer) leave() { w.depth-- }

// writeMembers writes the members of the struct value v as children of e,
// from the highest priority to the lowest.
func (w *writer) writeMembers(e *etree.Element, v reflect.Value) {
	w.enter()
	defer w.leave()

	for _, m := range meta.Ordered(w.s.members.Members(v.Type())) {
		w.writeMember(e, m.Name, m.Type, reflectext.Field(v, m.Index, m.Exported), m.Binary)
	}
}

func (w *writer) element(parent *etree.Element, t reflect.Type, name string) *etree.Element {
	return parent.CreateElement(w.lookup(t).Name + ":" + name)
}

func (w *writer) writeMember(parent *etree.Element, name string, declared reflect.Type, v reflect.Value, binary bool) {
	t, v := types.Effective(declared, v)
	codecs := w.s.codecs

	if w.s.members.IsShared(t) {
		w.writeReference(parent, name, t, v, binary)
		return
	}

	switch types.KindOf(t, codecs) {
	case types.Struct:
		if types.HasCodec(codecs, t, binary) {
			w.writeLeaf(parent, name, t, v, binary)
			return
		}
		e := w.element(parent, t, name)
		if t.Kind() == reflect.Pointer {
			if v.IsNil() {
				e.CreateAttr(document.AttrValue, document.Null)
				return
			}
			v = v.Elem()
		}
		w.writeMembers(e, reflectext.Addressable(v))

	case types.Primitive, types.Enum, types.Pointer:
		w.writeLeaf(parent, name, t, v, binary)

	case types.List:
		if types.HasCodec(codecs, t, binary) {
			w.writeLeaf(parent, name, t, v, binary)
			return
		}
		e := w.element(parent, t, name)
		if v.IsNil() {
			e.CreateAttr(document.AttrValue, document.Null)
			return
		}
		values := e.CreateElement(document.ValuesName)
		w.enter()
		for i := 0; i < v.Len(); i++ {
			w.writeMember(values, document.ItemName, t.Elem(), v.Index(i), binary)
		}
		w.leave()

	case types.Array:
		if types.HasCodec(codecs, t, binary) {
			w.writeLeaf(parent, name, t, v, binary)
			return
		}
		dims, elem := reflectext.ArrayShape(t)
		e := w.element(parent, t, name)
		e.CreateAttr(document.AttrDimensions, document.FormatDimensions(dims))
		values := e.CreateElement(document.ValuesName)
		w.enter()
		for i := 0; i < reflectext.ArrayLen(dims); i++ {
			w.writeMember(values, document.ItemName, elem, reflectext.ArrayAt(v, reflectext.ArrayIndices(dims, i)), binary)
		}
		w.leave()

	case types.Map:
		if types.HasCodec(codecs, t, binary) {
			w.writeLeaf(parent, name, t, v, binary)
			return
		}
		e := w.element(parent, t, name)
		if v.IsNil() {
			e.CreateAttr(document.AttrValue, document.Null)
			return
		}
		keys := e.CreateElement(document.KeysName)
		values := e.CreateElement(document.ValuesName)
		w.enter()
		for _, k := range reflectext.SortedMapKeys(v) {
			w.writeMember(keys, document.ItemName, t.Key(), k, binary)
			w.writeMember(values, document.ItemName, t.Elem(), v.MapIndex(k), binary)
		}
		w.leave()

	default:
		w.element(parent, t, name).CreateAttr(document.AttrValue, document.Null)
	}
}

// writeReference writes a reference to the shared object p, writing the
// object itself to the shared pool on first reference. Objects of types with
// a codec are written as encoded values.
func (w *writer) writeReference(parent *etree.Element, name string, t reflect.Type, p reflect.Value, binary bool) {
	e := w.element(parent, t, name)
	if p.IsNil() {
		e.CreateAttr(document.AttrID, document.Null)
		return
	}
	id, first := w.shared.intern(p)
	e.CreateAttr(document.AttrID, id)
	if !first {
		return
	}
	if types.HasCodec(w.s.codecs, t, binary) || types.KindOf(t, w.s.codecs) == types.Pointer {
		w.writeLeaf(w.shared.section, id, t, p, binary)
		return
	}
	w.writeMembers(w.element(w.shared.section, t, id), p.Elem())
}

// writeLeaf writes a value encoded by its codec, in binary form when binary
// is set and the type has a binary codec. Pointers to leaves are written as
// the value they point to.
func (w *writer) writeLeaf(parent *etree.Element, name string, t reflect.Type, v reflect.Value, binary bool) {
	e := w.element(parent, t, name)
	if reflectext.Nilable(t) && v.IsNil() {
		e.CreateAttr(document.AttrValue, document.Null)
		return
	}
	codecs := w.s.codecs
	pointer := false
	switch types.KindOf(t, codecs) {
	case types.Enum:
		t = reflectext.Underlying(t)
		v = v.Convert(t)
	case types.Pointer:
		pointer = true
		t = types.Elem(t, codecs)
		v = v.Elem().Convert(t)
	}
	if types.UseBinary(codecs, t, binary) {
		blob, err := codecs.EncodeBinary(v)
		if err != nil {
			panic(err)
		}
		document.SetBlob(e, blob.Data, blob.Length)
		return
	}
	s, err := codecs.EncodeText(v)
	if err != nil {
		panic(err)
	}
	if pointer && s == document.Null {
		panic(fmt.Errorf("%w: %s pointing to %q reads back as a nil pointer", ErrUnrepresentable, v.Type(), s))
	}
	if err := document.CheckText(s); err != nil {
		panic(fmt.Errorf("member %s: %w", name, err))
	}
	e.CreateAttr(document.AttrValue, s)
}
