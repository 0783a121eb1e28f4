package graphdoc

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/stealthrocket/graphdoc/codec"
	"github.com/stealthrocket/graphdoc/document"
	"github.com/stealthrocket/graphdoc/internal/reflectext"
	"github.com/stealthrocket/graphdoc/meta"
	"github.com/stealthrocket/graphdoc/types"
)

// reader holds the state of one DeserializeInto call. Its methods panic
// with *DecodeError values, which deserialize recovers.
type reader struct {
	s      *Serializer
	ns     *types.Namespace
	shared map[string]reflect.Value
	path   []string
	depth  int
}

func (s *Serializer) deserialize(doc *document.Document, target any) (err error) {
	tv := reflect.ValueOf(target)
	if !tv.IsValid() || tv.Kind() != reflect.Pointer || tv.IsNil() {
		return fmt.Errorf("%w: cannot read into %T", ErrNotStruct, target)
	}
	out := tv.Elem()
	structType := out.Type()
	if structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return fmt.Errorf("%w: cannot read into %T", ErrNotStruct, target)
	}

	got, ok := doc.RootIdentity()
	if !ok {
		return fmt.Errorf("%w: no declared root type", ErrMalformed)
	}
	if want := types.Identity(structType); got != want {
		return &WrongTypeError{Want: want, Got: got}
	}

	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok {
				panic(r)
			}
			s.logger.Error("reading object graph document",
				zap.Stringer("type", structType),
				zap.Error(e),
				zap.Stack("stack"))
			err = e
		}
	}()

	ns, err := types.FromTable(doc.Types(), s.codecs.Catalog(), s.codecs)
	if err != nil {
		return &DecodeError{Err: err}
	}
	for _, name := range ns.UnresolvedNames() {
		s.logger.Warn("document declares a type that cannot be resolved",
			zap.String("name", name),
			zap.Error(ns.Unresolved(name)))
	}
	r := &reader{
		s:      s,
		ns:     ns,
		shared: make(map[string]reflect.Value),
	}

	// Populate a copy of the target, which is only replaced once the whole
	// document was read.
	result := reflect.New(structType)
	if out.Kind() == reflect.Pointer {
		if !out.IsNil() {
			result.Elem().Set(out.Elem())
		}
	} else {
		result.Elem().Set(out)
	}

	r.loadShared(doc.Shared())
	r.readMembers(doc.Asset(), result.Elem())

	if out.Kind() == reflect.Pointer {
		out.Set(result)
	} else {
		out.Set(result.Elem())
	}
	return nil
}

func (r *reader) push(name string) { r.path = append(r.path, name) }

func (r *reader) pop() { r.path = r.path[:len(r.path)-1] }

func (r *reader) fail(err error) {
	panic(&DecodeError{Path: strings.Join(r.path, "/"), Err: err})
}

func (r *reader) enter() {
	r.depth++
	if limit := r.s.maxDepth; limit > 0 && r.depth > limit {
		r.fail(fmt.Errorf("%w (%d)", ErrMaxDepth, limit))
	}
}

func (r *reader) leave() { r.depth-- }

// typeOf returns the descriptor of the type named by the prefix of e.
func (r *reader) typeOf(e *etree.Element) *types.Ns {
	ns, ok := r.ns.ByName(e.Space)
	if !ok {
		if err := r.ns.Unresolved(e.Space); err != nil {
			r.fail(err)
		}
		r.fail(fmt.Errorf("%w: element %s has undeclared type name %q", ErrMalformed, e.Tag, e.Space))
	}
	return ns
}

// readMembers reads the children of e into the members of the struct value
// v. Elements naming no member of v are skipped.
func (r *reader) readMembers(e *etree.Element, v reflect.Value) {
	if e == nil {
		r.fail(fmt.Errorf("%w: missing %s section", ErrMalformed, document.AssetName))
	}
	r.enter()
	defer r.leave()

	members := r.s.members.Members(v.Type())
	byName := make(map[string]*meta.Member, len(members))
	for i := range members {
		byName[members[i].Name] = &members[i]
	}

	for _, c := range e.ChildElements() {
		m, ok := byName[c.Tag]
		if !ok {
			continue
		}
		r.push(c.Tag)
		x := r.readValue(c, m.Type, m.Binary)
		if x.IsValid() {
			reflectext.Field(v, m.Index, m.Exported).Set(x)
		}
		r.pop()
	}
}

// readValue reads the value held by e into a value assignable to the
// declared type. It returns an invalid value for elements that leave the
// destination untouched.
func (r *reader) readValue(e *etree.Element, declared reflect.Type, binary bool) reflect.Value {
	ns := r.typeOf(e)
	t := ns.Type
	codecs := r.s.codecs

	var x reflect.Value
	switch {
	case r.s.members.IsShared(t):
		x = r.reference(e, t)

	case ns.Kind == types.Struct:
		if types.HasCodec(codecs, t, binary) && r.hasLeafValue(e, t) {
			x = r.readLeaf(e, t)
			break
		}
		x = r.readStruct(e, t)

	case ns.Kind == types.Primitive, ns.Kind == types.Enum, ns.Kind == types.Pointer:
		x = r.readLeaf(e, t)

	case ns.Kind == types.List:
		if types.HasCodec(codecs, t, binary) {
			x = r.readLeaf(e, t)
			break
		}
		x = r.readList(e, t, binary)

	case ns.Kind == types.Array:
		if types.HasCodec(codecs, t, binary) {
			x = r.readLeaf(e, t)
			break
		}
		x = r.readArray(e, t, binary)

	case ns.Kind == types.Map:
		if types.HasCodec(codecs, t, binary) {
			x = r.readLeaf(e, t)
			break
		}
		x = r.readMap(e, t, binary)

	default:
		// Unknown values are written as null.
		if reflectext.Nilable(declared) {
			return reflect.Zero(declared)
		}
		return reflect.Value{}
	}
	return r.assignable(x, declared)
}

// assignable converts x to the declared type of its destination. Enums are
// written with their underlying type and are converted back here.
func (r *reader) assignable(x reflect.Value, declared reflect.Type) reflect.Value {
	if !x.IsValid() {
		return x
	}
	t := x.Type()
	if t.AssignableTo(declared) {
		return x
	}
	if types.KindOf(declared, r.s.codecs) == types.Enum && reflectext.Underlying(declared) == t {
		return x.Convert(declared)
	}
	r.fail(fmt.Errorf("%w: value of type %s cannot be assigned to %s", ErrMalformed, t, declared))
	return reflect.Value{}
}

// hasLeafValue reports whether e holds a codec encoded value. Older
// documents may hold the members of struct types which have a codec.
func (r *reader) hasLeafValue(e *etree.Element, t reflect.Type) bool {
	if hasEncodedValue(e) {
		return true
	}
	r.s.logger.Warn("reading members of a type with a codec",
		zap.String("path", strings.Join(r.path, "/")),
		zap.Stringer("type", t))
	return false
}

func isNull(e *etree.Element) bool {
	v, ok := document.Attr(e, document.AttrValue)
	return ok && v == document.Null
}

func (r *reader) readLeaf(e *etree.Element, t reflect.Type) reflect.Value {
	codecs := r.s.codecs
	if types.KindOf(t, codecs) == types.Pointer {
		if isNull(e) {
			return reflect.Zero(t)
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(r.readLeaf(e, types.Elem(t, codecs)).Convert(t.Elem()))
		return p
	}

	data, length, ok, err := document.Blob(e)
	if err != nil {
		r.fail(err)
	}
	if ok {
		x, err := codecs.DecodeBinary(t, codec.Blob{Data: data, Length: length})
		if err != nil {
			r.fail(err)
		}
		return x
	}

	s, ok := document.Attr(e, document.AttrValue)
	if !ok {
		r.fail(fmt.Errorf("%w: %s value without %s or %s", ErrMalformed, t, document.AttrValue, document.AttrLength))
	}
	if s == document.Null && reflectext.Nilable(t) {
		return reflect.Zero(t)
	}
	x, err := codecs.DecodeText(t, s)
	if err != nil {
		r.fail(err)
	}
	return x
}

func (r *reader) readStruct(e *etree.Element, t reflect.Type) reflect.Value {
	if t.Kind() != reflect.Pointer {
		x := reflect.New(t).Elem()
		r.readMembers(e, x)
		return x
	}
	if isNull(e) {
		return reflect.Zero(t)
	}
	if t.Elem().Kind() != reflect.Struct {
		r.fail(fmt.Errorf("%w: no codec to read a %s", ErrMalformed, t))
	}
	p := reflect.New(t.Elem())
	r.readMembers(e, p.Elem())
	return p
}

// items returns the children of the section of e with the given name.
func (r *reader) items(e *etree.Element, section string) []*etree.Element {
	s := document.Child(e, section)
	if s == nil {
		r.fail(fmt.Errorf("%w: missing %s", ErrMalformed, section))
	}
	return s.ChildElements()
}

func (r *reader) readList(e *etree.Element, t reflect.Type, binary bool) reflect.Value {
	if isNull(e) {
		return reflect.Zero(t)
	}
	items := r.items(e, document.ValuesName)

	r.enter()
	defer r.leave()

	x := reflect.MakeSlice(t, len(items), len(items))
	for i, item := range items {
		r.push(strconv.Itoa(i))
		if v := r.readValue(item, t.Elem(), binary); v.IsValid() {
			x.Index(i).Set(v)
		}
		r.pop()
	}
	return x
}

func (r *reader) readArray(e *etree.Element, t reflect.Type, binary bool) reflect.Value {
	want, elem := reflectext.ArrayShape(t)
	d, ok := document.Attr(e, document.AttrDimensions)
	if !ok {
		r.fail(fmt.Errorf("%w: array without %s", ErrMalformed, document.AttrDimensions))
	}
	dims, err := document.ParseDimensions(d)
	if err != nil {
		r.fail(err)
	}
	if !slices.Equal(dims, want) {
		r.fail(fmt.Errorf("%w: array of dimensions %v read into %s", ErrMalformed, dims, t))
	}
	items := r.items(e, document.ValuesName)
	if n := reflectext.ArrayLen(dims); len(items) != n {
		r.fail(fmt.Errorf("%w: array of dimensions %v holds %d values", ErrMalformed, dims, len(items)))
	}

	r.enter()
	defer r.leave()

	x := reflect.New(t).Elem()
	for i, item := range items {
		r.push(strconv.Itoa(i))
		if v := r.readValue(item, elem, binary); v.IsValid() {
			reflectext.ArrayAt(x, reflectext.ArrayIndices(dims, i)).Set(v)
		}
		r.pop()
	}
	return x
}

func (r *reader) readMap(e *etree.Element, t reflect.Type, binary bool) reflect.Value {
	if isNull(e) {
		return reflect.Zero(t)
	}
	keys := r.items(e, document.KeysName)
	values := r.items(e, document.ValuesName)
	if len(keys) != len(values) {
		r.fail(fmt.Errorf("%w: map with %d keys and %d values", ErrMalformed, len(keys), len(values)))
	}

	r.enter()
	defer r.leave()

	x := reflect.MakeMapWithSize(t, len(keys))
	for i := range keys {
		r.push(strconv.Itoa(i))
		k := r.readValue(keys[i], t.Key(), binary)
		if !k.IsValid() {
			k = reflect.Zero(t.Key())
		}
		if x.MapIndex(k).IsValid() {
			r.fail(fmt.Errorf("%w: duplicate map key %v", ErrMalformed, k))
		}
		v := r.readValue(values[i], t.Elem(), binary)
		if !v.IsValid() {
			v = reflect.Zero(t.Elem())
		}
		x.SetMapIndex(k, v)
		r.pop()
	}
	return x
}
