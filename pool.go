package graphdoc

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"

	"github.com/beevik/etree"
	"github.com/zeebo/blake3"

	"github.com/stealthrocket/graphdoc/document"
	"github.com/stealthrocket/graphdoc/internal/reflectext"
	"github.com/stealthrocket/graphdoc/types"
)

// sharedKey identifies a shared object during one write: the address of the
// object and its type, since a struct and its first field share an address.
type sharedKey struct {
	addr uintptr
	typ  reflect.Type
}

// sharedPool is the write side of the shared-object pool. Each object is
// assigned an identifier the first time it is referenced, and its body is
// written to the Shared section of the document exactly once.
type sharedPool struct {
	section *etree.Element
	ids     map[sharedKey]string
}

func newSharedPool(section *etree.Element) *sharedPool {
	return &sharedPool{
		section: section,
		ids:     make(map[sharedKey]string),
	}
}

// intern returns the identifier of the object pointed to by p, and true if
// this is the first reference to it.
func (pool *sharedPool) intern(p reflect.Value) (string, bool) {
	k := sharedKey{addr: reflectext.PointerKey(p), typ: p.Type()}
	if id, ok := pool.ids[k]; ok {
		return id, false
	}
	id := sharedID(k)
	pool.ids[k] = id
	return id, true
}

// sharedID hashes the identity of an object into a 128 bits identifier,
// starting with a letter to be usable as an element name.
func sharedID(k sharedKey) string {
	h := blake3.New()
	var addr [8]byte
	binary.LittleEndian.PutUint64(addr[:], uint64(k.addr))
	h.Write(addr[:])
	h.Write([]byte(types.Identity(k.typ)))
	sum := h.Sum(nil)
	return "X" + strings.ToUpper(hex.EncodeToString(sum[:16]))
}

// loadShared is the read side of the shared-object pool. The first pass
// decodes the objects written with a codec and allocates the others, so that
// the second pass, which reads their members, can resolve references between
// them in any order.
func (r *reader) loadShared(section *etree.Element) {
	if section == nil {
		return
	}
	r.push(document.SharedName)
	defer r.pop()

	var deferred []*etree.Element
	for _, e := range section.ChildElements() {
		ns := r.typeOf(e)
		if !r.s.members.IsShared(ns.Type) {
			r.fail(fmt.Errorf("%w: shared object %s has type %s without shared semantics", ErrMalformed, e.Tag, ns.Type))
		}
		if _, dup := r.shared[e.Tag]; dup {
			r.fail(fmt.Errorf("%w: duplicate shared object %s", ErrMalformed, e.Tag))
		}
		leaf := types.HasCodec(r.s.codecs, ns.Type, true) || types.KindOf(ns.Type, r.s.codecs) == types.Pointer
		if leaf && hasEncodedValue(e) {
			r.push(e.Tag)
			r.shared[e.Tag] = r.readLeaf(e, ns.Type)
			r.pop()
			continue
		}
		r.shared[e.Tag] = reflect.New(ns.Type.Elem())
		deferred = append(deferred, e)
	}

	for _, e := range deferred {
		r.push(e.Tag)
		r.readMembers(e, r.shared[e.Tag].Elem())
		r.pop()
	}
}

func hasEncodedValue(e *etree.Element) bool {
	_, text := document.Attr(e, document.AttrValue)
	_, blob := document.Attr(e, document.AttrLength)
	return text || blob
}

// reference resolves the shared object referenced by e.
func (r *reader) reference(e *etree.Element, t reflect.Type) reflect.Value {
	id, ok := document.Attr(e, document.AttrID)
	if !ok {
		r.fail(fmt.Errorf("%w: shared reference without %s", ErrMalformed, document.AttrID))
	}
	if id == document.Null {
		return reflect.Zero(t)
	}
	p, ok := r.shared[id]
	if !ok {
		r.fail(fmt.Errorf("%w: reference to unknown shared object %s", ErrMalformed, id))
	}
	if p.Type() != t {
		r.fail(fmt.Errorf("%w: shared object %s is a %s, referenced as a %s", ErrMalformed, id, p.Type(), t))
	}
	return p
}
