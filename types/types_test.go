package types_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stealthrocket/graphdoc/internal/reflectext"
	"github.com/stealthrocket/graphdoc/meta"
	"github.com/stealthrocket/graphdoc/types"
)

// basicCodecs pretends every predeclared basic type has a textual codec and
// []byte has a binary one.
type basicCodecs struct{}

func (basicCodecs) Has(t reflect.Type, binary bool) bool {
	if binary {
		return t == reflect.TypeFor[[]byte]()
	}
	return reflectext.IsBasic(t) && reflectext.Underlying(t) == t
}

type Color uint8

type Leaf struct {
	Label string
}

type Node struct {
	Name     string
	Children []*Node
	Tint     Color
	Extra    any
	Payload  []byte `graph:",binary"`
	Grid     [2][3]float64
	Index    map[string]Leaf
}

func TestIdentity(t *testing.T) {
	tests := []struct {
		typ  reflect.Type
		want string
	}{
		{reflect.TypeFor[int](), "int"},
		{reflect.TypeFor[any](), "any"},
		{reflect.TypeFor[error](), "error"},
		{reflect.TypeFor[Node](), "github.com/stealthrocket/graphdoc/types_test.Node"},
		{reflect.TypeFor[*Node](), "*github.com/stealthrocket/graphdoc/types_test.Node"},
		{reflect.TypeFor[[]string](), "[]string"},
		{reflect.TypeFor[[2][3]float32](), "[2][3]float32"},
		{reflect.TypeFor[map[string][]int](), "map[string][]int"},
		{reflect.TypeFor[map[[2]int]Leaf](), "map[[2]int]github.com/stealthrocket/graphdoc/types_test.Leaf"},
	}
	for _, test := range tests {
		if got := types.Identity(test.typ); got != test.want {
			t.Errorf("Identity(%v) = %q, want %q", test.typ, got, test.want)
		}
	}
}

func TestCatalogResolve(t *testing.T) {
	c := types.NewCatalog()
	c.Add(reflect.TypeFor[Leaf]())

	for _, typ := range []reflect.Type{
		reflect.TypeFor[int](),
		reflect.TypeFor[Leaf](),
		reflect.TypeFor[*Leaf](),
		reflect.TypeFor[[][4]Leaf](),
		reflect.TypeFor[map[[2]int]Leaf](),
		reflect.TypeFor[map[string]map[int]*Leaf](),
		reflectext.ReflectTypeType,
	} {
		got, err := c.Resolve(types.Identity(typ))
		if err != nil {
			t.Errorf("resolving %v: %v", typ, err)
			continue
		}
		if got != typ {
			t.Errorf("resolved %v, want %v", got, typ)
		}
	}

	if _, err := c.Resolve("example.com/missing.Thing"); err == nil {
		t.Error("resolving an unregistered type did not fail")
	}
	if _, err := c.Resolve("[x]int"); err == nil {
		t.Error("resolving a malformed array identity did not fail")
	}
	if _, err := c.Resolve("map[[]int]string"); err == nil {
		t.Error("resolving a map with an incomparable key did not fail")
	}
}

func TestCatalogAddGraph(t *testing.T) {
	c := types.NewCatalog()
	p := meta.NewTagProvider()
	c.AddGraph(reflect.TypeFor[Node](), func(t reflect.Type) []reflect.Type {
		var out []reflect.Type
		for _, m := range p.Members(t) {
			out = append(out, m.Type)
		}
		return out
	})

	for _, typ := range []reflect.Type{
		reflect.TypeFor[Node](),
		reflect.TypeFor[Color](),
		reflect.TypeFor[Leaf](),
	} {
		if _, err := c.Resolve(types.Identity(typ)); err != nil {
			t.Errorf("%v was not registered: %v", typ, err)
		}
	}
	if !c.HasPackage("github.com/stealthrocket/graphdoc/types_test") {
		t.Error("package of registered types is unknown")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		typ  reflect.Type
		want types.Kind
	}{
		{reflect.TypeFor[int](), types.Primitive},
		{reflect.TypeFor[Color](), types.Enum},
		{reflect.TypeFor[Node](), types.Struct},
		{reflect.TypeFor[*Node](), types.Struct},
		{reflect.TypeFor[*int](), types.Pointer},
		{reflect.TypeFor[*Color](), types.Pointer},
		{reflect.TypeFor[**int](), types.Unknown},
		{reflect.TypeFor[*func()](), types.Unknown},
		{reflect.TypeFor[[]int](), types.List},
		{reflect.TypeFor[map[int]int](), types.Map},
		{reflect.TypeFor[[3]int](), types.Array},
		{reflect.TypeFor[any](), types.Unknown},
		{reflect.TypeFor[func()](), types.Unknown},
	}
	for _, test := range tests {
		if got := types.KindOf(test.typ, basicCodecs{}); got != test.want {
			t.Errorf("KindOf(%v) = %v, want %v", test.typ, got, test.want)
		}
	}
}

func discover(t *testing.T, root any) *types.Namespace {
	t.Helper()
	ns, err := types.Discover(reflect.ValueOf(root), meta.NewTagProvider(), basicCodecs{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	return ns
}

func identities(ns *types.Namespace) []string {
	var out []string
	for _, e := range ns.Table() {
		out = append(out, e.Name+"="+e.Identity)
	}
	return out
}

func TestDiscoverOrder(t *testing.T) {
	root := Node{
		Name:  "root",
		Tint:  3,
		Extra: 1.5,
		Children: []*Node{
			{Name: "child", Extra: Leaf{Label: "x"}},
		},
		Index: map[string]Leaf{"a": {}},
	}

	const pkg = "github.com/stealthrocket/graphdoc/types_test."
	// The child's Extra holds a Leaf, discovered while recursing into the
	// child before the root's own Extra (a float64) comes up.
	want := []string{
		"ns0=" + pkg + "Node",
		"ns1=string",
		"ns2=[]*" + pkg + "Node",
		"ns3=*" + pkg + "Node",
		"ns4=uint8",
		"ns5=" + pkg + "Leaf",
		"ns6=[]uint8",
		"ns7=[2][3]float64",
		"ns8=float64",
		"ns9=map[string]" + pkg + "Leaf",
	}

	first := identities(discover(t, root))
	if diff := cmp.Diff(want, first); diff != "" {
		t.Fatalf("type table mismatch (-want +got):\n%s", diff)
	}

	for i := 0; i < 5; i++ {
		again := identities(discover(t, root))
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("discovery is not deterministic (-first +again):\n%s", diff)
		}
	}
}

func TestDiscoverEnumUsesUnderlying(t *testing.T) {
	type palette struct {
		Main Color
	}
	ns := discover(t, palette{Main: 2})

	if _, ok := ns.ByType(reflect.TypeFor[Color]()); ok {
		t.Error("enum type has a name of its own")
	}
	d, err := ns.Lookup(reflect.TypeFor[Color](), basicCodecs{})
	if err != nil {
		t.Fatal(err)
	}
	u, _ := ns.ByType(reflect.TypeFor[uint8]())
	if d.Name != u.Name || d.Kind != types.Enum {
		t.Errorf("enum looked up as %+v, want name %s", d, u.Name)
	}
}

func TestDiscoverNilInterface(t *testing.T) {
	type holder struct {
		Value any
	}
	ns := discover(t, holder{})
	d, ok := ns.ByType(reflect.TypeFor[any]())
	if !ok {
		t.Fatal("nil interface member was not discovered")
	}
	if d.Kind != types.Unknown {
		t.Errorf("nil interface has kind %v, want unknown", d.Kind)
	}
}

type ring struct {
	Next *ring
}

func TestDiscoverCycle(t *testing.T) {
	a := &ring{}
	b := &ring{Next: a}
	a.Next = b

	ns := discover(t, *a)
	if ns.Len() != 2 {
		t.Errorf("expected 2 types, got %v", identities(ns))
	}
}

func TestDiscoverMaxDepth(t *testing.T) {
	type deep struct {
		Inner []any
	}
	v := deep{}
	cur := &v
	for i := 0; i < 20; i++ {
		next := deep{}
		cur.Inner = []any{&next}
		cur = &next
	}
	_, err := types.Discover(reflect.ValueOf(v), meta.NewTagProvider(), basicCodecs{}, 8)
	if err == nil {
		t.Fatal("expected depth error")
	}
}

func TestFromTable(t *testing.T) {
	c := types.NewCatalog()
	c.Add(reflect.TypeFor[Leaf]())

	ns, err := types.FromTable([]types.Entry{
		{Name: "ns0", Identity: types.Identity(reflect.TypeFor[Leaf]())},
		{Name: "ns1", Identity: "string"},
	}, c, basicCodecs{})
	if err != nil {
		t.Fatal(err)
	}
	d, ok := ns.ByName("ns0")
	if !ok || d.Type != reflect.TypeFor[Leaf]() || d.Kind != types.Struct {
		t.Errorf("unexpected ns0: %+v", d)
	}

	_, err = types.FromTable([]types.Entry{
		{Name: "ns0", Identity: "int"},
		{Name: "ns0", Identity: "string"},
	}, c, basicCodecs{})
	if err == nil {
		t.Error("duplicate names were accepted")
	}
}

func TestFromTableUnresolved(t *testing.T) {
	c := types.NewCatalog()
	ns, err := types.FromTable([]types.Entry{
		{Name: "ns0", Identity: "int"},
		{Name: "ns1", Identity: "example.com/gone.Widget"},
		{Name: "ns2", Identity: "[]example.com/gone.Widget"},
	}, c, basicCodecs{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ns.ByName("ns0"); !ok {
		t.Error("ns0 was not resolved")
	}
	if _, ok := ns.ByName("ns1"); ok {
		t.Error("ns1 was resolved")
	}
	if err := ns.Unresolved("ns1"); err == nil {
		t.Error("ns1 has no resolution error")
	}
	if err := ns.Unresolved("ns0"); err != nil {
		t.Errorf("ns0 has a resolution error: %v", err)
	}
	if diff := cmp.Diff([]string{"ns1", "ns2"}, ns.UnresolvedNames()); diff != "" {
		t.Errorf("unresolved names mismatch (-want +got):\n%s", diff)
	}
	if ns.Len() != 1 {
		t.Errorf("namespace holds %d types, want 1", ns.Len())
	}
}

func TestDiscoverAmbiguousIdentity(t *testing.T) {
	type pair struct {
		A, B any
	}
	a := func() any {
		type local struct{ X int }
		return local{}
	}()
	b := func() any {
		type local struct{ Y int }
		return local{}
	}()

	_, err := types.Discover(reflect.ValueOf(pair{A: a, B: b}), meta.NewTagProvider(), basicCodecs{}, 0)
	if !errors.Is(err, types.ErrAmbiguousIdentity) {
		t.Fatalf("expected ambiguous identity error, got %v", err)
	}
	if _, err := types.Discover(reflect.ValueOf(pair{A: a, B: a}), meta.NewTagProvider(), basicCodecs{}, 0); err != nil {
		t.Fatal(err)
	}
}

func TestPointerElem(t *testing.T) {
	for _, test := range []struct {
		typ  reflect.Type
		want reflect.Type
	}{
		{reflect.TypeFor[*int](), reflect.TypeFor[int]()},
		{reflect.TypeFor[*Color](), reflect.TypeFor[uint8]()},
	} {
		if got := types.Elem(test.typ, basicCodecs{}); got != test.want {
			t.Errorf("Elem(%v) = %v, want %v", test.typ, got, test.want)
		}
	}
}
