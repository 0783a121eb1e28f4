package reflectext_test

import (
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stealthrocket/graphdoc/internal/reflectext"
)

type hidden struct {
	Visible int
	secret  string
	inner   struct{ depth int }
}

func TestFieldUnexported(t *testing.T) {
	v := reflect.ValueOf(&hidden{Visible: 1, secret: "s"}).Elem()

	f := reflectext.Field(v, []int{1}, false)
	if got := f.String(); got != "s" {
		t.Fatalf("expected s, got %q", got)
	}
	f.SetString("changed")

	depth := reflectext.Field(v, []int{2, 0}, false)
	depth.SetInt(3)

	h := v.Interface().(hidden)
	if h.secret != "changed" || h.inner.depth != 3 {
		t.Errorf("unexpected struct after set: %+v", h)
	}
}

func TestAddressable(t *testing.T) {
	m := map[string]hidden{"a": {Visible: 4}}
	v := reflect.ValueOf(m).MapIndex(reflect.ValueOf("a"))
	if v.CanAddr() {
		t.Fatal("map values are not expected to be addressable")
	}
	a := reflectext.Addressable(v)
	if !a.CanAddr() {
		t.Fatal("copy is not addressable")
	}
	if a.Field(0).Int() != 4 {
		t.Errorf("copy lost its content")
	}
}

func TestArrayShape(t *testing.T) {
	dims, elem := reflectext.ArrayShape(reflect.TypeFor[[2][3]int16]())
	if diff := cmp.Diff([]int{2, 3}, dims); diff != "" {
		t.Errorf("dims mismatch (-want +got):\n%s", diff)
	}
	if elem != reflectext.Int16Type {
		t.Errorf("expected int16 element, got %s", elem)
	}
	if n := reflectext.ArrayLen(dims); n != 6 {
		t.Errorf("expected 6 elements, got %d", n)
	}
}

func TestArrayIndicesRowMajor(t *testing.T) {
	dims := []int{2, 3}
	var got [][]int
	for i := 0; i < reflectext.ArrayLen(dims); i++ {
		got = append(got, reflectext.ArrayIndices(dims, i))
	}
	want := [][]int{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("indices mismatch (-want +got):\n%s", diff)
	}

	grid := [2][3]int{{1, 2, 3}, {4, 5, 6}}
	v := reflect.ValueOf(grid)
	if x := reflectext.ArrayAt(v, []int{1, 2}).Int(); x != 6 {
		t.Errorf("expected 6, got %d", x)
	}
}

func TestSortedMapKeys(t *testing.T) {
	m := map[int]string{30: "c", -1: "a", 7: "b"}
	var got []int64
	for _, k := range reflectext.SortedMapKeys(reflect.ValueOf(m)) {
		got = append(got, k.Int())
	}
	if diff := cmp.Diff([]int64{-1, 7, 30}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	mixed := map[any]int{"b": 1, 2: 2, "a": 3, 1: 4}
	first := reflectext.SortedMapKeys(reflect.ValueOf(mixed))
	for i := 0; i < 10; i++ {
		again := reflectext.SortedMapKeys(reflect.ValueOf(mixed))
		for j := range first {
			if first[j].Interface() != again[j].Interface() {
				t.Fatalf("order of mixed keys is not deterministic")
			}
		}
	}
}

func TestUnderlying(t *testing.T) {
	type Color uint8
	if u := reflectext.Underlying(reflect.TypeFor[Color]()); u != reflectext.Uint8Type {
		t.Errorf("expected uint8, got %v", u)
	}
	if u := reflectext.Underlying(reflect.TypeFor[struct{}]()); u != nil {
		t.Errorf("expected nil for struct, got %v", u)
	}
}
