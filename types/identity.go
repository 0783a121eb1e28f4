package types

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Identity returns the textual identity of t, as written in the type table
// of documents.
//
// Named types are qualified with their import path
// ("github.com/org/pkg.Scene"), predeclared types use their name ("int",
// "error"), and unnamed composite types are spelled structurally in terms
// of the identities of their components ("[]example.com/pkg.Node",
// "map[string]int", "[2][3]float32", "*example.com/pkg.Node"). The empty
// interface is "any". Identities never contain spaces.
func Identity(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	if name := t.Name(); name != "" {
		if pkg := t.PkgPath(); pkg != "" {
			return pkg + "." + name
		}
		return name
	}
	switch t.Kind() {
	case reflect.Pointer:
		return "*" + Identity(t.Elem())
	case reflect.Slice:
		return "[]" + Identity(t.Elem())
	case reflect.Array:
		return "[" + strconv.Itoa(t.Len()) + "]" + Identity(t.Elem())
	case reflect.Map:
		return "map[" + Identity(t.Key()) + "]" + Identity(t.Elem())
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return "any"
		}
	}
	// Anonymous structs, funcs, channels and non-empty anonymous interfaces
	// only resolve when registered in a catalog.
	return strings.ReplaceAll(t.String(), " ", "")
}

// PackagePath returns the import path of the package that defines t, after
// stripping pointer, slice, array and map constructors. It is empty for
// predeclared types.
func PackagePath(t reflect.Type) string {
	for t.Name() == "" {
		switch t.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Array:
			t = t.Elem()
		case reflect.Map:
			t = t.Elem()
		default:
			return ""
		}
	}
	return t.PkgPath()
}

// splitComposite parses the outermost constructor of a composite identity.
func splitComposite(name string) (kind reflect.Kind, key, elem string, n int, err error) {
	switch {
	case strings.HasPrefix(name, "*"):
		return reflect.Pointer, "", name[1:], 0, nil
	case strings.HasPrefix(name, "[]"):
		return reflect.Slice, "", name[2:], 0, nil
	case strings.HasPrefix(name, "["):
		end := strings.IndexByte(name, ']')
		if end < 0 {
			return 0, "", "", 0, fmt.Errorf("unterminated array length in %q", name)
		}
		n, err = strconv.Atoi(name[1:end])
		if err != nil || n < 0 {
			return 0, "", "", 0, fmt.Errorf("invalid array length in %q", name)
		}
		return reflect.Array, "", name[end+1:], n, nil
	case strings.HasPrefix(name, "map["):
		depth := 0
		for i := 3; i < len(name); i++ {
			switch name[i] {
			case '[':
				depth++
			case ']':
				depth--
				if depth == 0 {
					return reflect.Map, name[4:i], name[i+1:], 0, nil
				}
			}
		}
		return 0, "", "", 0, fmt.Errorf("unterminated map key in %q", name)
	}
	return reflect.Invalid, "", "", 0, nil
}
