package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateFromRoot(t *testing.T) {
	pkg, err := loadPackage("./testdata/scene")
	require.NoError(t, err)

	src, set, err := generate(pkg, []string{"Scene"}, genFuncName)
	require.NoError(t, err)
	out := string(src)

	require.Contains(t, out, "// Code generated by graphdoc gen. DO NOT EDIT.")
	require.Contains(t, out, "package scene")
	require.Contains(t, out, `"time"`)
	require.Contains(t, out, "func RegisterGraphTypes(c *graphdoctypes.Catalog) {")
	for _, name := range []string{"Scene", "Layer", "Circle", "Square", "Color", "time.Time"} {
		require.Contains(t, out, "c.Add(reflect.TypeFor["+name+"]())")
	}
	require.NotContains(t, out, "Unrelated")
	require.NotContains(t, out, "TypeFor[Shape]")
	require.Less(t, strings.Index(out, "TypeFor[Scene]"), strings.Index(out, "TypeFor[Layer]"))
	require.GreaterOrEqual(t, set.Len(), 6)
}

func TestGenerateAllTypes(t *testing.T) {
	pkg, err := loadPackage("./testdata/scene")
	require.NoError(t, err)

	src, _, err := generate(pkg, nil, "registerAll")
	require.NoError(t, err)
	require.Contains(t, string(src), "func registerAll(")
	require.Contains(t, string(src), "c.Add(reflect.TypeFor[Unrelated]())")
}

func TestGenerateUnknownRoot(t *testing.T) {
	pkg, err := loadPackage("./testdata/scene")
	require.NoError(t, err)

	_, _, err = generate(pkg, []string{"Missing"}, genFuncName)
	require.Error(t, err)
}

func TestSkippedField(t *testing.T) {
	require.True(t, skippedField(`graph:"-"`))
	require.True(t, skippedField(`json:"x" graph:"-"`))
	require.False(t, skippedField(`graph:",binary"`))
	require.False(t, skippedField(``))
}

