package main

import (
	"bytes"
	"errors"
	"fmt"
	"go/format"
	"go/types"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/types/typeutil"

	"github.com/stealthrocket/graphdoc/meta"
)

const (
	defaultGenOutput = "graphdoc_types.go"
	genFuncName      = "RegisterGraphTypes"
	catalogImport    = "github.com/stealthrocket/graphdoc/types"
	catalogAlias     = "graphdoctypes"
)

func newGenCommand(a *app) *cobra.Command {
	var (
		typeNames []string
		output    string
		funcName  string
	)
	cmd := &cobra.Command{
		Use:   "gen [flags] [package]",
		Short: "Generate the registration of the types of an object graph",
		Long: "gen loads a Go package and writes a source file declaring a function\n" +
			"that adds to a type catalog every named type reachable from the\n" +
			"selected root types (all types of the package by default), including\n" +
			"the types of the package implementing the interfaces they hold.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := "."
			if len(args) == 1 {
				pattern = args[0]
			}
			pkg, err := loadPackage(pattern)
			if err != nil {
				return err
			}
			src, set, err := generate(pkg, typeNames, funcName)
			if err != nil {
				return err
			}
			if output == "-" {
				_, err = cmd.OutOrStdout().Write(src)
				return err
			}
			if output == "" {
				if len(pkg.GoFiles) == 0 {
					return fmt.Errorf("%s: no Go files", pkg.PkgPath)
				}
				output = filepath.Join(filepath.Dir(pkg.GoFiles[0]), defaultGenOutput)
			}
			if err := os.WriteFile(output, src, 0o644); err != nil {
				return err
			}
			a.logger.Info("generated type registration",
				zap.String("package", pkg.PkgPath),
				zap.String("output", output),
				zap.Int("types", set.Len()))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringSliceVarP(&typeNames, "type", "t", nil, "root types of the object graphs (default: all types of the package)")
	flags.StringVarP(&output, "write-to", "w", "", "output file, - for stdout (default: "+defaultGenOutput+" in the package directory)")
	flags.StringVar(&funcName, "func", genFuncName, "name of the generated function")
	return cmd
}

func loadPackage(pattern string) (*packages.Package, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedTypes | packages.NeedTypesInfo | packages.NeedSyntax | packages.NeedImports,
	}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, err
	}
	if len(pkgs) != 1 {
		return nil, fmt.Errorf("pattern %q matches %d packages, expected one", pattern, len(pkgs))
	}
	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		errs := make([]error, len(pkg.Errors))
		for i, e := range pkg.Errors {
			errs[i] = e
		}
		return nil, errors.Join(errs...)
	}
	return pkg, nil
}

// typeSet is an ordered set of types.
type typeSet struct {
	m     typeutil.Map
	order []types.Type
}

func (s *typeSet) Has(t types.Type) bool {
	return s.m.At(t) != nil
}

func (s *typeSet) Set(t types.Type) {
	if s.m.Set(t, struct{}{}) == nil {
		s.order = append(s.order, t)
	}
}

func (s *typeSet) Len() int {
	return len(s.order)
}

// graphScanner collects the named types reachable from the roots of an
// object graph.
type graphScanner struct {
	pkg        *types.Package
	seen       typeSet
	named      typeSet
	interfaces []*types.Interface
	// candidates are the concrete named types of pkg, which may be held by
	// interface members.
	candidates []*types.Named
}

func newGraphScanner(pkg *types.Package) *graphScanner {
	g := &graphScanner{pkg: pkg}
	scope := pkg.Scope()
	for _, name := range scope.Names() {
		tn, ok := scope.Lookup(name).(*types.TypeName)
		if !ok || tn.IsAlias() {
			continue
		}
		named, ok := tn.Type().(*types.Named)
		if !ok || named.TypeParams().Len() > 0 || types.IsInterface(named) {
			continue
		}
		g.candidates = append(g.candidates, named)
	}
	return g
}

func (g *graphScanner) scan(t types.Type) {
	t = types.Unalias(t)
	if g.seen.Has(t) {
		return
	}
	g.seen.Set(t)

	switch t := t.(type) {
	case *types.Named:
		if g.nameable(t) && !types.IsInterface(t) {
			g.named.Set(t)
		}
		g.scan(t.Underlying())
	case *types.Pointer:
		g.scan(t.Elem())
	case *types.Slice:
		g.scan(t.Elem())
	case *types.Array:
		g.scan(t.Elem())
	case *types.Map:
		g.scan(t.Key())
		g.scan(t.Elem())
	case *types.Struct:
		for i := 0; i < t.NumFields(); i++ {
			if skippedField(t.Tag(i)) {
				continue
			}
			g.scan(t.Field(i).Type())
		}
	case *types.Interface:
		g.implementations(t)
	}
}

// implementations scans the candidate types implementing iface, either by
// value or through a pointer.
func (g *graphScanner) implementations(iface *types.Interface) {
	if slices.ContainsFunc(g.interfaces, func(i *types.Interface) bool { return types.Identical(i, iface) }) {
		return
	}
	g.interfaces = append(g.interfaces, iface)
	for _, c := range g.candidates {
		switch {
		case types.Implements(c, iface):
			g.scan(c)
		case types.Implements(types.NewPointer(c), iface):
			g.scan(types.NewPointer(c))
		}
	}
}

// nameable reports whether the generated file, which belongs to g.pkg, can
// refer to t.
func (g *graphScanner) nameable(t *types.Named) bool {
	obj := t.Obj()
	if obj.Pkg() == nil || t.TypeArgs().Len() > 0 || t.TypeParams().Len() > 0 {
		return false
	}
	if obj.Parent() != obj.Pkg().Scope() {
		return false // declared in a function
	}
	if obj.Pkg() == g.pkg {
		return true
	}
	return obj.Exported() && !isInternal(obj.Pkg().Path())
}

func isInternal(path string) bool {
	return path == "internal" || strings.HasPrefix(path, "internal/") ||
		strings.HasSuffix(path, "/internal") || strings.Contains(path, "/internal/")
}

func skippedField(tag string) bool {
	return reflect.StructTag(tag).Get(meta.TagName) == "-"
}

// generate returns the source of the registration function of the types
// reachable from the named roots of pkg.
func generate(pkg *packages.Package, roots []string, funcName string) ([]byte, *typeSet, error) {
	g := newGraphScanner(pkg.Types)
	if len(roots) == 0 {
		for _, c := range g.candidates {
			g.scan(c)
		}
	} else {
		for _, name := range roots {
			tn, ok := pkg.Types.Scope().Lookup(name).(*types.TypeName)
			if !ok {
				return nil, nil, fmt.Errorf("%s: type %s not found", pkg.PkgPath, name)
			}
			g.scan(tn.Type())
		}
	}

	imports := map[string]string{}
	names := map[string]string{}
	qualifier := func(p *types.Package) string {
		if p == pkg.Types {
			return ""
		}
		if alias, ok := imports[p.Path()]; ok {
			return alias
		}
		alias := p.Name()
		for i := 2; names[alias] != "" || alias == catalogAlias || alias == "reflect" || pkg.Types.Scope().Lookup(alias) != nil; i++ {
			alias = fmt.Sprintf("%s%d", p.Name(), i)
		}
		imports[p.Path()] = alias
		names[alias] = p.Path()
		return alias
	}

	var body bytes.Buffer
	for _, t := range g.named.order {
		fmt.Fprintf(&body, "\tc.Add(reflect.TypeFor[%s]())\n", types.TypeString(t, qualifier))
	}

	var src bytes.Buffer
	fmt.Fprintf(&src, "// Code generated by graphdoc gen. DO NOT EDIT.\n\n")
	fmt.Fprintf(&src, "package %s\n\n", pkg.Name)
	fmt.Fprintf(&src, "import (\n\t\"reflect\"\n\n\t%s %q\n", catalogAlias, catalogImport)
	paths := make([]string, 0, len(imports))
	for path := range imports {
		paths = append(paths, path)
	}
	slices.Sort(paths)
	for _, path := range paths {
		fmt.Fprintf(&src, "\t%s %q\n", imports[path], path)
	}
	fmt.Fprintf(&src, ")\n\n")
	fmt.Fprintf(&src, "// %s adds the types of the object graphs of package %s to c.\n", funcName, pkg.Name)
	fmt.Fprintf(&src, "func %s(c *%s.Catalog) {\n", funcName, catalogAlias)
	src.Write(body.Bytes())
	fmt.Fprintf(&src, "}\n")

	out, err := format.Source(src.Bytes())
	if err != nil {
		return nil, nil, fmt.Errorf("formatting generated code: %w", err)
	}
	return out, &g.named, nil
}
