package main

import (
	"fmt"
	"io"

	"github.com/beevik/etree"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/stealthrocket/graphdoc/document"
)

// summary describes the content of a document without resolving its types.
type summary struct {
	Path     string      `yaml:"path"`
	Root     string      `yaml:"root"`
	Types    []typeEntry `yaml:"types"`
	Shared   int         `yaml:"shared"`
	Elements int         `yaml:"elements"`
	Depth    int         `yaml:"depth"`
	Blobs    int         `yaml:"blobs"`
	Bytes    int         `yaml:"bytes"`
}

type typeEntry struct {
	Name     string `yaml:"name"`
	Identity string `yaml:"identity"`
}

func newInspectCommand(a *app) *cobra.Command {
	var jobs int
	cmd := &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Summarize the content of documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summaries, err := inspectFiles(args, a.cfg.MaxDepth, jobs)
			if err != nil {
				return err
			}
			for _, s := range summaries {
				a.logger.Debug("inspected document",
					zap.String("path", s.Path),
					zap.Int("types", len(s.Types)),
					zap.Int("elements", s.Elements))
			}
			return printSummaries(cmd.OutOrStdout(), a.cfg.Output, summaries)
		},
	}
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 4, "number of documents read concurrently")
	return cmd
}

// inspectFiles reads the documents concurrently. The summaries are returned
// in the order of paths.
func inspectFiles(paths []string, maxDepth, jobs int) ([]summary, error) {
	summaries := make([]summary, len(paths))
	var g errgroup.Group
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, path := range paths {
		g.Go(func() error {
			doc, err := document.ReadFile(path)
			if err != nil {
				return err
			}
			s, err := inspect(doc, maxDepth)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			s.Path = path
			summaries[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func inspect(doc *document.Document, maxDepth int) (summary, error) {
	var s summary
	asset := doc.Asset()
	if asset == nil {
		return s, fmt.Errorf("%w: missing %s section", document.ErrMalformed, document.AssetName)
	}
	root, ok := doc.RootIdentity()
	if !ok {
		return s, fmt.Errorf("%w: undeclared root type %q", document.ErrMalformed, asset.Space)
	}
	s.Root = root
	for _, e := range doc.Types() {
		s.Types = append(s.Types, typeEntry{Name: e.Name, Identity: e.Identity})
	}
	if shared := doc.Shared(); shared != nil {
		s.Shared = len(shared.ChildElements())
		if err := s.walk(shared, 1, maxDepth); err != nil {
			return s, err
		}
	}
	if err := s.walk(asset, 1, maxDepth); err != nil {
		return s, err
	}
	return s, nil
}

func (s *summary) walk(e *etree.Element, depth, maxDepth int) error {
	if maxDepth > 0 && depth > maxDepth {
		return fmt.Errorf("%w: nesting deeper than %d", document.ErrMalformed, maxDepth)
	}
	s.Elements++
	s.Depth = max(s.Depth, depth)
	data, _, ok, err := document.Blob(e)
	if err != nil {
		return err
	}
	if ok {
		s.Blobs++
		s.Bytes += len(data)
	}
	for _, c := range e.ChildElements() {
		if err := s.walk(c, depth+1, maxDepth); err != nil {
			return err
		}
	}
	return nil
}

func printSummaries(w io.Writer, format string, summaries []summary) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(summaries); err != nil {
			return err
		}
		return enc.Close()
	}

	title := color.New(color.Bold)
	name := color.New(color.FgCyan)
	for i, s := range summaries {
		if i > 0 {
			fmt.Fprintln(w)
		}
		title.Fprintln(w, s.Path)
		fmt.Fprintf(w, "  root:     %s\n", s.Root)
		fmt.Fprintf(w, "  shared:   %d\n", s.Shared)
		fmt.Fprintf(w, "  elements: %d (depth %d)\n", s.Elements, s.Depth)
		fmt.Fprintf(w, "  blobs:    %d (%d bytes)\n", s.Blobs, s.Bytes)
		fmt.Fprintf(w, "  types:\n")
		for _, t := range s.Types {
			fmt.Fprintf(w, "    %s %s\n", name.Sprintf("%-5s", t.Name), t.Identity)
		}
	}
	return nil
}

func newRootTypeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "root FILE",
		Short: "Print the identity of the root type of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := document.ReadFile(args[0])
			if err != nil {
				return err
			}
			root, ok := doc.RootIdentity()
			if !ok {
				return fmt.Errorf("%s: %w: no root type", args[0], document.ErrMalformed)
			}
			a.logger.Debug("root type", zap.String("path", args[0]), zap.String("identity", root))
			fmt.Fprintln(cmd.OutOrStdout(), root)
			return nil
		},
	}
}
