package main

import (
	"fmt"
	"slices"

	"github.com/beevik/etree"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stealthrocket/graphdoc/compress"
	"github.com/stealthrocket/graphdoc/document"
)

func newFormatCommand(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "fmt FILE...",
		Short: "Rewrite documents with the configured indentation and compression",
		Long: "fmt rewrites documents in place, indenting them as configured and\n" +
			"compressing every binary value again with the configured algorithm.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "" && len(args) != 1 {
				return fmt.Errorf("--write-to requires a single input file")
			}
			tag := a.cfg.CompressionTag()
			for _, path := range args {
				doc, err := document.ReadFile(path)
				if err != nil {
					return err
				}
				n, err := recompress(doc.Root(), tag)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				dst := path
				if output != "" {
					dst = output
				}
				if err := doc.WriteFile(dst, a.cfg.Indent); err != nil {
					return err
				}
				a.logger.Info("formatted document",
					zap.String("path", dst),
					zap.Int("blobs", n),
					zap.Stringer("compression", tag))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "write-to", "w", "", "write the result to this file instead of in place")
	return cmd
}

// recompress replaces every binary value under e by the same data
// compressed with tag. It returns the number of values rewritten.
func recompress(e *etree.Element, tag compress.Tag) (int, error) {
	n := 0
	data, length, ok, err := document.Blob(e)
	if err != nil {
		return 0, err
	}
	if ok && length > 0 {
		raw, err := compress.Decompress(data, length)
		if err != nil {
			return 0, err
		}
		data, err = compress.Compress(raw, tag)
		if err != nil {
			return 0, err
		}
		for _, t := range slices.Clone(e.Child) {
			if _, isText := t.(*etree.CharData); isText {
				e.RemoveChild(t)
			}
		}
		e.RemoveAttr(document.AttrLength)
		document.SetBlob(e, data, length)
		n++
	}
	for _, c := range e.ChildElements() {
		m, err := recompress(c, tag)
		if err != nil {
			return 0, err
		}
		n += m
	}
	return n, nil
}
