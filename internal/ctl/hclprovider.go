package ctl

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// HCLProvider yields configuration pairs from an HCL file. Nested block
// types, block labels and attribute names join with "." to form the query
// path, so
//
//	heap {
//	  chunk_size = 8192
//	}
//	stats {
//	  enabled = true
//	}
//
// yields heap.chunk_size=8192 and stats.enabled=1. Pairs are produced in
// source order. The whole file is parsed up front; First and Next only move
// a cursor.
//
// Indexed subtrees are not expressible in HCL: a block always contributes
// its type name as a path segment, so a bare numeric segment like the "0"
// in heap.0.automatic cannot be written. Tune indexed leaves through a
// string provider instead.
type HCLProvider struct {
	pairs []Pair
	pos   int
}

// NewHCLProvider parses the HCL file at path and prepares its pairs.
func NewHCLProvider(path string) (*HCLProvider, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s", ErrProviderFormat, diags.Error())
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected body type %T", ErrProviderFormat, file.Body)
	}

	var pairs []Pair
	if err := flattenBody(body, "", &pairs); err != nil {
		return nil, err
	}
	return &HCLProvider{pairs: pairs}, nil
}

// First returns the first pair, restarting the cursor.
func (p *HCLProvider) First() (Pair, error) {
	p.pos = 0
	return p.Next()
}

// Next returns the next pair in source order, or ErrExhausted.
func (p *HCLProvider) Next() (Pair, error) {
	if p.pos >= len(p.pairs) {
		return Pair{}, ErrExhausted
	}
	pair := p.pairs[p.pos]
	p.pos++
	return pair, nil
}

// bodyItem interleaves attributes and blocks so the output preserves the
// order they appear in the source file.
type bodyItem struct {
	startByte int
	attr      *hclsyntax.Attribute
	block     *hclsyntax.Block
}

func flattenBody(body *hclsyntax.Body, prefix string, out *[]Pair) error {
	items := make([]bodyItem, 0, len(body.Attributes)+len(body.Blocks))
	for _, attr := range body.Attributes {
		items = append(items, bodyItem{startByte: attr.SrcRange.Start.Byte, attr: attr})
	}
	for _, block := range body.Blocks {
		items = append(items, bodyItem{startByte: block.TypeRange.Start.Byte, block: block})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].startByte < items[j].startByte })

	for _, item := range items {
		if item.attr != nil {
			name := joinPath(prefix, item.attr.Name)
			value, diags := item.attr.Expr.Value(nil)
			if diags.HasErrors() {
				return fmt.Errorf("%w: %s: %s", ErrProviderFormat, name, diags.Error())
			}
			text, err := renderValue(value)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*out = append(*out, Pair{Name: name, Value: text})
			continue
		}

		blockPrefix := joinPath(prefix, item.block.Type)
		for _, label := range item.block.Labels {
			blockPrefix = joinPath(blockPrefix, label)
		}
		if err := flattenBody(item.block.Body, blockPrefix, out); err != nil {
			return err
		}
	}
	return nil
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + querySegmentSeparator + name
}

// renderValue converts a cty scalar into the textual form the write
// callbacks expect. Booleans render as 1/0 to match the string-provider
// convention.
func renderValue(v cty.Value) (string, error) {
	switch {
	case v.Type().Equals(cty.String):
		s := v.AsString()
		if strings.Contains(s, stringQuerySeparator) || strings.Contains(s, nameValueSeparator) {
			return "", fmt.Errorf("%w: value %q contains a reserved separator", ErrProviderFormat, s)
		}
		return s, nil
	case v.Type().Equals(cty.Number):
		bf := v.AsBigFloat()
		if bf.IsInt() {
			i, _ := bf.Int64()
			return strconv.FormatInt(i, 10), nil
		}
		return bf.Text('g', -1), nil
	case v.Type().Equals(cty.Bool):
		if v.True() {
			return "1", nil
		}
		return "0", nil
	}
	return "", fmt.Errorf("%w: unsupported value type %s", ErrProviderFormat, v.Type().FriendlyName())
}
