package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BaSui01/dumpflow/plugin"
)

// RenderError is a non-fatal problem with one node. The node is still
// emitted, with null for every cell that could not be rendered.
type RenderError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e RenderError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e RenderError) Unwrap() error { return e.Err }

// Summary joins render errors into diagnostic text, one per line.
func Summary(errs []RenderError) string {
	if len(errs) == 0 {
		return ""
	}
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = e.Error()
	}
	return strings.Join(lines, "\n")
}

// Renderer 将结果树扁平化为有序文档
type Renderer struct {
	formatters map[plugin.ColumnType]Formatter
	fallback   Formatter
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithFormatter overrides the formatter for one column type.
func WithFormatter(t plugin.ColumnType, f Formatter) Option {
	return func(r *Renderer) { r.formatters[t] = f }
}

// WithFallback overrides the formatter used for unknown column types.
func WithFallback(f Formatter) Option {
	return func(r *Renderer) { r.fallback = f }
}

// NewRenderer creates a renderer with the default formatters.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		formatters: DefaultFormatters(),
		fallback:   FormatDefault,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// accumulator is threaded through the traversal; each visit returns the
// next value.
type accumulator struct {
	byPath map[string]*Document
	roots  []*Document
	errs   []RenderError
}

// Render flattens tree into documents in pre-order. Children are nested
// under their parent's ChildrenKey; roots form the returned slice.
func (r *Renderer) Render(tree *plugin.Tree) ([]*Document, []RenderError) {
	if tree == nil {
		return nil, nil
	}
	initial := accumulator{byPath: make(map[string]*Document, tree.Len())}
	columns := tree.Columns()

	final := plugin.Visit(tree, initial, func(n *plugin.Node, acc accumulator) accumulator {
		doc, err := r.renderNode(columns, n)
		if err != nil {
			acc.errs = append(acc.errs, RenderError{Path: n.Path(), Err: err})
		}

		if parent := n.Parent(); parent != nil {
			if pdoc, ok := acc.byPath[parent.Path()]; ok {
				pdoc.AppendChild(doc)
			} else {
				// 父节点未物化时作为根节点保留
				acc.roots = append(acc.roots, doc)
			}
		} else {
			acc.roots = append(acc.roots, doc)
		}
		acc.byPath[n.Path()] = doc
		return acc
	})

	return final.roots, final.errs
}

func (r *Renderer) renderNode(columns []plugin.Column, n *plugin.Node) (*Document, error) {
	doc := NewDocument()
	values := n.Values()

	var errs []error
	if len(values) != len(columns) {
		errs = append(errs, fmt.Errorf("has %d values for %d columns", len(values), len(columns)))
	}

	for i, col := range columns {
		if i >= len(values) {
			doc.Set(col.Name, nil)
			continue
		}
		v, err := r.renderValue(col, values[i])
		if err != nil {
			errs = append(errs, fmt.Errorf("column %s: %w", col.Name, err))
			v = nil
		}
		doc.Set(col.Name, v)
	}
	return doc, errors.Join(errs...)
}

func (r *Renderer) renderValue(col plugin.Column, v any) (out any, err error) {
	if plugin.IsAbsent(v) {
		return nil, nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, fmt.Errorf("formatter panicked: %v", rec)
		}
	}()

	format, ok := r.formatters[col.Type]
	if !ok {
		format = r.fallback
	}
	out, err = format(v)
	if err == nil && plugin.IsAbsent(out) {
		out = nil
	}
	return out, err
}
