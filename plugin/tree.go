package plugin

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnType 列值类型，渲染时据此选择格式化函数
type ColumnType int

const (
	TypeString ColumnType = iota
	TypeInt
	TypeHex
	TypeBool
	TypeFloat
	TypeDateTime
	TypeBytes
)

// Column describes one column of a result tree.
type Column struct {
	Name string
	Type ColumnType
}

// Hex is an integer rendered in hexadecimal.
type Hex uint64

// String implements fmt.Stringer.
func (h Hex) String() string { return fmt.Sprintf("0x%x", uint64(h)) }

// AbsentValue marks a cell that has no value. Absent cells render as null.
type AbsentValue interface {
	absent()
	String() string
}

type absentValue string

func (absentValue) absent()          {}
func (a absentValue) String() string { return string(a) }

// Absent value sentinels.
var (
	NotApplicable AbsentValue = absentValue("N/A")
	NotAvailable  AbsentValue = absentValue("-")
	Unreadable    AbsentValue = absentValue("Unreadable")
)

// IsAbsent reports whether v is an absent-value sentinel.
func IsAbsent(v any) bool {
	_, ok := v.(AbsentValue)
	return ok
}

// Node is one row of a result tree.
type Node struct {
	path     string
	parent   *Node
	children []*Node
	values   []any
}

// Path returns the stable path identifier of the node.
func (n *Node) Path() string { return n.path }

// Parent returns the parent node, or nil for a root node.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the child nodes in insertion order.
func (n *Node) Children() []*Node { return n.children }

// Values returns the cell values in column order.
func (n *Node) Values() []any { return n.values }

// Depth returns the nesting level; roots are at depth 1.
func (n *Node) Depth() int {
	return strings.Count(n.path, pathSeparator) + 1
}

const pathSeparator = "|"

// Tree 插件输出的层级结果树
type Tree struct {
	columns []Column
	roots   []*Node
	size    int
}

// NewTree creates an empty tree with the given columns.
func NewTree(columns ...Column) *Tree {
	return &Tree{columns: columns}
}

// Columns returns the declared columns.
func (t *Tree) Columns() []Column { return t.columns }

// Roots returns the top-level nodes in insertion order.
func (t *Tree) Roots() []*Node { return t.roots }

// Len returns the total number of nodes.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return t.size
}

// Add appends a node under parent, or at the top level when parent is nil.
// Values are not validated against the columns here; the renderer reports
// mismatches.
func (t *Tree) Add(parent *Node, values ...any) *Node {
	n := &Node{parent: parent, values: values}
	if parent == nil {
		n.path = strconv.Itoa(len(t.roots))
		t.roots = append(t.roots, n)
	} else {
		n.path = parent.path + pathSeparator + strconv.Itoa(len(parent.children))
		parent.children = append(parent.children, n)
	}
	t.size++
	return n
}

// Visit walks the tree depth-first in pre-order, threading acc through fn.
// Every node is visited exactly once and the tree is never mutated.
func Visit[A any](t *Tree, acc A, fn func(n *Node, acc A) A) A {
	if t == nil {
		return acc
	}
	var walk func(nodes []*Node, acc A) A
	walk = func(nodes []*Node, acc A) A {
		for _, n := range nodes {
			acc = fn(n, acc)
			acc = walk(n.children, acc)
		}
		return acc
	}
	return walk(t.roots, acc)
}
