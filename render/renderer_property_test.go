package render

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/dumpflow/plugin"
)

var propertyColumns = []plugin.Column{
	{Name: "ID", Type: plugin.TypeInt},
	{Name: "Label", Type: plugin.TypeString},
}

// genTree builds a random tree; node i gets ID i in insertion order and
// is flagged malformed when the generator says so.
func genTree(rt *rapid.T) (*plugin.Tree, []int, int) {
	tree := plugin.NewTree(propertyColumns...)
	n := rapid.IntRange(0, 60).Draw(rt, "nodes")

	var nodes []*plugin.Node
	parents := make([]int, n)
	malformed := 0
	for i := 0; i < n; i++ {
		parent := -1
		if i > 0 && rapid.Bool().Draw(rt, fmt.Sprintf("nested_%d", i)) {
			parent = rapid.IntRange(0, i-1).Draw(rt, fmt.Sprintf("parent_%d", i))
		}
		parents[i] = parent

		var label any = fmt.Sprintf("n%d", i)
		if rapid.IntRange(0, 9).Draw(rt, fmt.Sprintf("kind_%d", i)) == 0 {
			label = plugin.NotAvailable
		}
		values := []any{i, label}
		if rapid.IntRange(0, 9).Draw(rt, fmt.Sprintf("bad_%d", i)) == 0 {
			values = []any{i, struct{}{}}
			malformed++
		}

		var p *plugin.Node
		if parent >= 0 {
			p = nodes[parent]
		}
		nodes = append(nodes, tree.Add(p, values...))
	}
	return tree, parents, malformed
}

func preorderIDs(docs []*Document) []int64 {
	var out []int64
	for _, d := range docs {
		v, _ := d.Get("ID")
		out = append(out, v.(int64))
		out = append(out, preorderIDs(d.Children())...)
	}
	return out
}

func expectedPreorder(tree *plugin.Tree) []int64 {
	return plugin.Visit(tree, []int64(nil), func(n *plugin.Node, acc []int64) []int64 {
		return append(acc, int64(n.Values()[0].(int)))
	})
}

// TestProperty_Render_PreservesStructure 验证 N 个节点产生 N 个文档，
// 嵌套结构与父子关系一致，顺序等于先序遍历顺序。
func TestProperty_Render_PreservesStructure(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tree, parents, malformed := genTree(rt)

		docs, errs := NewRenderer().Render(tree)

		total := 0
		for _, d := range docs {
			total += d.Count()
		}
		require.Equal(rt, tree.Len(), total, "document count must equal node count")
		require.Len(rt, errs, malformed, "one render error per malformed node")
		assert.Equal(rt, expectedPreorder(tree), preorderIDs(docs))

		var check func(docs []*Document, parent int)
		check = func(docs []*Document, parent int) {
			for _, d := range docs {
				v, _ := d.Get("ID")
				id := int(v.(int64))
				require.Equal(rt, parent, parents[id], "node %d nested under wrong parent", id)
				check(d.Children(), id)
			}
		}
		check(docs, -1)
	})
}

// TestProperty_Render_AbsentIsNull 验证缺失值始终渲染为 null 而非省略或空串。
func TestProperty_Render_AbsentIsNull(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tree, _, _ := genTree(rt)
		docs, _ := NewRenderer().Render(tree)

		absent := make(map[int64]bool)
		plugin.Visit(tree, struct{}{}, func(n *plugin.Node, acc struct{}) struct{} {
			if plugin.IsAbsent(n.Values()[1]) {
				absent[int64(n.Values()[0].(int))] = true
			}
			return acc
		})

		var walk func([]*Document)
		walk = func(docs []*Document) {
			for _, d := range docs {
				id, _ := d.Get("ID")
				label, ok := d.Get("Label")
				require.True(rt, ok, "Label key must never be omitted")
				if absent[id.(int64)] {
					require.Nil(rt, label)
				}
				walk(d.Children())
			}
		}
		walk(docs)
	})
}
