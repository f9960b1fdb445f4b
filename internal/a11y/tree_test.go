package a11y

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func val(s string) *Value { return &Value{Value: s} }

func node(id, role, name string, children ...string) Node {
	return Node{ID: id, Role: val(role), Name: val(name), ChildIDs: children}
}

func withParent(n Node, parent string) Node {
	n.ParentID = parent
	return n
}

func ignored(n Node) Node {
	n.Ignored = true
	return n
}

// pageFixture builds the same small page three ways: forward references
// only, backward references only, and both.
func pageFixture(forward, backward bool) []Node {
	ns := []Node{
		node("1", "WebArea", "Example", "2", "3"),
		node("2", "heading", "Welcome"),
		node("3", "form", "", "4", "5"),
		node("4", "textbox", "Email"),
		node("5", "button", "Submit"),
	}
	parents := map[string]string{"2": "1", "3": "1", "4": "3", "5": "3"}
	for i := range ns {
		if !forward {
			ns[i].ChildIDs = nil
		}
		if backward {
			ns[i].ParentID = parents[ns[i].ID]
		}
	}
	return ns
}

func flatten(n *TreeNode, out *[]string) {
	if n == nil {
		return
	}
	*out = append(*out, n.Role+"/"+n.Name+"/"+n.Ref)
	for _, c := range n.Children {
		flatten(c, out)
	}
}

func TestBuildTreeReferenceDirections(t *testing.T) {
	variants := map[string][]Node{
		"forward only":  pageFixture(true, false),
		"backward only": pageFixture(false, true),
		"both":          pageFixture(true, true),
	}

	var want []string
	{
		tree := BuildTree(pageFixture(true, false), 0)
		flatten(tree.Root, &want)
	}
	require.NotEmpty(t, want)

	for name, nodes := range variants {
		t.Run(name, func(t *testing.T) {
			tree := BuildTree(nodes, 0)
			require.NotNil(t, tree.Root)
			assert.False(t, tree.Truncated)
			assert.Equal(t, 5, tree.TotalNodes)

			var got []string
			flatten(tree.Root, &got)
			assert.Equal(t, want, got)
		})
	}
}

func TestBuildTreeIgnoredPromotion(t *testing.T) {
	t.Run("single ignored node", func(t *testing.T) {
		nodes := []Node{
			node("1", "WebArea", "", "2"),
			ignored(node("2", "genericContainer", "", "3", "4")),
			node("3", "button", "One"),
			node("4", "button", "Two"),
		}
		tree := BuildTree(nodes, 0)
		require.NotNil(t, tree.Root)

		require.Len(t, tree.Root.Children, 2)
		assert.Equal(t, "One", tree.Root.Children[0].Name)
		assert.Equal(t, "Two", tree.Root.Children[1].Name)
	})

	t.Run("deep ignored chain", func(t *testing.T) {
		// 1 -> i2 -> i3 -> i4 -> leaf; every intermediate is ignored.
		nodes := []Node{
			node("1", "WebArea", "", "2"),
			ignored(node("2", "generic", "", "3")),
			ignored(node("3", "generic", "", "4")),
			ignored(node("4", "generic", "", "5")),
			node("5", "button", "Deep"),
		}
		tree := BuildTree(nodes, 0)
		require.NotNil(t, tree.Root)
		require.Len(t, tree.Root.Children, 1)
		assert.Equal(t, "Deep", tree.Root.Children[0].Name)
	})

	t.Run("ignored siblings preserve order", func(t *testing.T) {
		nodes := []Node{
			node("1", "WebArea", "", "2", "3", "4"),
			node("2", "heading", "First"),
			ignored(node("3", "generic", "", "5", "6")),
			node("4", "heading", "Last"),
			node("5", "link", "A"),
			node("6", "link", "B"),
		}
		tree := BuildTree(nodes, 0)
		require.NotNil(t, tree.Root)

		names := make([]string, 0, 4)
		for _, c := range tree.Root.Children {
			names = append(names, c.Name)
		}
		assert.Equal(t, []string{"First", "A", "B", "Last"}, names)
	})

	t.Run("no ignored node appears in output", func(t *testing.T) {
		nodes := []Node{
			node("1", "WebArea", "", "2"),
			ignored(node("2", "generic", "hidden", "3")),
			node("3", "button", "Visible"),
		}
		tree := BuildTree(nodes, 0)
		var all []string
		flatten(tree.Root, &all)
		for _, entry := range all {
			assert.NotContains(t, entry, "generic")
			assert.NotContains(t, entry, "hidden")
		}
	})
}

func TestBuildTreeRefAssignment(t *testing.T) {
	t.Run("interactive roles get sequential refs", func(t *testing.T) {
		nodes := []Node{
			node("1", "WebArea", "", "2", "3", "4"),
			node("2", "button", "Save"),
			node("3", "heading", "Not interactive"),
			node("4", "link", "Docs"),
		}
		nodes[1].BackendNodeID = 101
		nodes[3].BackendNodeID = 103

		tree := BuildTree(nodes, 0)
		require.NotNil(t, tree.Root)

		assert.Equal(t, "e1", tree.Root.Children[0].Ref)
		assert.Empty(t, tree.Root.Children[1].Ref)
		assert.Equal(t, "e2", tree.Root.Children[2].Ref)
		assert.Equal(t, map[string]int{"e1": 101, "e2": 103}, tree.Refs)
	})

	t.Run("rebuild yields identical refs", func(t *testing.T) {
		nodes := pageFixture(true, true)
		first := BuildTree(nodes, 0)
		second := BuildTree(nodes, 0)

		assert.Equal(t, first.Refs, second.Refs)

		var a, b []string
		flatten(first.Root, &a)
		flatten(second.Root, &b)
		assert.Equal(t, a, b)
	})
}

func TestBuildTreeTruncation(t *testing.T) {
	const total = 50000
	const limit = 10000

	nodes := make([]Node, 0, total)
	// One root with total-1 direct children.
	children := make([]string, 0, total-1)
	for i := 2; i <= total; i++ {
		children = append(children, fmt.Sprintf("%d", i))
	}
	nodes = append(nodes, node("1", "WebArea", "", children...))
	for i := 2; i <= total; i++ {
		nodes = append(nodes, node(fmt.Sprintf("%d", i), "text", ""))
	}

	tree := BuildTree(nodes, limit)
	require.NotNil(t, tree.Root)
	assert.True(t, tree.Truncated)
	assert.Equal(t, total, tree.TotalNodes)
	assert.Len(t, tree.Root.Children, limit-1)
}

func TestBuildTreeEdgeCases(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		tree := BuildTree(nil, 0)
		assert.Nil(t, tree.Root)
		assert.Zero(t, tree.TotalNodes)
		assert.False(t, tree.Truncated)
	})

	t.Run("single node", func(t *testing.T) {
		tree := BuildTree([]Node{node("1", "WebArea", "Solo")}, 0)
		require.NotNil(t, tree.Root)
		assert.Equal(t, "Solo", tree.Root.Name)
		assert.Empty(t, tree.Root.Children)
	})

	t.Run("dangling child ids are skipped", func(t *testing.T) {
		nodes := []Node{
			node("1", "WebArea", "", "2", "99", "3"),
			node("2", "heading", "A"),
			node("3", "heading", "B"),
		}
		tree := BuildTree(nodes, 0)
		require.NotNil(t, tree.Root)
		require.Len(t, tree.Root.Children, 2)
	})

	t.Run("cycle does not loop forever", func(t *testing.T) {
		nodes := []Node{
			node("1", "WebArea", "", "2"),
			node("2", "generic", "", "1"),
		}
		tree := BuildTree(nodes, 0)
		require.NotNil(t, tree.Root)
	})

	t.Run("ignored root promotes children under neutral root", func(t *testing.T) {
		nodes := []Node{
			ignored(node("1", "WebArea", "", "2", "3")),
			node("2", "button", "A"),
			node("3", "button", "B"),
		}
		tree := BuildTree(nodes, 0)
		require.NotNil(t, tree.Root)
		require.Len(t, tree.Root.Children, 2)
	})

	t.Run("property bag is carried", func(t *testing.T) {
		n := node("1", "WebArea", "", "2")
		child := node("2", "checkbox", "Agree")
		child.Properties = []Property{
			{Name: "checked", Value: Value{Value: true}},
			{Name: "focusable", Value: Value{Value: true}},
		}
		tree := BuildTree([]Node{n, child}, 0)
		require.NotNil(t, tree.Root)
		require.Len(t, tree.Root.Children, 1)
		assert.Equal(t, "true", tree.Root.Children[0].Props["checked"])
	})
}

func TestValueStr(t *testing.T) {
	assert.Equal(t, "", (*Value)(nil).Str())
	assert.Equal(t, "button", val("button").Str())
	assert.Equal(t, "true", (&Value{Value: true}).Str())
	assert.Equal(t, "3", (&Value{Value: float64(3)}).Str())
	assert.Equal(t, "3.5", (&Value{Value: 3.5}).Str())
}
