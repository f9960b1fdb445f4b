// Package a11y reconstructs a navigable accessibility tree from the flat
// node list the protocol returns. The wire response is treated as an arena
// addressed by node id; neither the forward child references nor the
// backward parent references are trusted unconditionally, because large or
// dynamically rendered pages come back with one side missing.
package a11y

import "fmt"

// Value is the protocol's wrapped AX value.
type Value struct {
	Value any `json:"value"`
}

// Str renders the wrapped value as a string, empty when unset.
func (v *Value) Str() string {
	if v == nil || v.Value == nil {
		return ""
	}
	switch t := v.Value.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Property is one entry in a node's property bag.
type Property struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// Node is one wire-protocol accessibility record. It exists only during
// tree construction.
type Node struct {
	ID            string     `json:"nodeId"`
	Ignored       bool       `json:"ignored"`
	Role          *Value     `json:"role,omitempty"`
	Name          *Value     `json:"name,omitempty"`
	Properties    []Property `json:"properties,omitempty"`
	ChildIDs      []string   `json:"childIds,omitempty"`
	ParentID      string     `json:"parentId,omitempty"`
	BackendNodeID int        `json:"backendDOMNodeId,omitempty"`
}

// TreeNode is one rendered output node.
type TreeNode struct {
	Role     string            `json:"role"`
	Name     string            `json:"name,omitempty"`
	Ref      string            `json:"ref,omitempty"`
	Props    map[string]string `json:"props,omitempty"`
	Children []*TreeNode       `json:"children,omitempty"`
}

// Tree is the reconstruction result. A truncated tree is a valid result,
// never an error.
type Tree struct {
	Root       *TreeNode      `json:"root"`
	TotalNodes int            `json:"total_nodes"`
	Truncated  bool           `json:"truncated"`
	Refs       map[string]int `json:"refs,omitempty"`
}

// interactiveRoles are the roles that receive a short reference id during
// traversal.
var interactiveRoles = map[string]struct{}{
	"button": {}, "link": {}, "textbox": {}, "checkbox": {}, "radio": {},
	"combobox": {}, "listbox": {}, "option": {}, "menuitem": {}, "tab": {},
	"searchbox": {}, "slider": {}, "spinbutton": {}, "switch": {}, "textarea": {},
}

type builder struct {
	byID       map[string]*Node
	order      []string
	childIndex map[string][]string
	visiting   map[string]bool

	limit     int
	count     int
	truncated bool

	nextRef int
	refs    map[string]int
}

// BuildTree reconstructs the tree, assigns reference ids, and truncates at
// limit output nodes (0 means no limit). Reference ids are assigned in
// depth-first traversal order and nothing else, so rebuilding from the
// same node list reproduces the same ids.
func BuildTree(nodes []Node, limit int) *Tree {
	t := &Tree{TotalNodes: len(nodes), Refs: map[string]int{}}
	if len(nodes) == 0 {
		return t
	}

	b := &builder{
		byID:     make(map[string]*Node, len(nodes)),
		order:    make([]string, 0, len(nodes)),
		visiting: make(map[string]bool),
		limit:    limit,
		refs:     t.Refs,
	}
	for i := range nodes {
		n := &nodes[i]
		if _, dup := b.byID[n.ID]; dup {
			continue
		}
		b.byID[n.ID] = n
		b.order = append(b.order, n.ID)
	}

	root := b.findRoot(nodes)

	// Forward child references first; if the root resolves no children
	// while the input clearly has structure, invert the parent references
	// and use those instead.
	if !b.hasResolvableChildren(root) && len(b.byID) > 1 {
		b.invertParents()
	}

	t.Root = b.materialize(root)
	if t.Root == nil && root.Ignored {
		// An ignored root contributes no node itself; its promoted
		// children need a neutral parent to hang from.
		t.Root = &TreeNode{Role: "generic", Children: b.promote(root)}
	}
	t.Truncated = b.truncated
	return t
}

func (b *builder) findRoot(nodes []Node) *Node {
	for i := range nodes {
		if nodes[i].ParentID == "" {
			return &nodes[i]
		}
	}
	return &nodes[0]
}

// hasResolvableChildren reports whether any forward child reference on the
// root actually points at a node in the arena. Dangling ids count for
// nothing.
func (b *builder) hasResolvableChildren(n *Node) bool {
	for _, id := range n.ChildIDs {
		if _, ok := b.byID[id]; ok {
			return true
		}
	}
	return false
}

func (b *builder) resolveChildren(n *Node) []string {
	if b.childIndex != nil {
		return b.childIndex[n.ID]
	}
	return n.ChildIDs
}

// invertParents builds a parent-to-children index in input order, replacing
// the unreliable forward references for the rest of the build.
func (b *builder) invertParents() {
	b.childIndex = make(map[string][]string, len(b.byID))
	for _, id := range b.order {
		n := b.byID[id]
		if n.ParentID == "" {
			continue
		}
		b.childIndex[n.ParentID] = append(b.childIndex[n.ParentID], id)
	}
}

// materialize converts one non-ignored node, or returns nil when the node
// is ignored or the ceiling has been reached. Callers splice an ignored
// node's promoted children themselves.
func (b *builder) materialize(n *Node) *TreeNode {
	if n.Ignored {
		return nil
	}
	if b.limit > 0 && b.count >= b.limit {
		b.truncated = true
		return nil
	}
	b.count++

	out := &TreeNode{
		Role: n.Role.Str(),
		Name: n.Name.Str(),
	}
	if _, ok := interactiveRoles[out.Role]; ok {
		b.nextRef++
		out.Ref = fmt.Sprintf("e%d", b.nextRef)
		b.refs[out.Ref] = n.BackendNodeID
	}
	for _, p := range n.Properties {
		if s := p.Value.Str(); s != "" {
			if out.Props == nil {
				out.Props = make(map[string]string)
			}
			out.Props[p.Name] = s
		}
	}
	out.Children = b.promote(n)
	return out
}

// promote assembles a node's output children: non-ignored children are
// materialized in order, and each ignored child is replaced, in place, by
// its own promoted children. The expansion recurses, so any depth of
// consecutive ignored ancestors collapses transparently.
func (b *builder) promote(n *Node) []*TreeNode {
	if b.visiting[n.ID] {
		return nil
	}
	b.visiting[n.ID] = true
	defer delete(b.visiting, n.ID)

	var out []*TreeNode
	for _, id := range b.resolveChildren(n) {
		child, ok := b.byID[id]
		if !ok || b.visiting[child.ID] {
			continue
		}
		if child.Ignored {
			out = append(out, b.promote(child)...)
			continue
		}
		if node := b.materialize(child); node != nil {
			out = append(out, node)
		}
	}
	return out
}
