// Package synatree is the parser adapter (§2 step 2, §1 "explicitly out of
// scope"): it turns Rust source text into the abstract Node tree the rest
// of the pipeline consumes. The core packages (extract, resolve, ...) only
// ever see the Node interface below — never a concrete tree-sitter type —
// so a different concrete-syntax-tree backend could be substituted without
// touching them.
package synatree

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// Node is a labeled syntax-tree node with typed children and a source span.
// It is the tree abstraction named in §2 step 2 and §9 ("dynamic dispatch
// of tree nodes"): callers branch on Kind() the way the teacher's extractor
// branches on tree-sitter node-type strings.
type Node interface {
	Kind() string
	ChildCount() int
	Child(i int) Node
	NamedChild(i int) Node
	NamedChildCount() int
	FieldChild(name string) Node
	Text(source []byte) string
	StartLine() int
	StartColumn() int
	Parent() Node
	HasError() bool
}

// Tree owns the parsed syntax tree and the source bytes it was parsed from.
// Close must be called once the tree is no longer needed to release the
// underlying tree-sitter resources.
type Tree struct {
	root   Node
	source []byte
	raw    *sitter.Tree
}

func (t *Tree) Root() Node      { return t.root }
func (t *Tree) Source() []byte  { return t.source }
func (t *Tree) Close()          { t.raw.Close() }

// Parse implements the externally-supplied parse(sourceText) -> tree
// function of §2. It is the only function in this package that creates a
// Tree; Children and NamedChildren are traversal helpers over Node.
func Parse(source []byte) (*Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(rust.GetLanguage())
	raw, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing source: %w", err)
	}
	root := raw.RootNode()
	if root == nil {
		raw.Close()
		return nil, fmt.Errorf("parsing source: empty tree")
	}
	return &Tree{root: wrap(root), source: source, raw: raw}, nil
}

// sitterNode adapts *sitter.Node to the Node interface.
type sitterNode struct {
	n *sitter.Node
}

func wrap(n *sitter.Node) Node {
	if n == nil {
		return nil
	}
	return sitterNode{n: n}
}

func (s sitterNode) Kind() string { return s.n.Type() }

func (s sitterNode) ChildCount() int { return int(s.n.ChildCount()) }

func (s sitterNode) Child(i int) Node {
	if i < 0 || i >= int(s.n.ChildCount()) {
		return nil
	}
	return wrap(s.n.Child(i))
}

func (s sitterNode) NamedChildCount() int { return int(s.n.NamedChildCount()) }

func (s sitterNode) NamedChild(i int) Node {
	if i < 0 || i >= int(s.n.NamedChildCount()) {
		return nil
	}
	return wrap(s.n.NamedChild(i))
}

func (s sitterNode) FieldChild(name string) Node {
	return wrap(s.n.ChildByFieldName(name))
}

func (s sitterNode) Text(source []byte) string {
	return string(source[s.n.StartByte():s.n.EndByte()])
}

func (s sitterNode) StartLine() int { return int(s.n.StartPoint().Row) + 1 }

func (s sitterNode) StartColumn() int { return int(s.n.StartPoint().Column) + 1 }

func (s sitterNode) Parent() Node { return wrap(s.n.Parent()) }

func (s sitterNode) HasError() bool { return s.n.HasError() }

// Children returns a slice of every direct child, named or not, in source
// order — a convenience over the index-based Child/ChildCount pair for the
// common "enumerate all children" traversal (§9: "recursive descent into
// trees ... an equivalent implementation enumerates nodes via a pre-order
// iterator or a recursive visitor returning a list").
func Children(n Node) []Node {
	if n == nil {
		return nil
	}
	out := make([]Node, 0, n.ChildCount())
	for i := 0; i < n.ChildCount(); i++ {
		out = append(out, n.Child(i))
	}
	return out
}

// NamedChildren is the named-only equivalent of Children.
func NamedChildren(n Node) []Node {
	if n == nil {
		return nil
	}
	out := make([]Node, 0, n.NamedChildCount())
	for i := 0; i < n.NamedChildCount(); i++ {
		out = append(out, n.NamedChild(i))
	}
	return out
}
