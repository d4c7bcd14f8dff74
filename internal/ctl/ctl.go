// Package ctl implements the control tree: a hierarchical namespace for
// examining and modifying the internal state of an open pool by name.
//
// Engine subsystems register a module node at pool construction; after that
// the tree's shape is immutable and queries from any number of goroutines
// may share it without locking. Only leaf callbacks touch mutable state.
package ctl

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPath means a path segment matched no node at its level.
	ErrInvalidPath = errors.New("ctl: invalid path")
	// ErrIncompletePath means the path ended on an interior node.
	ErrIncompletePath = errors.New("ctl: path does not name a leaf")
	// ErrInvalidArguments means the read/write arguments do not match the
	// operations the resolved leaf provides.
	ErrInvalidArguments = errors.New("ctl: invalid arguments")
	// ErrDuplicateModule means a module node with the same name is already
	// registered at the tree root.
	ErrDuplicateModule = errors.New("ctl: module already registered")
)

// Kind discriminates the three node variants.
type Kind int

const (
	// KindNamed is an interior node matched by exact identifier text.
	KindNamed Kind = iota
	// KindIndexed is an interior node matched positionally by any path
	// segment that parses as an integer.
	KindIndexed
	// KindLeaf is a terminal node carrying read and/or write callbacks.
	KindLeaf
)

// Source tags where a query originated. Leaf callbacks may legitimately
// behave differently for the two origins, e.g. rejecting geometry changes
// outside of bulk config load.
type Source int

const (
	// SourceProgrammatic marks a direct call through Tree.Query.
	SourceProgrammatic Source = iota
	// SourceConfigInput marks a batched write submitted by LoadConfig.
	SourceConfigInput
)

// Index records one resolved numeric path segment: the parsed value and the
// name of the Indexed node it satisfied. The slice handed to a callback is
// ordered innermost-first and is scoped to that single query.
type Index struct {
	Value int64
	Name  string
}

// CallbackFunc is the contract a leaf callback must honor. The target is the
// pool handle passed through Query unchanged; arg is the caller's read or
// write argument.
type CallbackFunc func(target any, src Source, arg any, indexes []Index) error

// Node is one namespace entry. Children are meaningful only for Named and
// Indexed nodes; Read/Write only for Leaf nodes.
type Node struct {
	Name     string
	Kind     Kind
	Children []*Node
	Read     CallbackFunc
	Write    CallbackFunc
}

// Named builds an interior node matched by its name.
func Named(name string, children ...*Node) *Node {
	return &Node{Name: name, Kind: KindNamed, Children: children}
}

// Indexed builds an interior node matched by any numeric segment. The name
// is not matched against the path; it labels the resulting index entry.
func Indexed(name string, children ...*Node) *Node {
	return &Node{Name: name, Kind: KindIndexed, Children: children}
}

// Leaf builds a terminal node. Either callback may be nil; a query supplying
// an argument for a missing callback fails with ErrInvalidArguments.
func Leaf(name string, read, write CallbackFunc) *Node {
	return &Node{Name: name, Kind: KindLeaf, Read: read, Write: write}
}

// Tree is the per-pool control tree. Registration happens once, during
// single-threaded pool construction; afterwards the structure is read-only.
type Tree struct {
	roots []*Node
}

// NewTree returns an empty control tree.
func NewTree() *Tree {
	return &Tree{}
}

// RegisterModule appends a Named node with the given children to the tree
// root. Module names must be unique.
func (t *Tree) RegisterModule(name string, children []*Node) error {
	for _, r := range t.roots {
		if r.Name == name {
			return fmt.Errorf("%w: %q", ErrDuplicateModule, name)
		}
	}
	t.roots = append(t.roots, Named(name, children...))
	return nil
}

// Walk visits every node in registration order, depth first. The path joins
// segment names with "."; Indexed segments render as "<name>" since their
// concrete values are only known at query time.
func (t *Tree) Walk(fn func(path string, n *Node)) {
	for _, r := range t.roots {
		walkNode(r.Name, r, fn)
	}
}

func walkNode(path string, n *Node, fn func(string, *Node)) {
	fn(path, n)
	for _, c := range n.Children {
		seg := c.Name
		if c.Kind == KindIndexed {
			seg = "<" + c.Name + ">"
		}
		walkNode(path+"."+seg, c, fn)
	}
}
