// Package proptree implements a reactive configuration tree.
//
// A tree holds typed properties addressed by slash-separated paths. Setting
// a property first notifies its desired subscribers, then runs the coercer,
// then notifies the coerced subscribers. The value only becomes visible
// once every subscriber has accepted it.
package proptree

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrPathExists is returned when creating a property at a taken path.
	ErrPathExists = errors.New("proptree: path already exists")

	// ErrPathNotFound is returned when accessing a missing property.
	ErrPathNotFound = errors.New("proptree: path not found")

	// ErrTypeMismatch is returned when a property is accessed with a type
	// other than the one it was created with.
	ErrTypeMismatch = errors.New("proptree: type mismatch")

	// ErrEmpty is returned when reading a property that was never set.
	ErrEmpty = errors.New("proptree: property has no value")
)

// Node is the type-erased view of a property.
type Node interface {
	// Path returns where the property lives in the tree.
	Path() string

	// Value returns the current value of the property as an any.
	Value() (any, error)

	// SetJSON decodes a JSON document into the property's type and sets it.
	SetJSON(data []byte) error
}

// Tree owns a set of properties.
type Tree struct {
	mu    sync.RWMutex
	nodes map[string]Node
}

// New creates an empty Tree.
func New() *Tree {
	return &Tree{nodes: make(map[string]Node)}
}

// Clean normalizes a property path so that "a/b/", "/a//b" and "/a/b" name
// the same property.
func Clean(p string) string {
	return path.Clean("/" + p)
}

// Join joins path elements into a clean property path.
func Join(elem ...string) string {
	return Clean(path.Join(elem...))
}

// Create adds a new property of type T at path p.
func Create[T any](t *Tree, p string) (*Property[T], error) {
	p = Clean(p)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.nodes[p]; exists {
		return nil, fmt.Errorf("%w: %s", ErrPathExists, p)
	}

	prop := &Property[T]{path: p}
	t.nodes[p] = prop

	return prop, nil
}

// Access returns the property of type T at path p.
func Access[T any](t *Tree, p string) (*Property[T], error) {
	n, err := t.Node(p)
	if err != nil {
		return nil, err
	}

	prop, ok := n.(*Property[T])
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T", ErrTypeMismatch, n.Path(), n)
	}

	return prop, nil
}

// Node returns the property at path p without its type.
func (t *Tree) Node(p string) (Node, error) {
	p = Clean(p)

	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.nodes[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, p)
	}

	return n, nil
}

// Exists tells if a property lives at path p.
func (t *Tree) Exists(p string) bool {
	_, err := t.Node(p)
	return err == nil
}

// Remove deletes the property at path p.
func (t *Tree) Remove(p string) error {
	p = Clean(p)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.nodes[p]; !ok {
		return fmt.Errorf("%w: %s", ErrPathNotFound, p)
	}

	delete(t.nodes, p)

	return nil
}

// List returns the sorted paths of all properties under prefix.
func (t *Tree) List(prefix string) []string {
	prefix = Clean(prefix)
	if prefix != "/" {
		prefix += "/"
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	paths := make([]string, 0, len(t.nodes))
	for p := range t.nodes {
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}

	sort.Strings(paths)

	return paths
}
