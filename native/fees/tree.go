package fees

import (
	"errors"
	"fmt"
	"math"
)

const (
	MaxCellBits = 1023
	MaxCellRefs = 4
	// MaxDepth bounds the longest reference chain in a tree.
	MaxDepth = 512
)

var ErrInvalidTree = errors.New("fees: invalid tree")

// NodeID indexes a node inside a Tree arena.
type NodeID int

type node struct {
	bits  uint16
	refs  []NodeID
	depth int
}

// Tree is an immutable arena of serialized nodes. References always point to
// nodes created earlier, so a tree can never contain a cycle.
type Tree struct {
	nodes []node
	root  NodeID
}

// TreeStats aggregates the size of a serialized tree.
type TreeStats struct {
	Cells uint64
	Bits  uint64
}

func (s TreeStats) Add(o TreeStats) TreeStats {
	return TreeStats{Cells: satAdd(s.Cells, o.Cells), Bits: satAdd(s.Bits, o.Bits)}
}

// Builder appends nodes to an arena. The first invalid Add poisons the builder
// and the error is reported by Build.
type Builder struct {
	nodes []node
	err   error
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends a node holding bits data bits and the given child references.
func (b *Builder) Add(bits int, refs ...NodeID) NodeID {
	if b.err != nil {
		return -1
	}
	if bits < 0 || bits > MaxCellBits {
		b.err = fmt.Errorf("%w: node holds %d bits", ErrInvalidTree, bits)
		return -1
	}
	if len(refs) > MaxCellRefs {
		b.err = fmt.Errorf("%w: node has %d refs", ErrInvalidTree, len(refs))
		return -1
	}
	depth := 0
	for _, ref := range refs {
		if ref < 0 || int(ref) >= len(b.nodes) {
			b.err = fmt.Errorf("%w: ref %d is not an earlier node", ErrInvalidTree, ref)
			return -1
		}
		if d := b.nodes[ref].depth + 1; d > depth {
			depth = d
		}
	}
	if depth > MaxDepth {
		b.err = fmt.Errorf("%w: depth %d exceeds %d", ErrInvalidTree, depth, MaxDepth)
		return -1
	}
	id := NodeID(len(b.nodes))
	b.nodes = append(b.nodes, node{bits: uint16(bits), refs: append([]NodeID(nil), refs...), depth: depth})
	return id
}

// Build freezes the arena with the given root.
func (b *Builder) Build(root NodeID) (*Tree, error) {
	if b.err != nil {
		return nil, b.err
	}
	if root < 0 || int(root) >= len(b.nodes) {
		return nil, fmt.Errorf("%w: root %d out of range", ErrInvalidTree, root)
	}
	nodes := make([]node, int(root)+1)
	copy(nodes, b.nodes[:int(root)+1])
	return &Tree{nodes: nodes, root: root}, nil
}

// Leaf returns a single-node tree.
func Leaf(bits int) (*Tree, error) {
	b := NewBuilder()
	return b.Build(b.Add(bits))
}

// Linear lays out bits as a chain of full nodes, each referencing the next.
func Linear(bits uint64) (*Tree, error) {
	b := NewBuilder()
	count := bits / MaxCellBits
	tail := bits % MaxCellBits
	if tail == 0 && count > 0 {
		count--
		tail = MaxCellBits
	}
	if count > MaxDepth {
		return nil, fmt.Errorf("%w: %d bits exceed the chain limit", ErrInvalidTree, bits)
	}
	id := b.Add(int(tail))
	for i := uint64(0); i < count; i++ {
		id = b.Add(MaxCellBits, id)
	}
	return b.Build(id)
}

// Root returns the root node id.
func (t *Tree) Root() NodeID { return t.root }

// RootBits returns the number of data bits held by the root node.
func (t *Tree) RootBits() int {
	if t == nil || len(t.nodes) == 0 {
		return 0
	}
	return int(t.nodes[t.root].bits)
}

// RootRefs returns the number of references held by the root node.
func (t *Tree) RootRefs() int {
	if t == nil || len(t.nodes) == 0 {
		return 0
	}
	return len(t.nodes[t.root].refs)
}

// CollectStats sums node and bit counts over every reference reachable from
// the root. A subtree referenced twice is counted twice. When skipRoot is set
// the root's own node and bits are excluded.
func CollectStats(t *Tree, skipRoot bool) TreeStats {
	if t == nil || len(t.nodes) == 0 {
		return TreeStats{}
	}
	memo := make([]TreeStats, len(t.nodes))
	for i := range t.nodes {
		n := t.nodes[i]
		s := TreeStats{Cells: 1, Bits: uint64(n.bits)}
		for _, ref := range n.refs {
			s = s.Add(memo[ref])
		}
		memo[i] = s
	}
	total := memo[t.root]
	if skipRoot {
		total.Cells--
		total.Bits -= uint64(t.nodes[t.root].bits)
	}
	return total
}

func satAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
