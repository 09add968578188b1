package graph

import "strings"

// Identity is a participant address. Two identities are the same participant
// only when their trimmed strings are equal; no case folding is applied.
type Identity string

// NewIdentity trims surrounding whitespace from s.
func NewIdentity(s string) Identity {
	return Identity(strings.TrimSpace(s))
}

func (i Identity) String() string {
	return string(i)
}

// Node is a unique participant in the graph.
type Node struct {
	Identity Identity
}

// Edge is one message sent from one participant to another. Label carries the
// message identifier.
type Edge struct {
	From  Identity
	To    Identity
	Label string
}

// Store accumulates nodes and edges for a single scan. It is append-only and
// not safe for concurrent use.
type Store struct {
	nodes []*Node
	index map[Identity]*Node
	edges []Edge
}

func NewStore() *Store {
	return &Store{index: make(map[Identity]*Node)}
}

// GetOrCreateNode returns the node for id, creating it in first-seen order if
// it does not exist yet.
func (s *Store) GetOrCreateNode(id Identity) *Node {
	if node, ok := s.index[id]; ok {
		return node
	}
	node := &Node{Identity: id}
	s.index[id] = node
	s.nodes = append(s.nodes, node)
	return node
}

// AddEdge records a message from one identity to another. Self loops are
// dropped without touching the node set; the return value reports whether an
// edge was stored.
func (s *Store) AddEdge(from, to Identity, label string) bool {
	if from == to {
		return false
	}
	src := s.GetOrCreateNode(from)
	dst := s.GetOrCreateNode(to)
	s.edges = append(s.edges, Edge{From: src.Identity, To: dst.Identity, Label: label})
	return true
}

// Nodes returns the nodes in first-seen order.
func (s *Store) Nodes() []*Node {
	out := make([]*Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// Edges returns the edges in insertion order.
func (s *Store) Edges() []Edge {
	out := make([]Edge, len(s.edges))
	copy(out, s.edges)
	return out
}

func (s *Store) NodeCount() int {
	return len(s.nodes)
}

func (s *Store) EdgeCount() int {
	return len(s.edges)
}
