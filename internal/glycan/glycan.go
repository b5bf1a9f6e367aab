// Package glycan provides the two glycan representations used across the
// project: topology trees parsed from condensed structure strings, and
// letter-coded monosaccharide compositions.
package glycan

// Kind identifies a monosaccharide residue.
type Kind uint8

const (
	GlcNAc Kind = iota
	GalNAc
	Man
	Gal
	Glc
	Fuc
	Neu5Ac
	Neu5Gc
	Xyl
	numKinds
)

var kindNames = [numKinds]string{
	GlcNAc: "GlcNAc",
	GalNAc: "GalNAc",
	Man:    "Man",
	Gal:    "Gal",
	Glc:    "Glc",
	Fuc:    "Fuc",
	Neu5Ac: "Neu5Ac",
	Neu5Gc: "Neu5Gc",
	Xyl:    "Xyl",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// KindFromName resolves a residue name to its Kind. The second return
// value is false for names outside the supported set.
func KindFromName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return 0, false
}

// UnknownPos marks a linkage carbon position that the input did not specify.
const UnknownPos = -1

// Linkage describes how a residue attaches to its parent, e.g. a2-6 for
// Neu5Ac(a2-6)Gal. Positions written as "?" are stored as UnknownPos.
type Linkage struct {
	Anomer    byte // 'a', 'b' or '?'
	ChildPos  int8 // carbon on the child residue
	ParentPos int8 // carbon on the parent residue
}

// NoParent is the parent index of the root node.
const NoParent = -1

// Node is one residue inside a Structure. Children keeps attachment order.
type Node struct {
	Kind     Kind
	Parent   int
	Children []int
	Link     Linkage // attachment to Parent; zero value for the root
}

// Structure is a rooted glycan topology tree. Nodes live in an arena and
// refer to each other by index; index 0 is always the reducing-end root.
type Structure struct {
	Name  string
	nodes []Node
}

// NumNodes returns the number of residues in the tree.
func (s *Structure) NumNodes() int { return len(s.nodes) }

// Node returns the residue at the given arena index.
func (s *Structure) Node(i int) *Node { return &s.nodes[i] }

// Root returns the arena index of the reducing-end residue.
func (s *Structure) Root() int { return 0 }

// Count returns how many residues of the given kind the tree contains.
func (s *Structure) Count(k Kind) int {
	n := 0
	for i := range s.nodes {
		if s.nodes[i].Kind == k {
			n++
		}
	}
	return n
}

// LinkCount returns the number of links touching node i, counting the link
// to its parent and one per child.
func (s *Structure) LinkCount(i int) int {
	n := len(s.nodes[i].Children)
	if s.nodes[i].Parent != NoParent {
		n++
	}
	return n
}

// BreadthFirst returns arena indices in breadth-first order starting at the
// root. Residues of a skipped kind are neither yielded nor descended into.
func (s *Structure) BreadthFirst(skip ...Kind) []int {
	if len(s.nodes) == 0 {
		return nil
	}
	order := make([]int, 0, len(s.nodes))
	queue := []int{0}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		if kindIn(s.nodes[i].Kind, skip) {
			continue
		}
		order = append(order, i)
		queue = append(queue, s.nodes[i].Children...)
	}
	return order
}

func kindIn(k Kind, kinds []Kind) bool {
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

// addNode appends a residue to the arena and registers it with its parent.
// Pass NoParent for the root.
func (s *Structure) addNode(k Kind, parent int, link Linkage) int {
	i := len(s.nodes)
	s.nodes = append(s.nodes, Node{Kind: k, Parent: parent, Link: link})
	if parent != NoParent {
		s.nodes[parent].Children = append(s.nodes[parent].Children, i)
	}
	return i
}
