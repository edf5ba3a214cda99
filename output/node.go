package output

// Kind distinguishes leaf values from values with structure.
type Kind int

const (
	Primitive Kind = iota
	Complex
)

func (k Kind) String() string {
	if k == Complex {
		return "complex"
	}
	return "primitive"
}

// Node represents a decoded value
type Node struct {
	Kind     Kind
	Name     string
	Type     string
	Payload  string
	Value    string
	Children []*Node
}

// Child returns the child stored under the given slot name
func (n *Node) Child(name string) *Node {
	for _, child := range n.Children {
		if child.Name == name {
			return child
		}
	}
	return nil
}

// LineCapture represents variables captured by one execution of the target line
type LineCapture struct {
	Line  int
	Nodes []*Node
}

// Lookup returns the root node for a variable name
func (c *LineCapture) Lookup(name string) *Node {
	for _, node := range c.Nodes {
		if node.Name == name {
			return node
		}
	}
	return nil
}

// Filter returns a capture limited to the given names, in the requested order, and the names that were not captured.
func (c *LineCapture) Filter(names []string) (*LineCapture, []string) {
	if len(names) == 0 {
		return c, nil
	}
	result := &LineCapture{Line: c.Line}
	var missing []string
	for _, name := range names {
		if node := c.Lookup(name); node != nil {
			result.Nodes = append(result.Nodes, node)
			continue
		}
		missing = append(missing, name)
	}
	return result, missing
}
