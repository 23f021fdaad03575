package workflow

import (
	"slices"

	"github.com/matzehuels/flowlayout/pkg/errors"
)

// NodeType classifies a workflow node. The empty value means unclassified.
type NodeType string

const (
	TypeStart  NodeType = "start"
	TypeAction NodeType = "action"
	TypeWait   NodeType = "wait"
	TypeEnd    NodeType = "end"
)

// Known reports whether t is one of the four declared types.
func (t NodeType) Known() bool {
	switch t {
	case TypeStart, TypeAction, TypeWait, TypeEnd:
		return true
	}
	return false
}

// Rank orders node types for in-layer sorting: start, action, wait, end,
// then anything unclassified.
func (t NodeType) Rank() int {
	switch t {
	case TypeStart:
		return 0
	case TypeAction:
		return 1
	case TypeWait:
		return 2
	case TypeEnd:
		return 3
	}
	return 4
}

// Transition is a directed, labeled move from one node to another.
// Target may name a node that does not exist; the dependency graph records
// that as an issue and skips the transition.
type Transition struct {
	Condition   string `json:"on" toml:"on"`
	Target      string `json:"to" toml:"to"`
	Description string `json:"description,omitempty" toml:"description,omitempty"`
}

// Node is a single workflow step. Nodes are owned by the caller and treated as
// read-only by every layout stage.
type Node struct {
	ID          string       `json:"id" toml:"id"`
	Type        NodeType     `json:"type,omitempty" toml:"type,omitempty"`
	Description string       `json:"description,omitempty" toml:"description,omitempty"`
	Annotation  string       `json:"annotation,omitempty" toml:"annotation,omitempty"`
	Transitions []Transition `json:"transitions,omitempty" toml:"transitions,omitempty"`
}

// Annotated reports whether the node carries extra annotation content, which
// makes it render taller.
func (n Node) Annotated() bool { return n.Annotation != "" }

// Workflow is the document form of a node list.
type Workflow struct {
	Name  string `json:"name,omitempty" toml:"name,omitempty"`
	Nodes []Node `json:"nodes" toml:"nodes"`
}

// Validate performs the caller-side checks the layout core assumes have
// already happened: non-empty unique ids and transitions with both a
// condition and a target. Missing targets are not checked here.
func Validate(nodes []Node) error {
	seen := make(map[string]struct{}, len(nodes))
	for i, n := range nodes {
		if err := errors.ValidateNodeID(n.ID); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "node %d", i)
		}
		if _, dup := seen[n.ID]; dup {
			return errors.New(errors.ErrCodeDuplicateNode, "duplicate node id %q", n.ID)
		}
		seen[n.ID] = struct{}{}
		if n.Type != "" && !n.Type.Known() {
			return errors.New(errors.ErrCodeInvalidInput, "node %q has unknown type %q", n.ID, n.Type)
		}
		for j, t := range n.Transitions {
			if t.Condition == "" || t.Target == "" {
				return errors.New(errors.ErrCodeInvalidInput, "node %q transition %d needs both a condition and a target", n.ID, j)
			}
		}
	}
	return nil
}

// Clone returns a deep copy of nodes.
func Clone(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n
		out[i].Transitions = slices.Clone(n.Transitions)
	}
	return out
}
