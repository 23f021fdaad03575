package workflow

import (
	"testing"

	"github.com/matzehuels/flowlayout/pkg/errors"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		nodes []Node
		code  errors.Code
	}{
		{
			name: "valid",
			nodes: []Node{
				{ID: "a", Type: TypeStart, Transitions: []Transition{{Condition: "go", Target: "b"}}},
				{ID: "b"},
			},
		},
		{
			name:  "missing target is allowed",
			nodes: []Node{{ID: "a", Transitions: []Transition{{Condition: "go", Target: "ghost"}}}},
		},
		{name: "empty", nodes: nil},
		{name: "empty id", nodes: []Node{{ID: ""}}, code: errors.ErrCodeInvalidInput},
		{name: "duplicate", nodes: []Node{{ID: "a"}, {ID: "a"}}, code: errors.ErrCodeDuplicateNode},
		{name: "unknown type", nodes: []Node{{ID: "a", Type: "fork"}}, code: errors.ErrCodeInvalidInput},
		{
			name:  "empty condition",
			nodes: []Node{{ID: "a", Transitions: []Transition{{Target: "a"}}}},
			code:  errors.ErrCodeInvalidInput,
		},
		{
			name:  "empty target",
			nodes: []Node{{ID: "a", Transitions: []Transition{{Condition: "go"}}}},
			code:  errors.ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.nodes)
			if tt.code == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if got := errors.GetCode(err); got != tt.code {
				t.Errorf("Validate() code = %v, want %v", got, tt.code)
			}
		})
	}
}

func TestNodeTypeRank(t *testing.T) {
	order := []NodeType{TypeStart, TypeAction, TypeWait, TypeEnd, ""}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Errorf("Rank(%q) = %d, not below Rank(%q) = %d", order[i-1], order[i-1].Rank(), order[i], order[i].Rank())
		}
	}
	if NodeType("").Known() {
		t.Error("empty type reported as known")
	}
}

func TestClone(t *testing.T) {
	nodes := []Node{{ID: "a", Transitions: []Transition{{Condition: "c", Target: "a"}}}}
	cp := Clone(nodes)
	cp[0].Transitions[0].Target = "changed"
	if nodes[0].Transitions[0].Target != "a" {
		t.Error("Clone() shares transition storage with the input")
	}
}
