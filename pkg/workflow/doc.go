// Package workflow defines the input model for flowlayout: nodes, their
// types, and the labeled transitions between them.
//
// # Documents
//
// Workflows are read from JSON or TOML with [Decode] or [ReadFile]. A JSON
// document is either an object with a "nodes" array or a bare array of
// nodes. A TOML document uses [[nodes]] tables.
//
// Transitions come in two shapes. The structured form names its fields:
//
//	{"on": "approved", "to": "ship", "description": "manager signed off"}
//
// "condition" and "target" are accepted as aliases for "on" and "to". The
// legacy form maps each condition directly to its target:
//
//	{"approved": "ship", "rejected": "revise"}
//
// Both shapes are normalized to [Transition] values during decoding. Code
// past this package never inspects the document shape.
//
// # Validation
//
// [Validate] performs the checks the layout pipeline assumes the caller has
// already made: unique, well-formed ids, known node types, and complete
// transitions. Transitions whose target does not exist are legal here. The
// dependency graph records them as issues instead.
package workflow
