package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/flowlayout/pkg/errors"
)

// Supported document formats.
const (
	FormatJSON = "json"
	FormatTOML = "toml"
)

// Keys that mark a transition object as the structured form. Any other
// object is read as the legacy condition -> target map.
var structuredKeys = []string{"on", "condition", "to", "target", "description"}

// =============================================================================
// Public API
// =============================================================================

// ReadFile decodes a workflow document, choosing the format from the file
// extension (.json or .toml).
func ReadFile(path string) (*Workflow, error) {
	format, err := errors.ValidateInputFilename(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f, format)
}

// Decode reads a workflow document in the given format. Transitions in the
// legacy map form are normalized to [Transition] values here, so nothing
// downstream ever sees the legacy shape.
//
// For JSON the legacy map keeps document order. TOML tables carry no order,
// so legacy TOML transitions are sorted by condition.
func Decode(r io.Reader, format string) (*Workflow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	switch format {
	case FormatJSON:
		return decodeJSON(data)
	case FormatTOML:
		return decodeTOML(data)
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported format %q", format)
	}
}

// WriteJSON encodes w as indented JSON in the structured transition form.
func WriteJSON(w io.Writer, wf *Workflow) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(wf); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// =============================================================================
// JSON
// =============================================================================

type jsonNode struct {
	ID          string          `json:"id"`
	Type        NodeType        `json:"type"`
	Description string          `json:"description"`
	Annotation  string          `json:"annotation"`
	Transitions json.RawMessage `json:"transitions"`
}

type jsonWorkflow struct {
	Name  string     `json:"name"`
	Nodes []jsonNode `json:"nodes"`
}

func decodeJSON(data []byte) (*Workflow, error) {
	var doc jsonWorkflow
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &doc.Nodes); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode json")
		}
	} else if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode json")
	}

	wf := &Workflow{Name: doc.Name, Nodes: make([]Node, 0, len(doc.Nodes))}
	for _, jn := range doc.Nodes {
		ts, err := jsonTransitions(jn.Transitions)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "node %q transitions", jn.ID)
		}
		wf.Nodes = append(wf.Nodes, Node{
			ID:          jn.ID,
			Type:        jn.Type,
			Description: jn.Description,
			Annotation:  jn.Annotation,
			Transitions: ts,
		})
	}
	return wf, nil
}

func jsonTransitions(raw json.RawMessage) ([]Transition, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		var out []Transition
		for _, item := range items {
			ts, err := jsonObjectTransitions(item)
			if err != nil {
				return nil, err
			}
			out = append(out, ts...)
		}
		return out, nil
	case '{':
		return jsonObjectTransitions(raw)
	default:
		return nil, fmt.Errorf("transitions must be an array or an object")
	}
}

// jsonObjectTransitions reads one JSON object, either a structured
// transition or a legacy map that may hold several transitions.
func jsonObjectTransitions(raw json.RawMessage) ([]Transition, error) {
	pairs, err := orderedPairs(raw)
	if err != nil {
		return nil, err
	}

	values := make(map[string]any, len(pairs))
	keys := make([]string, 0, len(pairs))
	for _, p := range pairs {
		var v any
		if err := json.Unmarshal(p.value, &v); err != nil {
			return nil, err
		}
		values[p.key] = v
		keys = append(keys, p.key)
	}
	return fromObject(values, keys)
}

type pair struct {
	key   string
	value json.RawMessage
}

// orderedPairs decodes a JSON object preserving key order.
func orderedPairs(raw json.RawMessage) ([]pair, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("transition must be an object")
	}

	var pairs []pair
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := kt.(string)
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		pairs = append(pairs, pair{key: key, value: v})
	}
	return pairs, nil
}

// =============================================================================
// TOML
// =============================================================================

type tomlNode struct {
	ID          string   `toml:"id"`
	Type        NodeType `toml:"type"`
	Description string   `toml:"description"`
	Annotation  string   `toml:"annotation"`
	Transitions any      `toml:"transitions"`
}

type tomlWorkflow struct {
	Name  string     `toml:"name"`
	Nodes []tomlNode `toml:"nodes"`
}

func decodeTOML(data []byte) (*Workflow, error) {
	var doc tomlWorkflow
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode toml")
	}

	wf := &Workflow{Name: doc.Name, Nodes: make([]Node, 0, len(doc.Nodes))}
	for _, tn := range doc.Nodes {
		ts, err := anyTransitions(tn.Transitions)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "node %q transitions", tn.ID)
		}
		wf.Nodes = append(wf.Nodes, Node{
			ID:          tn.ID,
			Type:        tn.Type,
			Description: tn.Description,
			Annotation:  tn.Annotation,
			Transitions: ts,
		})
	}
	return wf, nil
}

func anyTransitions(v any) ([]Transition, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return fromObject(t, slices.Sorted(maps.Keys(t)))
	case []map[string]any:
		var out []Transition
		for _, m := range t {
			ts, err := fromObject(m, slices.Sorted(maps.Keys(m)))
			if err != nil {
				return nil, err
			}
			out = append(out, ts...)
		}
		return out, nil
	case []any:
		var out []Transition
		for _, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("transition must be a table, got %T", item)
			}
			ts, err := fromObject(m, slices.Sorted(maps.Keys(m)))
			if err != nil {
				return nil, err
			}
			out = append(out, ts...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("transitions must be an array or a table, got %T", v)
	}
}

// =============================================================================
// Shape normalization
// =============================================================================

// fromObject converts a decoded object to transitions. keys fixes the order
// in which legacy entries are emitted.
func fromObject(m map[string]any, keys []string) ([]Transition, error) {
	if isStructured(m) {
		t := Transition{
			Condition:   firstString(m, "on", "condition"),
			Target:      firstString(m, "to", "target"),
			Description: firstString(m, "description"),
		}
		return []Transition{t}, nil
	}

	out := make([]Transition, 0, len(keys))
	for _, k := range keys {
		target, ok := m[k].(string)
		if !ok {
			return nil, fmt.Errorf("legacy transition %q must map to a target id, got %T", k, m[k])
		}
		out = append(out, Transition{Condition: k, Target: target})
	}
	return out, nil
}

func isStructured(m map[string]any) bool {
	for _, k := range structuredKeys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
