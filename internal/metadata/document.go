package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/git-theta/theta/internal/jsonutil"
	"github.com/git-theta/theta/internal/thetaerr"
)

// Node is one entry of a Document: either a leaf ParamRecord or an
// interior node holding further Children. Exactly one of Record or
// Children is non-nil for a well-formed Node.
type Node struct {
	Record   *ParamRecord
	Children Document
}

// Document is a nested mapping with the same key structure as a
// checkpoint, whose leaves are parameter records (spec §3).
type Document map[string]*Node

// Leaf constructs a leaf Node wrapping rec.
func Leaf(rec *ParamRecord) *Node { return &Node{Record: rec} }

// Branch constructs an interior Node wrapping children.
func Branch(children Document) *Node { return &Node{Children: children} }

// MarshalJSON renders a leaf as its ParamRecord's three fields, and an
// interior node as its nested children map.
func (n *Node) MarshalJSON() ([]byte, error) {
	if n.Record != nil {
		return json.Marshal(n.Record)
	}
	return json.Marshal(n.Children)
}

// UnmarshalJSON distinguishes a leaf (a map containing all three of
// tensor_metadata/lfs_metadata/theta_metadata) from an interior node (any
// other map) the same way the upstream project's `is_leaf` predicate
// does.
func (n *Node) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("%w: %v", thetaerr.ErrPointerParse, err)
	}
	if isLeafShape(probe) {
		var rec ParamRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		n.Record = &rec
		return nil
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	n.Children = doc
	return nil
}

func isLeafShape(m map[string]json.RawMessage) bool {
	_, hasTensor := m["tensor_metadata"]
	_, hasLFS := m["lfs_metadata"]
	_, hasTheta := m["theta_metadata"]
	return hasTensor && hasLFS && hasTheta
}

// Flatten converts the Document's tree shape into a flat
// ParamName -> *ParamRecord map, mirroring the upstream project's
// flatten/unflatten pair over an ordered dict.
func Flatten(doc Document) map[string]*ParamRecord {
	out := make(map[string]*ParamRecord)
	flattenInto(doc, nil, out)
	return out
}

func flattenInto(doc Document, prefix ParamName, out map[string]*ParamRecord) {
	for k, node := range doc {
		name := append(prefix.Clone(), k)
		if node.Record != nil {
			out[name.String()] = node.Record
			continue
		}
		flattenInto(node.Children, name, out)
	}
}

// Unflatten rebuilds a Document tree from a flat slash-joined-name ->
// record map, splitting each key on "/".
func Unflatten(flat map[string]*ParamRecord) Document {
	root := Document{}
	for key, rec := range flat {
		name := splitName(key)
		insert(root, name, rec)
	}
	return root
}

func insert(doc Document, name ParamName, rec *ParamRecord) {
	if len(name) == 1 {
		doc[name[0]] = Leaf(rec)
		return
	}
	head, rest := name[0], name[1:]
	existing, ok := doc[head]
	if !ok || existing.Children == nil {
		existing = Branch(Document{})
		doc[head] = existing
	}
	insert(existing.Children, rest, rec)
}

func splitName(key string) ParamName {
	var parts ParamName
	start := 0
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			parts = append(parts, key[start:i])
			start = i + 1
		}
	}
	parts = append(parts, key[start:])
	return parts
}

// SortedKeys returns the flat parameter names from flat in lexicographic
// order, guaranteeing reproducible iteration (spec §4.8: "sorting
// guarantees reproducible metadata bytes").
func SortedKeys(flat map[string]*ParamRecord) []string {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Serialize renders doc as pretty-printed JSON with 4-space indentation
// and lexicographically sorted keys at every level. The document is
// first decoded into generic maps (numbers kept as json.Number), whose
// keys encoding/json emits in sorted order, so the fields inside each
// parameter record are sorted too instead of following struct order.
func Serialize(doc Document) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return jsonutil.MarshalIndentWithNewline(generic, "", "    ")
}

// Parse parses a Metadata document from its canonical JSON form.
func Parse(data []byte) (Document, error) {
	if len(data) == 0 {
		return Document{}, nil
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, thetaerr.New(thetaerr.Decode, fmt.Errorf("parsing metadata document: %w", err))
	}
	return doc, nil
}

// Diff computes a three-way diff between doc and other: added keys
// present in doc but not other, removed keys present in other but not
// doc, and modified keys present in both with a different object-store
// OID (spec §4.4).
func Diff(doc, other Document) (added, removed, modified map[string]*ParamRecord) {
	a := Flatten(doc)
	b := Flatten(other)

	added = make(map[string]*ParamRecord)
	removed = make(map[string]*ParamRecord)
	modified = make(map[string]*ParamRecord)

	for k, rec := range a {
		if _, ok := b[k]; !ok {
			added[k] = rec
		}
	}
	for k, rec := range b {
		if _, ok := a[k]; !ok {
			removed[k] = rec
		}
	}
	for k, recA := range a {
		if recB, ok := b[k]; ok && recA.LFS.OID != recB.LFS.OID {
			modified[k] = recA
		}
	}
	return added, removed, modified
}
