package sitecontent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Document is one content document: a JSON object tree. The pipeline treats it
// as opaque and only addresses it through dotted paths, so unknown fields
// survive every edit and publish untouched.
type Document struct {
	root map[string]interface{}
}

// ParseDocument decodes raw JSON into a Document. The top level must be an object.
func ParseDocument(data []byte) (*Document, error) {
	v, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}
	root, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("content document must be a JSON object, got %s", kindOf(v))
	}
	return &Document{root: root}, nil
}

// NewDocument builds a Document from any JSON-encodable value
func NewDocument(v interface{}) (*Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return ParseDocument(data)
}

// Bytes serializes the document as indented JSON (two spaces, no HTML escaping)
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d.root); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MarshalJSON implements json.Marshaler
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.root)
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Document) UnmarshalJSON(data []byte) error {
	parsed, err := ParseDocument(data)
	if err != nil {
		return err
	}
	d.root = parsed.root
	return nil
}

// Clone returns a deep copy of the document
func (d *Document) Clone() *Document {
	return &Document{root: deepCopy(d.root).(map[string]interface{})}
}

// Equal reports whether both documents hold the same tree
func (d *Document) Equal(other *Document) bool {
	if d == nil || other == nil {
		return d == other
	}
	a, err := json.Marshal(d.root)
	if err != nil {
		return false
	}
	b, err := json.Marshal(other.root)
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// Get returns a deep copy of the value at path
func (d *Document) Get(path string) (interface{}, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	var cur interface{} = d.root
	for _, seg := range segments {
		cur, err = child(cur, path, seg)
		if err != nil {
			return nil, err
		}
	}
	return deepCopy(cur), nil
}

// Decode unmarshals the value at path into out
func (d *Document) Decode(path string, out interface{}) error {
	v, err := d.Get(path)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// Set returns a new document where the value at path is replaced by value.
// The receiver is never modified. Intermediate segments must already exist;
// the final segment may add a new object key but must address an existing
// index when the parent is a list.
func (d *Document) Set(path string, value interface{}) (*Document, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	normalized, err := normalize(value)
	if err != nil {
		return nil, err
	}

	next := d.Clone()
	var cur interface{} = next.root
	for _, seg := range segments[:len(segments)-1] {
		cur, err = child(cur, path, seg)
		if err != nil {
			return nil, err
		}
	}

	last := segments[len(segments)-1]
	switch parent := cur.(type) {
	case map[string]interface{}:
		parent[last] = normalized
	case []interface{}:
		idx, err := index(parent, path, last)
		if err != nil {
			return nil, err
		}
		parent[idx] = normalized
	default:
		return nil, &PathError{Path: path, Segment: last, Reason: "parent is " + kindOf(cur)}
	}
	return next, nil
}

// Site decodes the document into the typed SiteContent view
func (d *Document) Site() (*SiteContent, error) {
	data, err := json.Marshal(d.root)
	if err != nil {
		return nil, err
	}
	var site SiteContent
	if err := json.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("failed to decode site content: %w", err)
	}
	return &site, nil
}

// AdminConfig returns the document's adminConfig block with defaults applied.
// Each field is read on its own, so one malformed field falls back to its
// default without discarding the others. Numeric fields also accept strings
// holding an integer.
func (d *Document) AdminConfig() AdminConfig {
	var cfg AdminConfig
	if v, err := d.Get("adminConfig.storage"); err == nil {
		if s, ok := v.(string); ok {
			cfg.Storage = StorageKind(s)
		}
	}
	cfg.MaxDimension = d.intField("adminConfig.maxDimension")
	cfg.MaxSizeKB = d.intField("adminConfig.maxSizeKB")
	return cfg.WithDefaults()
}

// intField returns the integer at path, or 0 when it is missing or not an integer
func (d *Document) intField(path string) int {
	v, err := d.Get(path)
	if err != nil {
		return 0
	}
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}
	return 0
}

func splitPath(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &PathError{Path: path, Reason: "empty path"}
	}
	segments := strings.Split(path, ".")
	for _, seg := range segments {
		if seg == "" {
			return nil, &PathError{Path: path, Segment: seg, Reason: "empty segment"}
		}
	}
	return segments, nil
}

func child(cur interface{}, path, seg string) (interface{}, error) {
	switch node := cur.(type) {
	case map[string]interface{}:
		v, ok := node[seg]
		if !ok {
			return nil, &PathError{Path: path, Segment: seg, Reason: "key does not exist"}
		}
		return v, nil
	case []interface{}:
		idx, err := index(node, path, seg)
		if err != nil {
			return nil, err
		}
		return node[idx], nil
	default:
		return nil, &PathError{Path: path, Segment: seg, Reason: "parent is " + kindOf(cur)}
	}
}

func index(list []interface{}, path, seg string) (int, error) {
	idx, err := strconv.Atoi(seg)
	if err != nil {
		return 0, &PathError{Path: path, Segment: seg, Reason: "not a list index"}
	}
	if idx < 0 || idx >= len(list) {
		return 0, &PathError{Path: path, Segment: seg, Reason: fmt.Sprintf("index out of range [0,%d)", len(list))}
	}
	return idx, nil
}

func decodeJSON(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return v, nil
}

// normalize converts any JSON-encodable value into the generic tree form
func normalize(value interface{}) (interface{}, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("value is not JSON-encodable: %w", err)
	}
	return decodeJSON(data)
}

// deepCopy copies a tree made of maps, slices and scalars
func deepCopy(v interface{}) interface{} {
	switch node := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(node))
		for k, val := range node {
			out[k] = deepCopy(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(node))
		for i, val := range node {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}

func kindOf(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "list"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	}
	return fmt.Sprintf("%T", v)
}
