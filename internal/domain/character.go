package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// OtherCategory collects tag values that arrive without a usable category.
const OtherCategory = "other"

// SourceGenerated marks characters parsed out of AI message text rather than
// a lorebook entry.
const SourceGenerated = "AI-generated"

// TagMap is an ordered string-keyed multimap of trait categories to values.
// Category insertion order is preserved so cards and serializations stay
// stable across runs. The vocabulary is open-ended: any non-empty string is a
// valid category.
type TagMap struct {
	order  []string
	values map[string][]string
}

func NewTagMap() *TagMap {
	return &TagMap{values: make(map[string][]string)}
}

// Add appends values under a lower-cased category key. Values are trimmed and
// empty ones dropped; duplicates accumulate (label-syntax semantics). An
// unusable category falls back to the "other" bucket.
func (m *TagMap) Add(category string, values ...string) {
	key := strings.ToLower(strings.TrimSpace(category))
	if key == "" {
		key = OtherCategory
	}
	m.append(key, false, values)
}

// AddUnique appends values under the category exactly as given, skipping
// values already present for that category (tag-block semantics).
func (m *TagMap) AddUnique(category string, values ...string) {
	key := strings.TrimSpace(category)
	if key == "" {
		key = OtherCategory
	}
	m.append(key, true, values)
}

// Append appends values under the category exactly as given, keeping
// duplicates. Used when copying between maps whose dedup decision was already
// made at parse time.
func (m *TagMap) Append(category string, values ...string) {
	key := strings.TrimSpace(category)
	if key == "" {
		key = OtherCategory
	}
	m.append(key, false, values)
}

func (m *TagMap) append(key string, unique bool, values []string) {
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return
	}

	if m.values == nil {
		m.values = make(map[string][]string)
	}
	existing, present := m.values[key]
	if !present {
		m.order = append(m.order, key)
	}

	for _, v := range cleaned {
		if unique && containsString(existing, v) {
			continue
		}
		existing = append(existing, v)
	}
	m.values[key] = existing
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// Get returns the values stored under category (exact key match). The
// returned slice must not be mutated by the caller.
func (m *TagMap) Get(category string) []string {
	if m == nil {
		return nil
	}
	return m.values[category]
}

// Categories returns category keys in insertion order.
func (m *TagMap) Categories() []string {
	if m == nil {
		return nil
	}
	return m.order
}

// Len returns the number of categories.
func (m *TagMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Empty reports whether the map holds no categories at all.
func (m *TagMap) Empty() bool {
	return m.Len() == 0
}

// TotalValues returns the number of values across all categories.
func (m *TagMap) TotalValues() int {
	if m == nil {
		return 0
	}
	total := 0
	for _, vs := range m.values {
		total += len(vs)
	}
	return total
}

// Clone returns a deep copy.
func (m *TagMap) Clone() *TagMap {
	if m == nil {
		return NewTagMap()
	}
	clone := &TagMap{
		order:  make([]string, len(m.order)),
		values: make(map[string][]string, len(m.values)),
	}
	copy(clone.order, m.order)
	for k, vs := range m.values {
		clone.values[k] = append([]string(nil), vs...)
	}
	return clone
}

// MarshalJSON emits the categories as a JSON object in insertion order.
func (m *TagMap) MarshalJSON() ([]byte, error) {
	if m == nil || len(m.order) == 0 {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range m.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		valuesJSON, err := json.Marshal(m.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(valuesJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, preserving key order. Values may be a
// string, an array of strings, or anything else stringifiable; unusable
// entries are skipped rather than failing the whole map.
func (m *TagMap) UnmarshalJSON(data []byte) error {
	m.order = nil
	m.values = make(map[string][]string)

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("tag map: expected JSON object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("tag map: non-string key %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		m.Add(key, decodeTagValues(raw)...)
	}

	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

func decodeTagValues(raw json.RawMessage) []string {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}
	}
	var anyList []any
	if err := json.Unmarshal(raw, &anyList); err == nil {
		values := make([]string, 0, len(anyList))
		for _, v := range anyList {
			values = append(values, fmt.Sprint(v))
		}
		return values
	}
	return nil
}

// Character is one parsed character: a name plus its ordered trait map.
// Characters are built fresh on every parse and never mutated afterwards.
type Character struct {
	Name   string  `json:"name"`
	Tags   *TagMap `json:"tags"`
	Source string  `json:"source,omitempty"`
	UID    string  `json:"uid,omitempty"`
}

// Clone returns a deep copy of the character.
func (c Character) Clone() Character {
	clone := c
	clone.Tags = c.Tags.Clone()
	return clone
}
