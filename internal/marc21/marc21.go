// Package marc21 mutates the MARC21 metadata tree: control fields keyed by
// tag, data fields keyed by tag plus indicator pair, with repeatable
// subfields.
package marc21

import (
	"fmt"
	"strconv"
)

// Tags below this value are control fields and carry a bare value instead of
// indicators and subfields.
const belowControlfield = 10

// Metadata wraps one record's marc21 metadata object in place.
type Metadata struct {
	json map[string]any
}

func New(meta map[string]any) *Metadata {
	if meta == nil {
		meta = map[string]any{}
	}
	return &Metadata{json: meta}
}

func (m *Metadata) JSON() map[string]any {
	return m.json
}

func (m *Metadata) fields() map[string]any {
	f, ok := m.json["fields"].(map[string]any)
	if !ok {
		f = map[string]any{}
		m.json["fields"] = f
	}
	return f
}

// EmplaceControlfield sets the control field tag to value, replacing any
// previous value.
func (m *Metadata) EmplaceControlfield(tag string, value any) {
	m.fields()[tag] = value
}

// EmplaceDatafield merges subfields into the data field matching tag and the
// indicator pair, creating the field when absent.
func (m *Metadata) EmplaceDatafield(tag, ind1, ind2 string, subfields map[string][]string) {
	byTag := m.fields()
	entries, _ := byTag[tag].([]any)

	for _, entry := range entries {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		i1, _ := obj["ind1"].(string)
		i2, _ := obj["ind2"].(string)
		if i1 == ind1 && i2 == ind2 {
			mergeSubfields(obj, subfields)
			return
		}
	}

	field := map[string]any{"ind1": ind1, "ind2": ind2}
	mergeSubfields(field, subfields)
	byTag[tag] = append(entries, field)
}

func mergeSubfields(field map[string]any, subfields map[string][]string) {
	subs, ok := field["subfields"].(map[string]any)
	if !ok {
		subs = map[string]any{}
		field["subfields"] = subs
	}
	for code, values := range subfields {
		existing, _ := subs[code].([]any)
		for _, v := range values {
			existing = append(existing, v)
		}
		subs[code] = existing
	}
}

// AddToRecord merges addition's metadata.fields into doc's marc21 metadata.
// The addition looks like
//
//	{"metadata": {"fields": {
//	  "995": [{"ind1": " ", "ind2": " ", "subfields": {"a": ["VALUE"]}}]
//	}}}
//
// with tags below 010 mapping to control fields instead.
func AddToRecord(doc, addition map[string]any) error {
	meta, _ := doc["metadata"].(map[string]any)
	m := New(meta)

	addMeta, ok := addition["metadata"].(map[string]any)
	if !ok {
		return fmt.Errorf("addition has no metadata object")
	}
	addFields, ok := addMeta["fields"].(map[string]any)
	if !ok {
		return fmt.Errorf("addition has no metadata.fields object")
	}

	for tag, value := range addFields {
		n, err := strconv.Atoi(tag)
		if err != nil {
			return fmt.Errorf("invalid field tag %q: %w", tag, err)
		}

		if n < belowControlfield {
			m.EmplaceControlfield(tag, value)
			continue
		}

		entries, ok := value.([]any)
		if !ok {
			return fmt.Errorf("field %q: expected an array of data fields", tag)
		}
		for _, entry := range entries {
			obj, ok := entry.(map[string]any)
			if !ok {
				return fmt.Errorf("field %q: expected data field objects", tag)
			}
			ind1, _ := obj["ind1"].(string)
			ind2, _ := obj["ind2"].(string)
			m.EmplaceDatafield(tag, ind1, ind2, decodeSubfields(obj["subfields"]))
		}
	}

	doc["metadata"] = m.JSON()
	return nil
}

func decodeSubfields(raw any) map[string][]string {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string][]string, len(obj))
	for code, value := range obj {
		switch v := value.(type) {
		case string:
			out[code] = []string{v}
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					out[code] = append(out[code], s)
				}
			}
		}
	}
	return out
}
