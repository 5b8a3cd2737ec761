package records

import "encoding/json"

// Document is a record's JSON document. The update protocol treats it as
// opaque; the helpers below cover the few sub-objects the commands mutate.
type Document map[string]any

// Identifier is one entry of metadata.identifiers. Scheme is unique per
// record.
type Identifier struct {
	Identifier string `json:"identifier"`
	Scheme     string `json:"scheme"`
}

// PIDInfo is the value of one pids entry, keyed by PID-scheme name.
type PIDInfo struct {
	Identifier string `json:"identifier"`
	Provider   string `json:"provider"`
}

// Clone returns a deep copy via a JSON round trip. The update protocol never
// mutates its inputs, so callers clone before editing.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		// Document came from json.Unmarshal, so it marshals.
		panic(err)
	}
	var out Document
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return out
}

func (d Document) metadata() map[string]any {
	meta, ok := d["metadata"].(map[string]any)
	if !ok {
		meta = map[string]any{}
		d["metadata"] = meta
	}
	return meta
}

// Identifiers returns metadata.identifiers in record order. Entries that are
// not {identifier, scheme} objects are skipped.
func (d Document) Identifiers() []Identifier {
	meta, ok := d["metadata"].(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := meta["identifiers"].([]any)
	if !ok {
		return nil
	}
	out := make([]Identifier, 0, len(raw))
	for _, entry := range raw {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		ident, _ := obj["identifier"].(string)
		scheme, _ := obj["scheme"].(string)
		out = append(out, Identifier{Identifier: ident, Scheme: scheme})
	}
	return out
}

// SetIdentifiers replaces metadata.identifiers, creating the metadata
// sub-object if needed.
func (d Document) SetIdentifiers(ids []Identifier) {
	raw := make([]any, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, map[string]any{
			"identifier": id.Identifier,
			"scheme":     id.Scheme,
		})
	}
	d.metadata()["identifiers"] = raw
}

// PIDs returns the pids mapping (scheme name to identifier/provider).
func (d Document) PIDs() map[string]PIDInfo {
	raw, ok := d["pids"].(map[string]any)
	if !ok {
		return map[string]PIDInfo{}
	}
	out := make(map[string]PIDInfo, len(raw))
	for scheme, entry := range raw {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		ident, _ := obj["identifier"].(string)
		provider, _ := obj["provider"].(string)
		out[scheme] = PIDInfo{Identifier: ident, Provider: provider}
	}
	return out
}

// SetPID sets one entry of the pids mapping.
func (d Document) SetPID(scheme string, info PIDInfo) {
	pids, ok := d["pids"].(map[string]any)
	if !ok {
		pids = map[string]any{}
		d["pids"] = pids
	}
	pids[scheme] = map[string]any{
		"identifier": info.Identifier,
		"provider":   info.Provider,
	}
}

// FilesEnabled reports whether the record accepts file attachments.
// Metadata-only records have files disabled.
func (d Document) FilesEnabled() bool {
	files, ok := d["files"].(map[string]any)
	if !ok {
		return false
	}
	enabled, _ := files["enabled"].(bool)
	return enabled
}

// SetFilesEnabled toggles the files section.
func (d Document) SetFilesEnabled(enabled bool) {
	files, ok := d["files"].(map[string]any)
	if !ok {
		files = map[string]any{}
		d["files"] = files
	}
	files["enabled"] = enabled
}

// SetAccess sets one field of the access sub-object ("record" or "files") to
// an access level ("public" or "restricted").
func (d Document) SetAccess(field, level string) {
	access, ok := d["access"].(map[string]any)
	if !ok {
		access = map[string]any{}
		d["access"] = access
	}
	access[field] = level
}
