// Package lom mutates the LOM (Learning Object Metadata) JSON tree. Each
// mutator has an entry in Operations, from which the CLI builds one
// subcommand per mutator.
package lom

import "fmt"

// NoLanguage is the LOM language code for language-neutral text.
const NoLanguage = "x-none"

// Metadata wraps one record's LOM metadata object in place.
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

func (m *Metadata) section(name string) map[string]any {
	sec, ok := m.json[name].(map[string]any)
	if !ok {
		sec = map[string]any{}
		m.json[name] = sec
	}
	return sec
}

func appendTo(sec map[string]any, field string, value any) {
	list, _ := sec[field].([]any)
	sec[field] = append(list, value)
}

func langstring(text, lang string) map[string]any {
	return map[string]any{
		"langstring": map[string]any{"lang": lang, "#text": text},
	}
}

// SetTitle sets general.title.
func (m *Metadata) SetTitle(text, lang string) {
	m.section("general")["title"] = langstring(text, lang)
}

// AppendLanguage appends to general.language.
func (m *Metadata) AppendLanguage(lang string) {
	appendTo(m.section("general"), "language", lang)
}

// AppendKeyword appends to general.keyword.
func (m *Metadata) AppendKeyword(text, lang string) {
	appendTo(m.section("general"), "keyword", langstring(text, lang))
}

// AppendDescription appends to general.description.
func (m *Metadata) AppendDescription(text, lang string) {
	appendTo(m.section("general"), "description", langstring(text, lang))
}

// AppendIdentifier appends to general.identifier.
func (m *Metadata) AppendIdentifier(id, catalog string) {
	appendTo(m.section("general"), "identifier", map[string]any{
		"catalog": catalog,
		"entry":   langstring(id, NoLanguage),
	})
}

// AppendContribute appends a lifecycle.contribute entry, grouping the name
// under an existing entry with the same role if one exists.
func (m *Metadata) AppendContribute(name, role string) {
	lifecycle := m.section("lifecycle")
	contributes, _ := lifecycle["contribute"].([]any)

	for _, entry := range contributes {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if contributeRole(obj) == role {
			appendTo(obj, "entity", name)
			return
		}
	}

	lifecycle["contribute"] = append(contributes, map[string]any{
		"role": map[string]any{
			"source": langstring("LOMv1.0", NoLanguage),
			"value":  langstring(role, NoLanguage),
		},
		"entity": []any{name},
	})
}

func contributeRole(contribute map[string]any) string {
	role, ok := contribute["role"].(map[string]any)
	if !ok {
		return ""
	}
	value, ok := role["value"].(map[string]any)
	if !ok {
		return ""
	}
	ls, ok := value["langstring"].(map[string]any)
	if !ok {
		return ""
	}
	text, _ := ls["#text"].(string)
	return text
}

// SetVersion sets lifecycle.version.
func (m *Metadata) SetVersion(version string) {
	m.section("lifecycle")["version"] = langstring(version, NoLanguage)
}

// AppendFormat appends a MIME type to technical.format.
func (m *Metadata) AppendFormat(mimetype string) {
	appendTo(m.section("technical"), "format", mimetype)
}

// SetSize sets technical.size (in bytes, as string per the LOM schema).
func (m *Metadata) SetSize(size string) {
	m.section("technical")["size"] = size
}

// AppendLearningResourceType appends to educational.learningresourcetype.
func (m *Metadata) AppendLearningResourceType(value string) {
	appendTo(m.section("educational"), "learningresourcetype", map[string]any{
		"source": langstring("LOMv1.0", NoLanguage),
		"value":  langstring(value, NoLanguage),
	})
}

// Param describes one flag of an operation.
type Param struct {
	Name     string
	Default  string
	Required bool
	Help     string
}

// Operation is one metadata mutator exposed as a CLI subcommand. Apply
// receives the flag values keyed by Param.Name.
type Operation struct {
	Name   string
	Help   string
	Params []Param
	Apply  func(m *Metadata, args map[string]string) error
}

// Operations is the full mutator table, in CLI display order.
var Operations = []Operation{
	{
		Name: "set-title",
		Help: "Set the record's title.",
		Params: []Param{
			{Name: "text", Required: true, Help: "title text"},
			{Name: "lang", Default: NoLanguage, Help: "language code"},
		},
		Apply: func(m *Metadata, args map[string]string) error {
			m.SetTitle(args["text"], args["lang"])
			return nil
		},
	},
	{
		Name: "append-language",
		Help: "Append a language to the record.",
		Params: []Param{
			{Name: "lang", Required: true, Help: "language code"},
		},
		Apply: func(m *Metadata, args map[string]string) error {
			m.AppendLanguage(args["lang"])
			return nil
		},
	},
	{
		Name: "append-keyword",
		Help: "Append a keyword to the record.",
		Params: []Param{
			{Name: "text", Required: true, Help: "keyword text"},
			{Name: "lang", Default: NoLanguage, Help: "language code"},
		},
		Apply: func(m *Metadata, args map[string]string) error {
			m.AppendKeyword(args["text"], args["lang"])
			return nil
		},
	},
	{
		Name: "append-description",
		Help: "Append a description to the record.",
		Params: []Param{
			{Name: "text", Required: true, Help: "description text"},
			{Name: "lang", Default: NoLanguage, Help: "language code"},
		},
		Apply: func(m *Metadata, args map[string]string) error {
			m.AppendDescription(args["text"], args["lang"])
			return nil
		},
	},
	{
		Name: "append-identifier",
		Help: "Append an identifier to the record.",
		Params: []Param{
			{Name: "id", Required: true, Help: "identifier value"},
			{Name: "catalog", Required: true, Help: "identifier catalog, e.g. URL or ISBN"},
		},
		Apply: func(m *Metadata, args map[string]string) error {
			m.AppendIdentifier(args["id"], args["catalog"])
			return nil
		},
	},
	{
		Name: "append-contribute",
		Help: "Append a contributor with a role.",
		Params: []Param{
			{Name: "name", Required: true, Help: "contributor name"},
			{Name: "role", Default: "Author", Help: "LOMv1.0 role"},
		},
		Apply: func(m *Metadata, args map[string]string) error {
			m.AppendContribute(args["name"], args["role"])
			return nil
		},
	},
	{
		Name: "set-version",
		Help: "Set the record's version.",
		Params: []Param{
			{Name: "version", Required: true, Help: "version label"},
		},
		Apply: func(m *Metadata, args map[string]string) error {
			m.SetVersion(args["version"])
			return nil
		},
	},
	{
		Name: "append-format",
		Help: "Append a technical format (MIME type).",
		Params: []Param{
			{Name: "mimetype", Required: true, Help: "MIME type, e.g. application/pdf"},
		},
		Apply: func(m *Metadata, args map[string]string) error {
			m.AppendFormat(args["mimetype"])
			return nil
		},
	},
	{
		Name: "set-size",
		Help: "Set the technical size in bytes.",
		Params: []Param{
			{Name: "size", Required: true, Help: "size in bytes"},
		},
		Apply: func(m *Metadata, args map[string]string) error {
			m.SetSize(args["size"])
			return nil
		},
	},
	{
		Name: "append-learningresourcetype",
		Help: "Append an educational learning resource type.",
		Params: []Param{
			{Name: "value", Required: true, Help: "LOMv1.0 learning resource type"},
		},
		Apply: func(m *Metadata, args map[string]string) error {
			m.AppendLearningResourceType(args["value"])
			return nil
		},
	},
}

// LookupOperation returns the named operation.
func LookupOperation(name string) (Operation, error) {
	for _, op := range Operations {
		if op.Name == name {
			return op, nil
		}
	}
	return Operation{}, fmt.Errorf("unknown lom operation %q", name)
}
