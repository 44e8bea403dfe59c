package mirror

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Metadata document types. Field order is the serialization order, and
// every list is sorted by idn (parameters by name) before encoding, so
// identical graph content always produces identical bytes. Remote ids
// never appear here; the identity map owns that translation.

// ProjectDoc is the content of project.yaml.
type ProjectDoc struct {
	Idn         string `yaml:"idn"`
	Title       string `yaml:"title,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// AgentDoc is the content of agent.yaml.
type AgentDoc struct {
	Idn         string `yaml:"idn"`
	Title       string `yaml:"title,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// FlowDoc is the content of flow.yaml: the flow's own metadata plus its
// events, state fields, and per-skill metadata. Skill prompt scripts live
// in their own content files, not here.
type FlowDoc struct {
	Idn         string          `yaml:"idn"`
	Title       string          `yaml:"title,omitempty"`
	Description string          `yaml:"description,omitempty"`
	Events      []EventDoc      `yaml:"events,omitempty"`
	StateFields []StateFieldDoc `yaml:"state_fields,omitempty"`
	Skills      []SkillDoc      `yaml:"skills,omitempty"`
}

// EventDoc is one entry of a flow's events list.
type EventDoc struct {
	Idn         string `yaml:"idn"`
	Title       string `yaml:"title,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// StateFieldDoc is one entry of a flow's state_fields list.
type StateFieldDoc struct {
	Idn     string `yaml:"idn"`
	Title   string `yaml:"title,omitempty"`
	Type    string `yaml:"type,omitempty"`
	Default string `yaml:"default,omitempty"`
}

// SkillDoc is one entry of a flow's skills list.
type SkillDoc struct {
	Idn        string         `yaml:"idn"`
	Title      string         `yaml:"title,omitempty"`
	RunnerType string         `yaml:"runner_type,omitempty"`
	Model      string         `yaml:"model,omitempty"`
	Parameters []ParameterDoc `yaml:"parameters,omitempty"`
}

// ParameterDoc is one named runner parameter of a skill.
type ParameterDoc struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// PersonaDoc is the content of personas/<idn>.yaml.
type PersonaDoc struct {
	Idn         string `yaml:"idn"`
	Title       string `yaml:"title,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// AttributesDoc is the content of attributes.yaml: the whole customer
// attribute set in one file.
type AttributesDoc struct {
	Attributes []AttributeDoc `yaml:"attributes"`
}

// AttributeDoc is one entry of attributes.yaml.
type AttributeDoc struct {
	Idn   string `yaml:"idn"`
	Title string `yaml:"title,omitempty"`
	Value string `yaml:"value,omitempty"`
}

// ArticleDoc is the content of akb/<idn>.yaml.
type ArticleDoc struct {
	Idn     string `yaml:"idn"`
	Title   string `yaml:"title,omitempty"`
	Content string `yaml:"content,omitempty"`
}

// EncodeProject serializes project.yaml content.
func EncodeProject(doc ProjectDoc) ([]byte, error) {
	return encode("project", doc)
}

// DecodeProject parses project.yaml content.
func DecodeProject(data []byte) (ProjectDoc, error) {
	var doc ProjectDoc

	return doc, decodeInto("project", data, &doc)
}

// EncodeAgent serializes agent.yaml content.
func EncodeAgent(doc AgentDoc) ([]byte, error) {
	return encode("agent", doc)
}

// DecodeAgent parses agent.yaml content.
func DecodeAgent(data []byte) (AgentDoc, error) {
	var doc AgentDoc

	return doc, decodeInto("agent", data, &doc)
}

// EncodeFlow serializes flow.yaml content with all lists sorted.
func EncodeFlow(doc FlowDoc) ([]byte, error) {
	sort.Slice(doc.Events, func(i, j int) bool { return doc.Events[i].Idn < doc.Events[j].Idn })
	sort.Slice(doc.StateFields, func(i, j int) bool { return doc.StateFields[i].Idn < doc.StateFields[j].Idn })
	sort.Slice(doc.Skills, func(i, j int) bool { return doc.Skills[i].Idn < doc.Skills[j].Idn })

	for i := range doc.Skills {
		params := doc.Skills[i].Parameters
		sort.Slice(params, func(a, b int) bool { return params[a].Name < params[b].Name })
	}

	return encode("flow", doc)
}

// DecodeFlow parses flow.yaml content.
func DecodeFlow(data []byte) (FlowDoc, error) {
	var doc FlowDoc

	return doc, decodeInto("flow", data, &doc)
}

// EncodePersona serializes a persona file.
func EncodePersona(doc PersonaDoc) ([]byte, error) {
	return encode("persona", doc)
}

// DecodePersona parses a persona file.
func DecodePersona(data []byte) (PersonaDoc, error) {
	var doc PersonaDoc

	return doc, decodeInto("persona", data, &doc)
}

// EncodeAttributes serializes attributes.yaml with entries sorted by idn.
func EncodeAttributes(doc AttributesDoc) ([]byte, error) {
	sort.Slice(doc.Attributes, func(i, j int) bool { return doc.Attributes[i].Idn < doc.Attributes[j].Idn })

	return encode("attributes", doc)
}

// DecodeAttributes parses attributes.yaml content.
func DecodeAttributes(data []byte) (AttributesDoc, error) {
	var doc AttributesDoc

	return doc, decodeInto("attributes", data, &doc)
}

// EncodeArticle serializes a knowledge-base article file.
func EncodeArticle(doc ArticleDoc) ([]byte, error) {
	return encode("article", doc)
}

// DecodeArticle parses a knowledge-base article file.
func DecodeArticle(data []byte) (ArticleDoc, error) {
	var doc ArticleDoc

	return doc, decodeInto("article", data, &doc)
}

func encode(kind string, doc any) ([]byte, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding %s metadata: %w", kind, err)
	}

	return data, nil
}

func decodeInto(kind string, data []byte, out any) error {
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s metadata: %w", kind, err)
	}

	return nil
}
