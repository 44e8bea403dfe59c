package api

// Domain types for the Spindle object graph. Wire-format structs live
// next to the endpoint methods; these are the normalized shapes the rest
// of the codebase works with. Idns are NFC-normalized and lowercased at
// the decoding boundary so downstream comparisons are byte comparisons.

// Project is a top-level container in the object graph.
type Project struct {
	ID          string
	Idn         string
	Title       string
	Description string
}

// Agent is a conversational agent owned by a project.
type Agent struct {
	ID          string
	Idn         string
	Title       string
	Description string
}

// Flow is a conversation flow owned by an agent.
type Flow struct {
	ID          string
	Idn         string
	Title       string
	Description string
}

// Parameter is a named runner parameter attached to a skill.
type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Skill is an executable prompt owned by a flow. PromptScript carries the
// full script source; RunnerType selects the execution engine.
type Skill struct {
	ID           string
	Idn          string
	Title        string
	RunnerType   string
	Model        string
	Parameters   []Parameter
	PromptScript string
}

// Event is a trigger definition owned by a flow.
type Event struct {
	ID          string
	Idn         string
	Title       string
	Description string
}

// StateField is a typed conversation-state slot owned by a flow.
type StateField struct {
	ID      string
	Idn     string
	Title   string
	Type    string
	Default string
}

// Persona is a customer-level voice/personality definition.
type Persona struct {
	ID          string
	Idn         string
	Title       string
	Description string
}

// Attribute is a customer-level key/value attribute.
type Attribute struct {
	ID    string
	Idn   string
	Title string
	Value string
}

// Article is a knowledge-base article. Articles are read-only through
// this API surface.
type Article struct {
	ID      string
	Idn     string
	Title   string
	Content string
}

// ProjectParams carries the writable fields of a project.
type ProjectParams struct {
	Idn         string `json:"idn"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// AgentParams carries the writable fields of an agent. ProjectID is
// required on create and ignored on update.
type AgentParams struct {
	ProjectID   string `json:"project_id,omitempty"`
	Idn         string `json:"idn"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// FlowParams carries the writable fields of a flow. AgentID is required
// on create and ignored on update.
type FlowParams struct {
	AgentID     string `json:"agent_id,omitempty"`
	Idn         string `json:"idn"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// SkillParams carries the writable fields of a skill. FlowID is required
// on create and ignored on update. Empty fields are omitted from the
// payload and left unchanged by the server, so callers can send
// content-only or metadata-only updates.
type SkillParams struct {
	FlowID       string      `json:"flow_id,omitempty"`
	Idn          string      `json:"idn"`
	Title        string      `json:"title,omitempty"`
	RunnerType   string      `json:"runner_type,omitempty"`
	Model        string      `json:"model,omitempty"`
	Parameters   []Parameter `json:"parameters,omitempty"`
	PromptScript string      `json:"prompt_script,omitempty"`
}

// EventParams carries the writable fields of an event. FlowID is required
// on create and ignored on update.
type EventParams struct {
	FlowID      string `json:"flow_id,omitempty"`
	Idn         string `json:"idn"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// StateFieldParams carries the writable fields of a state field. FlowID
// is required on create and ignored on update.
type StateFieldParams struct {
	FlowID  string `json:"flow_id,omitempty"`
	Idn     string `json:"idn"`
	Title   string `json:"title,omitempty"`
	Type    string `json:"type,omitempty"`
	Default string `json:"default,omitempty"`
}

// PersonaParams carries the writable fields of a persona.
type PersonaParams struct {
	Idn         string `json:"idn"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// AttributeParams carries the writable fields of a customer attribute.
type AttributeParams struct {
	Idn   string `json:"idn"`
	Title string `json:"title,omitempty"`
	Value string `json:"value,omitempty"`
}
