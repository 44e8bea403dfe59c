package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/spindleworks/spindle-go/internal/idn"
)

// Wire-format resources mirror the platform JSON exactly. Unexported —
// callers get the normalized domain types.

type projectResource struct {
	ID          string `json:"id"`
	Idn         string `json:"idn"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (r *projectResource) toProject() Project {
	return Project{
		ID:          r.ID,
		Idn:         idn.Normalize(r.Idn),
		Title:       r.Title,
		Description: r.Description,
	}
}

type agentResource struct {
	ID          string `json:"id"`
	Idn         string `json:"idn"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (r *agentResource) toAgent() Agent {
	return Agent{
		ID:          r.ID,
		Idn:         idn.Normalize(r.Idn),
		Title:       r.Title,
		Description: r.Description,
	}
}

type flowResource struct {
	ID          string `json:"id"`
	Idn         string `json:"idn"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (r *flowResource) toFlow() Flow {
	return Flow{
		ID:          r.ID,
		Idn:         idn.Normalize(r.Idn),
		Title:       r.Title,
		Description: r.Description,
	}
}

type skillResource struct {
	ID           string      `json:"id"`
	Idn          string      `json:"idn"`
	Title        string      `json:"title"`
	RunnerType   string      `json:"runner_type"`
	Model        string      `json:"model"`
	Parameters   []Parameter `json:"parameters"`
	PromptScript string      `json:"prompt_script"`
}

func (r *skillResource) toSkill() Skill {
	return Skill{
		ID:           r.ID,
		Idn:          idn.Normalize(r.Idn),
		Title:        r.Title,
		RunnerType:   r.RunnerType,
		Model:        r.Model,
		Parameters:   r.Parameters,
		PromptScript: r.PromptScript,
	}
}

type eventResource struct {
	ID          string `json:"id"`
	Idn         string `json:"idn"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (r *eventResource) toEvent() Event {
	return Event{
		ID:          r.ID,
		Idn:         idn.Normalize(r.Idn),
		Title:       r.Title,
		Description: r.Description,
	}
}

type stateFieldResource struct {
	ID      string `json:"id"`
	Idn     string `json:"idn"`
	Title   string `json:"title"`
	Type    string `json:"type"`
	Default string `json:"default"`
}

func (r *stateFieldResource) toStateField() StateField {
	return StateField{
		ID:      r.ID,
		Idn:     idn.Normalize(r.Idn),
		Title:   r.Title,
		Type:    r.Type,
		Default: r.Default,
	}
}

type projectListResponse struct {
	Items []projectResource `json:"items"`
}

type agentListResponse struct {
	Items []agentResource `json:"items"`
}

type flowListResponse struct {
	Items []flowResource `json:"items"`
}

type skillListResponse struct {
	Items []skillResource `json:"items"`
}

type eventListResponse struct {
	Items []eventResource `json:"items"`
}

type stateFieldListResponse struct {
	Items []stateFieldResource `json:"items"`
}

// ListProjects returns every project visible to the tenant's credentials.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var resp projectListResponse
	if err := c.get(ctx, "/v1/projects", &resp); err != nil {
		return nil, err
	}

	projects := make([]Project, 0, len(resp.Items))
	for i := range resp.Items {
		projects = append(projects, resp.Items[i].toProject())
	}

	return projects, nil
}

// GetProject fetches a single project by its remote id.
func (c *Client) GetProject(ctx context.Context, id string) (Project, error) {
	var resp projectResource
	if err := c.get(ctx, "/v1/projects/"+url.PathEscape(id), &resp); err != nil {
		return Project{}, err
	}

	return resp.toProject(), nil
}

// CreateProject creates a project and returns the normalized resource,
// including the server-assigned id.
func (c *Client) CreateProject(ctx context.Context, params ProjectParams) (Project, error) {
	var resp projectResource
	if err := c.post(ctx, "/v1/projects", params, &resp); err != nil {
		return Project{}, err
	}

	return resp.toProject(), nil
}

// UpdateProject updates a project's writable fields.
func (c *Client) UpdateProject(ctx context.Context, id string, params ProjectParams) error {
	return c.put(ctx, "/v1/projects/"+url.PathEscape(id), params)
}

// DeleteProject deletes a project. The server cascades the delete to the
// project's agents, flows, skills, events and state fields.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.del(ctx, "/v1/projects/"+url.PathEscape(id))
}

// ListAgents returns the agents owned by a project.
func (c *Client) ListAgents(ctx context.Context, projectID string) ([]Agent, error) {
	var resp agentListResponse
	if err := c.get(ctx, fmt.Sprintf("/v1/projects/%s/agents", url.PathEscape(projectID)), &resp); err != nil {
		return nil, err
	}

	agents := make([]Agent, 0, len(resp.Items))
	for i := range resp.Items {
		agents = append(agents, resp.Items[i].toAgent())
	}

	return agents, nil
}

// CreateAgent creates an agent under params.ProjectID and returns the
// normalized resource, including the server-assigned id.
func (c *Client) CreateAgent(ctx context.Context, params AgentParams) (Agent, error) {
	var resp agentResource
	if err := c.post(ctx, "/v1/agents", params, &resp); err != nil {
		return Agent{}, err
	}

	return resp.toAgent(), nil
}

// UpdateAgent updates an agent's writable fields.
func (c *Client) UpdateAgent(ctx context.Context, id string, params AgentParams) error {
	return c.put(ctx, "/v1/agents/"+url.PathEscape(id), params)
}

// DeleteAgent deletes an agent and, server-side, everything under it.
func (c *Client) DeleteAgent(ctx context.Context, id string) error {
	return c.del(ctx, "/v1/agents/"+url.PathEscape(id))
}

// ListFlows returns the flows owned by an agent.
func (c *Client) ListFlows(ctx context.Context, agentID string) ([]Flow, error) {
	var resp flowListResponse
	if err := c.get(ctx, fmt.Sprintf("/v1/agents/%s/flows", url.PathEscape(agentID)), &resp); err != nil {
		return nil, err
	}

	flows := make([]Flow, 0, len(resp.Items))
	for i := range resp.Items {
		flows = append(flows, resp.Items[i].toFlow())
	}

	return flows, nil
}

// CreateFlow creates a flow under params.AgentID. The endpoint responds
// 204 with no body, so the new flow's id is not available here: callers
// recover it by re-listing the agent's flows and matching on idn.
func (c *Client) CreateFlow(ctx context.Context, params FlowParams) error {
	return c.post(ctx, "/v1/flows", params, nil)
}

// UpdateFlow updates a flow's writable fields.
func (c *Client) UpdateFlow(ctx context.Context, id string, params FlowParams) error {
	return c.put(ctx, "/v1/flows/"+url.PathEscape(id), params)
}

// DeleteFlow deletes a flow and, server-side, its skills, events and
// state fields.
func (c *Client) DeleteFlow(ctx context.Context, id string) error {
	return c.del(ctx, "/v1/flows/"+url.PathEscape(id))
}

// ListSkills returns the skills owned by a flow, prompt scripts included.
func (c *Client) ListSkills(ctx context.Context, flowID string) ([]Skill, error) {
	var resp skillListResponse
	if err := c.get(ctx, fmt.Sprintf("/v1/flows/%s/skills", url.PathEscape(flowID)), &resp); err != nil {
		return nil, err
	}

	skills := make([]Skill, 0, len(resp.Items))
	for i := range resp.Items {
		skills = append(skills, resp.Items[i].toSkill())
	}

	return skills, nil
}

// CreateSkill creates a skill under params.FlowID and returns the
// normalized resource, including the server-assigned id.
func (c *Client) CreateSkill(ctx context.Context, params SkillParams) (Skill, error) {
	var resp skillResource
	if err := c.post(ctx, "/v1/skills", params, &resp); err != nil {
		return Skill{}, err
	}

	return resp.toSkill(), nil
}

// UpdateSkill updates a skill. Empty params fields are omitted from the
// payload and left unchanged by the server.
func (c *Client) UpdateSkill(ctx context.Context, id string, params SkillParams) error {
	return c.put(ctx, "/v1/skills/"+url.PathEscape(id), params)
}

// DeleteSkill deletes a skill.
func (c *Client) DeleteSkill(ctx context.Context, id string) error {
	return c.del(ctx, "/v1/skills/"+url.PathEscape(id))
}

// ListEvents returns the events owned by a flow.
func (c *Client) ListEvents(ctx context.Context, flowID string) ([]Event, error) {
	var resp eventListResponse
	if err := c.get(ctx, fmt.Sprintf("/v1/flows/%s/events", url.PathEscape(flowID)), &resp); err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(resp.Items))
	for i := range resp.Items {
		events = append(events, resp.Items[i].toEvent())
	}

	return events, nil
}

// CreateEvent creates an event under params.FlowID and returns the
// normalized resource, including the server-assigned id.
func (c *Client) CreateEvent(ctx context.Context, params EventParams) (Event, error) {
	var resp eventResource
	if err := c.post(ctx, "/v1/events", params, &resp); err != nil {
		return Event{}, err
	}

	return resp.toEvent(), nil
}

// UpdateEvent updates an event's writable fields.
func (c *Client) UpdateEvent(ctx context.Context, id string, params EventParams) error {
	return c.put(ctx, "/v1/events/"+url.PathEscape(id), params)
}

// DeleteEvent deletes an event.
func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	return c.del(ctx, "/v1/events/"+url.PathEscape(id))
}

// ListStateFields returns the state fields owned by a flow.
func (c *Client) ListStateFields(ctx context.Context, flowID string) ([]StateField, error) {
	var resp stateFieldListResponse
	if err := c.get(ctx, fmt.Sprintf("/v1/flows/%s/state-fields", url.PathEscape(flowID)), &resp); err != nil {
		return nil, err
	}

	fields := make([]StateField, 0, len(resp.Items))
	for i := range resp.Items {
		fields = append(fields, resp.Items[i].toStateField())
	}

	return fields, nil
}

// CreateStateField creates a state field under params.FlowID and returns
// the normalized resource, including the server-assigned id.
func (c *Client) CreateStateField(ctx context.Context, params StateFieldParams) (StateField, error) {
	var resp stateFieldResource
	if err := c.post(ctx, "/v1/state-fields", params, &resp); err != nil {
		return StateField{}, err
	}

	return resp.toStateField(), nil
}

// UpdateStateField updates a state field's writable fields.
func (c *Client) UpdateStateField(ctx context.Context, id string, params StateFieldParams) error {
	return c.put(ctx, "/v1/state-fields/"+url.PathEscape(id), params)
}

// DeleteStateField deletes a state field.
func (c *Client) DeleteStateField(ctx context.Context, id string) error {
	return c.del(ctx, "/v1/state-fields/"+url.PathEscape(id))
}
