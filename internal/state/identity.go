package state

import (
	"sort"
	"sync"
)

// Identity map node types. Each node stores the remote id of one entity;
// an empty id marks a pending node — a locally created entity whose remote
// id is not yet known (flow creation returns no id, see the sync package).
//
// The identity map is the sole translation layer between stable local names
// (idns, human-chosen and path-safe) and volatile remote identifiers
// (server-assigned, opaque). Remote ids never appear in mirror files.

// SkillNode maps one skill idn to its remote id.
type SkillNode struct {
	ID string `json:"id"`
}

// FlowNode maps one flow idn to its remote id and child skills.
type FlowNode struct {
	ID     string                `json:"id"`
	Skills map[string]*SkillNode `json:"skills,omitempty"`
}

// AgentNode maps one agent idn to its remote id and child flows.
type AgentNode struct {
	ID    string               `json:"id"`
	Flows map[string]*FlowNode `json:"flows,omitempty"`
}

// ProjectNode maps one project idn to its remote id and child agents.
type ProjectNode struct {
	ID     string                `json:"id"`
	Agents map[string]*AgentNode `json:"agents,omitempty"`
}

// identityDoc is the on-disk shape of the identity map. Personas and
// customer attributes are flat (no hierarchy below them), so they map
// idn -> remote id directly.
type identityDoc struct {
	Projects   map[string]*ProjectNode `json:"projects"`
	Personas   map[string]string       `json:"personas,omitempty"`
	Attributes map[string]string       `json:"attributes,omitempty"`
}

// IdentityMap is the persisted local-name -> remote-id translation table
// for one tenant. Safe for concurrent use.
type IdentityMap struct {
	mu   sync.RWMutex
	path string
	doc  identityDoc
}

// LoadIdentityMap reads the identity map at path. A missing file yields an
// empty map (fresh tenant). A present-but-unparseable file is a
// LocalStateError.
func LoadIdentityMap(path string) (*IdentityMap, error) {
	m := &IdentityMap{path: path}
	if _, err := loadJSON(path, &m.doc); err != nil {
		return nil, err
	}

	if m.doc.Projects == nil {
		m.doc.Projects = make(map[string]*ProjectNode)
	}

	if m.doc.Personas == nil {
		m.doc.Personas = make(map[string]string)
	}

	if m.doc.Attributes == nil {
		m.doc.Attributes = make(map[string]string)
	}

	return m, nil
}

// Save persists the map atomically to its backing file.
func (m *IdentityMap) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return saveJSON(m.path, m.doc)
}

// --- traversal helpers (callers hold m.mu) ---

func (m *IdentityMap) project(project string) *ProjectNode {
	return m.doc.Projects[project]
}

func (m *IdentityMap) agent(project, agent string) *AgentNode {
	p := m.project(project)
	if p == nil {
		return nil
	}

	return p.Agents[agent]
}

func (m *IdentityMap) flow(project, agent, flow string) *FlowNode {
	a := m.agent(project, agent)
	if a == nil {
		return nil
	}

	return a.Flows[flow]
}

func (m *IdentityMap) skill(project, agent, flow, skill string) *SkillNode {
	f := m.flow(project, agent, flow)
	if f == nil {
		return nil
	}

	return f.Skills[skill]
}

// --- lookups ---
// Each returns (remoteID, nodeExists). A node can exist with an empty id:
// that is a pending local create awaiting reconciliation.

// ProjectID returns the remote id for a project idn.
func (m *IdentityMap) ProjectID(project string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n := m.project(project); n != nil {
		return n.ID, true
	}

	return "", false
}

// AgentID returns the remote id for an agent idn.
func (m *IdentityMap) AgentID(project, agent string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n := m.agent(project, agent); n != nil {
		return n.ID, true
	}

	return "", false
}

// FlowID returns the remote id for a flow idn.
func (m *IdentityMap) FlowID(project, agent, flow string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n := m.flow(project, agent, flow); n != nil {
		return n.ID, true
	}

	return "", false
}

// SkillID returns the remote id for a skill idn.
func (m *IdentityMap) SkillID(project, agent, flow, skill string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n := m.skill(project, agent, flow, skill); n != nil {
		return n.ID, true
	}

	return "", false
}

// --- mutations (create-or-update; missing ancestors are created pending) ---

// SetProjectID records the remote id for a project idn.
func (m *IdentityMap) SetProjectID(project, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ensureProject(project).ID = id
}

// SetAgentID records the remote id for an agent idn.
func (m *IdentityMap) SetAgentID(project, agent, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ensureAgent(project, agent).ID = id
}

// SetFlowID records the remote id for a flow idn.
func (m *IdentityMap) SetFlowID(project, agent, flow, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ensureFlow(project, agent, flow).ID = id
}

// SetSkillID records the remote id for a skill idn.
func (m *IdentityMap) SetSkillID(project, agent, flow, skill, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ensureSkill(project, agent, flow, skill).ID = id
}

func (m *IdentityMap) ensureProject(project string) *ProjectNode {
	n := m.doc.Projects[project]
	if n == nil {
		n = &ProjectNode{}
		m.doc.Projects[project] = n
	}

	return n
}

func (m *IdentityMap) ensureAgent(project, agent string) *AgentNode {
	p := m.ensureProject(project)
	if p.Agents == nil {
		p.Agents = make(map[string]*AgentNode)
	}

	n := p.Agents[agent]
	if n == nil {
		n = &AgentNode{}
		p.Agents[agent] = n
	}

	return n
}

func (m *IdentityMap) ensureFlow(project, agent, flow string) *FlowNode {
	a := m.ensureAgent(project, agent)
	if a.Flows == nil {
		a.Flows = make(map[string]*FlowNode)
	}

	n := a.Flows[flow]
	if n == nil {
		n = &FlowNode{}
		a.Flows[flow] = n
	}

	return n
}

func (m *IdentityMap) ensureSkill(project, agent, flow, skill string) *SkillNode {
	f := m.ensureFlow(project, agent, flow)
	if f.Skills == nil {
		f.Skills = make(map[string]*SkillNode)
	}

	n := f.Skills[skill]
	if n == nil {
		n = &SkillNode{}
		f.Skills[skill] = n
	}

	return n
}

// --- deletions (remove the node and its whole subtree) ---

// DeleteProject removes a project node and all its descendants.
func (m *IdentityMap) DeleteProject(project string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.doc.Projects, project)
}

// DeleteAgent removes an agent node and all its descendants.
func (m *IdentityMap) DeleteAgent(project, agent string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p := m.project(project); p != nil {
		delete(p.Agents, agent)
	}
}

// DeleteFlow removes a flow node and all its descendants.
func (m *IdentityMap) DeleteFlow(project, agent, flow string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a := m.agent(project, agent); a != nil {
		delete(a.Flows, flow)
	}
}

// DeleteSkill removes a skill node.
func (m *IdentityMap) DeleteSkill(project, agent, flow, skill string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if f := m.flow(project, agent, flow); f != nil {
		delete(f.Skills, skill)
	}
}

// --- listings (sorted idns, for deterministic walks) ---

// Projects returns all project idns.
func (m *IdentityMap) Projects() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return sortedMapKeys(m.doc.Projects)
}

// Agents returns all agent idns under a project.
func (m *IdentityMap) Agents(project string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if p := m.project(project); p != nil {
		return sortedMapKeys(p.Agents)
	}

	return nil
}

// Flows returns all flow idns under an agent.
func (m *IdentityMap) Flows(project, agent string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if a := m.agent(project, agent); a != nil {
		return sortedMapKeys(a.Flows)
	}

	return nil
}

// Skills returns all skill idns under a flow.
func (m *IdentityMap) Skills(project, agent, flow string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if f := m.flow(project, agent, flow); f != nil {
		return sortedMapKeys(f.Skills)
	}

	return nil
}

// --- personas and customer attributes (flat sections) ---

// PersonaID returns the remote id for a persona idn.
func (m *IdentityMap) PersonaID(persona string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.doc.Personas[persona]

	return id, ok
}

// SetPersonaID records the remote id for a persona idn.
func (m *IdentityMap) SetPersonaID(persona, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.doc.Personas[persona] = id
}

// DeletePersona removes a persona entry.
func (m *IdentityMap) DeletePersona(persona string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.doc.Personas, persona)
}

// Personas returns all persona idns, sorted.
func (m *IdentityMap) Personas() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return sortedMapKeys(m.doc.Personas)
}

// AttributeID returns the remote id for an attribute idn.
func (m *IdentityMap) AttributeID(attribute string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.doc.Attributes[attribute]

	return id, ok
}

// SetAttributeID records the remote id for an attribute idn.
func (m *IdentityMap) SetAttributeID(attribute, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.doc.Attributes[attribute] = id
}

// DeleteAttribute removes an attribute entry.
func (m *IdentityMap) DeleteAttribute(attribute string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.doc.Attributes, attribute)
}

// Attributes returns all attribute idns, sorted.
func (m *IdentityMap) Attributes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return sortedMapKeys(m.doc.Attributes)
}

// sortedMapKeys returns the keys of a map sorted ascending.
func sortedMapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
