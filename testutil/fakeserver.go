// Package testutil provides an in-process fake of the Spindle platform
// API for engine and CLI tests. Deliberately stdlib-only.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
)

// DefaultAPIKey is the key NewFakeSpindle accepts for token exchange.
const DefaultAPIKey = "test-api-key"

// FakeSpindle is a request-counting fake of the platform API. Seed it
// with the Add* helpers, point a client at URL(), and assert on the
// request log and counters. All exported methods are safe for concurrent
// use.
type FakeSpindle struct {
	mu  sync.Mutex
	srv *httptest.Server

	APIKey string

	accessToken  string
	refreshToken string
	tokenSerial  int

	// RejectRefresh makes /v1/auth/refresh return 401, forcing clients
	// through the key-exchange fallback.
	RejectRefresh bool

	// HideCreatedFlows keeps flows created through POST /v1/flows out of
	// list responses until ReleaseHiddenFlows is called, emulating the
	// listing lag behind the no-body create endpoint.
	HideCreatedFlows bool

	failures map[string]int // "METHOD /path" → forced status

	total     atomic.Int32 // every request, auth included
	apiCalls  atomic.Int32 // non-auth requests
	exchanges atomic.Int32
	refreshes atomic.Int32

	requestLog []string

	serial     map[string]int
	projects   map[string]*FakeProject
	personas   map[string]*FakePersona
	attributes map[string]*FakeAttribute
	articles   map[string]*FakeArticle
}

// FakeProject is a seeded or client-created project.
type FakeProject struct {
	ID, Idn, Title, Description string

	Agents map[string]*FakeAgent
}

// FakeAgent is a seeded or client-created agent.
type FakeAgent struct {
	ID, Idn, Title, Description string

	Flows map[string]*FakeFlow
}

// FakeFlow is a seeded or client-created flow.
type FakeFlow struct {
	ID, Idn, Title, Description string

	Hidden bool

	Skills      map[string]*FakeSkill
	Events      map[string]*FakeEvent
	StateFields map[string]*FakeStateField
}

// FakeSkill is a seeded or client-created skill.
type FakeSkill struct {
	ID, Idn, Title, RunnerType, Model, PromptScript string

	Parameters []FakeParameter
}

// FakeParameter is one skill runner parameter.
type FakeParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FakeEvent is a seeded or client-created event.
type FakeEvent struct {
	ID, Idn, Title, Description string
}

// FakeStateField is a seeded or client-created state field.
type FakeStateField struct {
	ID, Idn, Title, Type, Default string
}

// FakePersona is a seeded or client-created persona.
type FakePersona struct {
	ID, Idn, Title, Description string
}

// FakeAttribute is a seeded or client-created customer attribute.
type FakeAttribute struct {
	ID, Idn, Title, Value string
}

// FakeArticle is a seeded knowledge-base article.
type FakeArticle struct {
	ID, Idn, Title, Content string
}

// NewFakeSpindle starts a fake platform server. Callers must Close it.
func NewFakeSpindle() *FakeSpindle {
	s := &FakeSpindle{
		APIKey:     DefaultAPIKey,
		failures:   make(map[string]int),
		serial:     make(map[string]int),
		projects:   make(map[string]*FakeProject),
		personas:   make(map[string]*FakePersona),
		attributes: make(map[string]*FakeAttribute),
		articles:   make(map[string]*FakeArticle),
	}

	s.rotateTokensLocked()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/token", s.handleExchange)
	mux.HandleFunc("POST /v1/auth/refresh", s.handleRefresh)

	mux.HandleFunc("GET /v1/projects", s.api(s.handleListProjects))
	mux.HandleFunc("POST /v1/projects", s.api(s.handleCreateProject))
	mux.HandleFunc("GET /v1/projects/{id}", s.api(s.handleGetProject))
	mux.HandleFunc("PUT /v1/projects/{id}", s.api(s.handleUpdateProject))
	mux.HandleFunc("DELETE /v1/projects/{id}", s.api(s.handleDeleteProject))
	mux.HandleFunc("GET /v1/projects/{id}/agents", s.api(s.handleListAgents))

	mux.HandleFunc("POST /v1/agents", s.api(s.handleCreateAgent))
	mux.HandleFunc("PUT /v1/agents/{id}", s.api(s.handleUpdateAgent))
	mux.HandleFunc("DELETE /v1/agents/{id}", s.api(s.handleDeleteAgent))
	mux.HandleFunc("GET /v1/agents/{id}/flows", s.api(s.handleListFlows))

	mux.HandleFunc("POST /v1/flows", s.api(s.handleCreateFlow))
	mux.HandleFunc("PUT /v1/flows/{id}", s.api(s.handleUpdateFlow))
	mux.HandleFunc("DELETE /v1/flows/{id}", s.api(s.handleDeleteFlow))
	mux.HandleFunc("GET /v1/flows/{id}/skills", s.api(s.handleListSkills))
	mux.HandleFunc("GET /v1/flows/{id}/events", s.api(s.handleListEvents))
	mux.HandleFunc("GET /v1/flows/{id}/state-fields", s.api(s.handleListStateFields))

	mux.HandleFunc("POST /v1/skills", s.api(s.handleCreateSkill))
	mux.HandleFunc("PUT /v1/skills/{id}", s.api(s.handleUpdateSkill))
	mux.HandleFunc("DELETE /v1/skills/{id}", s.api(s.handleDeleteSkill))

	mux.HandleFunc("POST /v1/events", s.api(s.handleCreateEvent))
	mux.HandleFunc("PUT /v1/events/{id}", s.api(s.handleUpdateEvent))
	mux.HandleFunc("DELETE /v1/events/{id}", s.api(s.handleDeleteEvent))

	mux.HandleFunc("POST /v1/state-fields", s.api(s.handleCreateStateField))
	mux.HandleFunc("PUT /v1/state-fields/{id}", s.api(s.handleUpdateStateField))
	mux.HandleFunc("DELETE /v1/state-fields/{id}", s.api(s.handleDeleteStateField))

	mux.HandleFunc("GET /v1/personas", s.api(s.handleListPersonas))
	mux.HandleFunc("POST /v1/personas", s.api(s.handleCreatePersona))
	mux.HandleFunc("PUT /v1/personas/{id}", s.api(s.handleUpdatePersona))
	mux.HandleFunc("DELETE /v1/personas/{id}", s.api(s.handleDeletePersona))

	mux.HandleFunc("GET /v1/customer/attributes", s.api(s.handleListAttributes))
	mux.HandleFunc("POST /v1/customer/attributes", s.api(s.handleCreateAttribute))
	mux.HandleFunc("PUT /v1/customer/attributes/{id}", s.api(s.handleUpdateAttribute))

	mux.HandleFunc("GET /v1/akb/articles", s.api(s.handleListArticles))

	s.srv = httptest.NewServer(mux)

	return s
}

// URL returns the fake server's base URL.
func (s *FakeSpindle) URL() string {
	return s.srv.URL
}

// Close shuts the server down.
func (s *FakeSpindle) Close() {
	s.srv.Close()
}

// TotalRequests returns the number of requests served, auth included.
func (s *FakeSpindle) TotalRequests() int {
	return int(s.total.Load())
}

// APIRequests returns the number of non-auth requests served.
func (s *FakeSpindle) APIRequests() int {
	return int(s.apiCalls.Load())
}

// Exchanges returns the number of API-key exchanges served.
func (s *FakeSpindle) Exchanges() int {
	return int(s.exchanges.Load())
}

// Refreshes returns the number of refresh calls served.
func (s *FakeSpindle) Refreshes() int {
	return int(s.refreshes.Load())
}

// ResetCounters zeroes all request counters and the request log.
func (s *FakeSpindle) ResetCounters() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.Store(0)
	s.apiCalls.Store(0)
	s.exchanges.Store(0)
	s.refreshes.Store(0)
	s.requestLog = nil
}

// RequestLog returns a copy of the "METHOD /path" log of non-auth calls.
func (s *FakeSpindle) RequestLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.requestLog...)
}

// Calls returns how many logged non-auth requests match the given
// "METHOD /path" operation.
func (s *FakeSpindle) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0

	for _, logged := range s.requestLog {
		if logged == op {
			n++
		}
	}

	return n
}

// InvalidateToken rotates the server-side bearer without telling clients,
// so their next request draws a 401.
func (s *FakeSpindle) InvalidateToken() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rotateTokensLocked()
}

// SetFailure forces every subsequent "METHOD /path" request to answer
// with the given status. Pass 0 to clear.
func (s *FakeSpindle) SetFailure(op string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if status == 0 {
		delete(s.failures, op)

		return
	}

	s.failures[op] = status
}

// ReleaseHiddenFlows makes flows hidden by HideCreatedFlows visible to
// list responses.
func (s *FakeSpindle) ReleaseHiddenFlows() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.projects {
		for _, a := range p.Agents {
			for _, f := range a.Flows {
				f.Hidden = false
			}
		}
	}
}

func (s *FakeSpindle) rotateTokensLocked() {
	s.tokenSerial++
	s.accessToken = fmt.Sprintf("access-%d", s.tokenSerial)
	s.refreshToken = fmt.Sprintf("refresh-%d", s.tokenSerial)
}

func (s *FakeSpindle) nextID(prefix string) string {
	s.serial[prefix]++

	return fmt.Sprintf("%s%d", prefix, s.serial[prefix])
}

// AddProject seeds a project.
func (s *FakeSpindle) AddProject(idn, title string) *FakeProject {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := &FakeProject{
		ID:     s.nextID("p"),
		Idn:    idn,
		Title:  title,
		Agents: make(map[string]*FakeAgent),
	}
	s.projects[p.ID] = p

	return p
}

// AddAgent seeds an agent under a project.
func (s *FakeSpindle) AddAgent(p *FakeProject, idn, title string) *FakeAgent {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := &FakeAgent{
		ID:    s.nextID("a"),
		Idn:   idn,
		Title: title,
		Flows: make(map[string]*FakeFlow),
	}
	p.Agents[a.ID] = a

	return a
}

// AddFlow seeds a flow under an agent.
func (s *FakeSpindle) AddFlow(a *FakeAgent, idn, title string) *FakeFlow {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := newFakeFlow(s.nextID("f"), idn, title)
	a.Flows[f.ID] = f

	return f
}

func newFakeFlow(id, idn, title string) *FakeFlow {
	return &FakeFlow{
		ID:          id,
		Idn:         idn,
		Title:       title,
		Skills:      make(map[string]*FakeSkill),
		Events:      make(map[string]*FakeEvent),
		StateFields: make(map[string]*FakeStateField),
	}
}

// AddSkill seeds a skill under a flow.
func (s *FakeSpindle) AddSkill(f *FakeFlow, idn, runner, model, script string) *FakeSkill {
	s.mu.Lock()
	defer s.mu.Unlock()

	sk := &FakeSkill{
		ID:           s.nextID("s"),
		Idn:          idn,
		Title:        idn,
		RunnerType:   runner,
		Model:        model,
		PromptScript: script,
	}
	f.Skills[sk.ID] = sk

	return sk
}

// AddEvent seeds an event under a flow.
func (s *FakeSpindle) AddEvent(f *FakeFlow, idn, title string) *FakeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &FakeEvent{ID: s.nextID("e"), Idn: idn, Title: title}
	f.Events[e.ID] = e

	return e
}

// AddStateField seeds a state field under a flow.
func (s *FakeSpindle) AddStateField(f *FakeFlow, idn, fieldType, deflt string) *FakeStateField {
	s.mu.Lock()
	defer s.mu.Unlock()

	sf := &FakeStateField{ID: s.nextID("sf"), Idn: idn, Title: idn, Type: fieldType, Default: deflt}
	f.StateFields[sf.ID] = sf

	return sf
}

// AddPersona seeds a persona.
func (s *FakeSpindle) AddPersona(idn, title string) *FakePersona {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := &FakePersona{ID: s.nextID("pe"), Idn: idn, Title: title}
	s.personas[p.ID] = p

	return p
}

// AddAttribute seeds a customer attribute.
func (s *FakeSpindle) AddAttribute(idn, value string) *FakeAttribute {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := &FakeAttribute{ID: s.nextID("at"), Idn: idn, Title: idn, Value: value}
	s.attributes[a.ID] = a

	return a
}

// AddArticle seeds a knowledge-base article.
func (s *FakeSpindle) AddArticle(idn, title, content string) *FakeArticle {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := &FakeArticle{ID: s.nextID("ar"), Idn: idn, Title: title, Content: content}
	s.articles[a.ID] = a

	return a
}

// Project returns a seeded or client-created project by idn.
func (s *FakeSpindle) Project(idn string) *FakeProject {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.projects {
		if p.Idn == idn {
			return p
		}
	}

	return nil
}

// Agent returns an agent by project and agent idn.
func (s *FakeSpindle) Agent(projectIdn, agentIdn string) *FakeAgent {
	p := s.Project(projectIdn)
	if p == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range p.Agents {
		if a.Idn == agentIdn {
			return a
		}
	}

	return nil
}

// Flow returns a flow by project, agent and flow idn.
func (s *FakeSpindle) Flow(projectIdn, agentIdn, flowIdn string) *FakeFlow {
	a := s.Agent(projectIdn, agentIdn)
	if a == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range a.Flows {
		if f.Idn == flowIdn {
			return f
		}
	}

	return nil
}

// Skill returns a skill by its full idn path.
func (s *FakeSpindle) Skill(projectIdn, agentIdn, flowIdn, skillIdn string) *FakeSkill {
	f := s.Flow(projectIdn, agentIdn, flowIdn)
	if f == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sk := range f.Skills {
		if sk.Idn == skillIdn {
			return sk
		}
	}

	return nil
}

// Attribute returns a customer attribute by idn.
func (s *FakeSpindle) Attribute(idn string) *FakeAttribute {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.attributes {
		if a.Idn == idn {
			return a
		}
	}

	return nil
}

// Persona returns a persona by idn.
func (s *FakeSpindle) Persona(idn string) *FakePersona {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.personas {
		if p.Idn == idn {
			return p
		}
	}

	return nil
}

// RemoveProject drops a project server-side, emulating a deletion made
// by another client.
func (s *FakeSpindle) RemoveProject(idn string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.projects {
		if p.Idn == idn {
			delete(s.projects, id)
		}
	}
}

// RemoveFlow drops a flow server-side.
func (s *FakeSpindle) RemoveFlow(projectIdn, agentIdn, flowIdn string) {
	a := s.Agent(projectIdn, agentIdn)
	if a == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, f := range a.Flows {
		if f.Idn == flowIdn {
			delete(a.Flows, id)
		}
	}
}

// RemoveSkill drops a skill server-side.
func (s *FakeSpindle) RemoveSkill(projectIdn, agentIdn, flowIdn, skillIdn string) {
	f := s.Flow(projectIdn, agentIdn, flowIdn)
	if f == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sk := range f.Skills {
		if sk.Idn == skillIdn {
			delete(f.Skills, id)
		}
	}
}

// RemovePersona drops a persona server-side.
func (s *FakeSpindle) RemovePersona(idn string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.personas {
		if p.Idn == idn {
			delete(s.personas, id)
		}
	}
}

// RemoveArticle drops a knowledge-base article server-side.
func (s *FakeSpindle) RemoveArticle(idn string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, a := range s.articles {
		if a.Idn == idn {
			delete(s.articles, id)
		}
	}
}
