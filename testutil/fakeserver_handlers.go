package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
)

// wireParams is the union of every create/update payload the platform
// accepts. Empty fields mean "leave unchanged" on updates.
type wireParams struct {
	ProjectID    string          `json:"project_id"`
	AgentID      string          `json:"agent_id"`
	FlowID       string          `json:"flow_id"`
	Idn          string          `json:"idn"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	RunnerType   string          `json:"runner_type"`
	Model        string          `json:"model"`
	Parameters   []FakeParameter `json:"parameters"`
	PromptScript string          `json:"prompt_script"`
	Type         string          `json:"type"`
	Default      string          `json:"default"`
	Value        string          `json:"value"`
}

type wireProject struct {
	ID          string `json:"id"`
	Idn         string `json:"idn"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type wireSkill struct {
	ID           string          `json:"id"`
	Idn          string          `json:"idn"`
	Title        string          `json:"title,omitempty"`
	RunnerType   string          `json:"runner_type,omitempty"`
	Model        string          `json:"model,omitempty"`
	Parameters   []FakeParameter `json:"parameters,omitempty"`
	PromptScript string          `json:"prompt_script,omitempty"`
}

type wireStateField struct {
	ID      string `json:"id"`
	Idn     string `json:"idn"`
	Title   string `json:"title,omitempty"`
	Type    string `json:"type,omitempty"`
	Default string `json:"default,omitempty"`
}

type wireAttribute struct {
	ID    string `json:"id"`
	Idn   string `json:"idn"`
	Title string `json:"title,omitempty"`
	Value string `json:"value,omitempty"`
}

type wireArticle struct {
	ID      string `json:"id"`
	Idn     string `json:"idn"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
}

type tokenPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// api wraps a resource handler with request counting, forced failures,
// and bearer-token enforcement.
func (s *FakeSpindle) api(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.total.Add(1)
		s.apiCalls.Add(1)

		op := r.Method + " " + r.URL.Path

		s.mu.Lock()
		s.requestLog = append(s.requestLog, op)
		forced := s.failures[op]
		token := s.accessToken
		s.mu.Unlock()

		w.Header().Set("X-Request-Id", fmt.Sprintf("fake-%d", s.total.Load()))

		if forced != 0 {
			writeError(w, forced, "forced failure")

			return
		}

		if r.Header.Get("Authorization") != "Bearer "+token {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")

			return
		}

		next(w, r)
	}
}

func (s *FakeSpindle) handleExchange(w http.ResponseWriter, r *http.Request) {
	s.total.Add(1)
	s.exchanges.Add(1)

	if r.Header.Get("X-API-Key") != s.APIKey {
		writeError(w, http.StatusUnauthorized, "unknown API key")

		return
	}

	s.mu.Lock()
	s.rotateTokensLocked()
	payload := tokenPayload{AccessToken: s.accessToken, RefreshToken: s.refreshToken, ExpiresIn: 1800}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, payload)
}

func (s *FakeSpindle) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.total.Add(1)
	s.refreshes.Add(1)

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed refresh request")

		return
	}

	s.mu.Lock()
	valid := !s.RejectRefresh && req.RefreshToken == s.refreshToken
	if valid {
		s.rotateTokensLocked()
	}
	payload := tokenPayload{AccessToken: s.accessToken, RefreshToken: s.refreshToken, ExpiresIn: 1800}
	s.mu.Unlock()

	if !valid {
		writeError(w, http.StatusUnauthorized, "refresh token rejected")

		return
	}

	writeJSON(w, http.StatusOK, payload)
}

func (s *FakeSpindle) handleListProjects(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()

	items := make([]wireProject, 0, len(s.projects))
	for _, p := range s.projects {
		items = append(items, wireProject{ID: p.ID, Idn: p.Idn, Title: p.Title, Description: p.Description})
	}

	s.mu.Unlock()

	sortByIdn(items, func(v wireProject) string { return v.Idn })
	writeItems(w, items)
}

func (s *FakeSpindle) handleGetProject(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	p := s.projects[r.PathValue("id")]
	s.mu.Unlock()

	if p == nil {
		writeError(w, http.StatusNotFound, "no such project")

		return
	}

	writeJSON(w, http.StatusOK, wireProject{ID: p.ID, Idn: p.Idn, Title: p.Title, Description: p.Description})
}

func (s *FakeSpindle) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeParams(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	p := &FakeProject{
		ID:          s.nextID("p"),
		Idn:         params.Idn,
		Title:       params.Title,
		Description: params.Description,
		Agents:      make(map[string]*FakeAgent),
	}
	s.projects[p.ID] = p
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, wireProject{ID: p.ID, Idn: p.Idn, Title: p.Title, Description: p.Description})
}

func (s *FakeSpindle) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeParams(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.projects[r.PathValue("id")]
	if p == nil {
		writeError(w, http.StatusNotFound, "no such project")

		return
	}

	applyString(&p.Title, params.Title)
	applyString(&p.Description, params.Description)
	writeJSON(w, http.StatusOK, wireProject{ID: p.ID, Idn: p.Idn, Title: p.Title, Description: p.Description})
}

func (s *FakeSpindle) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.PathValue("id")
	if s.projects[id] == nil {
		writeError(w, http.StatusNotFound, "no such project")

		return
	}

	delete(s.projects, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *FakeSpindle) handleListAgents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()

	p := s.projects[r.PathValue("id")]
	if p == nil {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "no such project")

		return
	}

	items := make([]wireProject, 0, len(p.Agents))
	for _, a := range p.Agents {
		items = append(items, wireProject{ID: a.ID, Idn: a.Idn, Title: a.Title, Description: a.Description})
	}

	s.mu.Unlock()

	sortByIdn(items, func(v wireProject) string { return v.Idn })
	writeItems(w, items)
}

func (s *FakeSpindle) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeParams(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.projects[params.ProjectID]
	if p == nil {
		writeError(w, http.StatusBadRequest, "unknown project_id")

		return
	}

	a := &FakeAgent{
		ID:          s.nextID("a"),
		Idn:         params.Idn,
		Title:       params.Title,
		Description: params.Description,
		Flows:       make(map[string]*FakeFlow),
	}
	p.Agents[a.ID] = a

	writeJSON(w, http.StatusCreated, wireProject{ID: a.ID, Idn: a.Idn, Title: a.Title, Description: a.Description})
}

func (s *FakeSpindle) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeParams(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.findAgentLocked(r.PathValue("id"))
	if a == nil {
		writeError(w, http.StatusNotFound, "no such agent")

		return
	}

	applyString(&a.Title, params.Title)
	applyString(&a.Description, params.Description)
	writeJSON(w, http.StatusOK, wireProject{ID: a.ID, Idn: a.Idn, Title: a.Title, Description: a.Description})
}

func (s *FakeSpindle) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.PathValue("id")

	for _, p := range s.projects {
		if p.Agents[id] != nil {
			delete(p.Agents, id)
			w.WriteHeader(http.StatusNoContent)

			return
		}
	}

	writeError(w, http.StatusNotFound, "no such agent")
}

func (s *FakeSpindle) handleListFlows(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()

	a := s.findAgentLocked(r.PathValue("id"))
	if a == nil {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "no such agent")

		return
	}

	items := make([]wireProject, 0, len(a.Flows))
	for _, f := range a.Flows {
		if f.Hidden {
			continue
		}

		items = append(items, wireProject{ID: f.ID, Idn: f.Idn, Title: f.Title, Description: f.Description})
	}

	s.mu.Unlock()

	sortByIdn(items, func(v wireProject) string { return v.Idn })
	writeItems(w, items)
}

func (s *FakeSpindle) handleCreateFlow(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeParams(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.findAgentLocked(params.AgentID)
	if a == nil {
		writeError(w, http.StatusBadRequest, "unknown agent_id")

		return
	}

	f := newFakeFlow(s.nextID("f"), params.Idn, params.Title)
	f.Description = params.Description
	f.Hidden = s.HideCreatedFlows
	a.Flows[f.ID] = f

	// The real endpoint acknowledges without a body; clients re-list to
	// discover the assigned id.
	w.WriteHeader(http.StatusNoContent)
}

func (s *FakeSpindle) handleUpdateFlow(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeParams(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.findFlowLocked(r.PathValue("id"))
	if f == nil {
		writeError(w, http.StatusNotFound, "no such flow")

		return
	}

	applyString(&f.Title, params.Title)
	applyString(&f.Description, params.Description)
	writeJSON(w, http.StatusOK, wireProject{ID: f.ID, Idn: f.Idn, Title: f.Title, Description: f.Description})
}

func (s *FakeSpindle) handleDeleteFlow(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.PathValue("id")

	for _, p := range s.projects {
		for _, a := range p.Agents {
			if a.Flows[id] != nil {
				delete(a.Flows, id)
				w.WriteHeader(http.StatusNoContent)

				return
			}
		}
	}

	writeError(w, http.StatusNotFound, "no such flow")
}

func (s *FakeSpindle) handleListSkills(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()

	f := s.findFlowLocked(r.PathValue("id"))
	if f == nil {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "no such flow")

		return
	}

	items := make([]wireSkill, 0, len(f.Skills))
	for _, sk := range f.Skills {
		items = append(items, wireSkill{
			ID: sk.ID, Idn: sk.Idn, Title: sk.Title, RunnerType: sk.RunnerType,
			Model: sk.Model, Parameters: sk.Parameters, PromptScript: sk.PromptScript,
		})
	}

	s.mu.Unlock()

	sortByIdn(items, func(v wireSkill) string { return v.Idn })
	writeItems(w, items)
}

func (s *FakeSpindle) handleCreateSkill(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeParams(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.findFlowLocked(params.FlowID)
	if f == nil {
		writeError(w, http.StatusBadRequest, "unknown flow_id")

		return
	}

	sk := &FakeSkill{
		ID:           s.nextID("s"),
		Idn:          params.Idn,
		Title:        params.Title,
		RunnerType:   params.RunnerType,
		Model:        params.Model,
		Parameters:   params.Parameters,
		PromptScript: params.PromptScript,
	}
	f.Skills[sk.ID] = sk

	writeJSON(w, http.StatusCreated, wireSkill{
		ID: sk.ID, Idn: sk.Idn, Title: sk.Title, RunnerType: sk.RunnerType,
		Model: sk.Model, Parameters: sk.Parameters, PromptScript: sk.PromptScript,
	})
}

func (s *FakeSpindle) handleUpdateSkill(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeParams(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sk := s.findSkillLocked(r.PathValue("id"))
	if sk == nil {
		writeError(w, http.StatusNotFound, "no such skill")

		return
	}

	applyString(&sk.Title, params.Title)
	applyString(&sk.RunnerType, params.RunnerType)
	applyString(&sk.Model, params.Model)
	applyString(&sk.PromptScript, params.PromptScript)

	if params.Parameters != nil {
		sk.Parameters = params.Parameters
	}

	writeJSON(w, http.StatusOK, wireSkill{ID: sk.ID, Idn: sk.Idn})
}

func (s *FakeSpindle) handleDeleteSkill(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.PathValue("id")

	if f := s.flowOfSkillLocked(id); f != nil {
		delete(f.Skills, id)
		w.WriteHeader(http.StatusNoContent)

		return
	}

	writeError(w, http.StatusNotFound, "no such skill")
}

func (s *FakeSpindle) handleListEvents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()

	f := s.findFlowLocked(r.PathValue("id"))
	if f == nil {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "no such flow")

		return
	}

	items := make([]wireProject, 0, len(f.Events))
	for _, e := range f.Events {
		items = append(items, wireProject{ID: e.ID, Idn: e.Idn, Title: e.Title, Description: e.Description})
	}

	s.mu.Unlock()

	sortByIdn(items, func(v wireProject) string { return v.Idn })
	writeItems(w, items)
}

func (s *FakeSpindle) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeParams(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.findFlowLocked(params.FlowID)
	if f == nil {
		writeError(w, http.StatusBadRequest, "unknown flow_id")

		return
	}

	e := &FakeEvent{ID: s.nextID("e"), Idn: params.Idn, Title: params.Title, Description: params.Description}
	f.Events[e.ID] = e

	writeJSON(w, http.StatusCreated, wireProject{ID: e.ID, Idn: e.Idn, Title: e.Title, Description: e.Description})
}

func (s *FakeSpindle) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeParams(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.PathValue("id")

	for _, f := range s.allFlowsLocked() {
		if e := f.Events[id]; e != nil {
			applyString(&e.Title, params.Title)
			applyString(&e.Description, params.Description)
			writeJSON(w, http.StatusOK, wireProject{ID: e.ID, Idn: e.Idn, Title: e.Title, Description: e.Description})

			return
		}
	}

	writeError(w, http.StatusNotFound, "no such event")
}

func (s *FakeSpindle) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.PathValue("id")

	for _, f := range s.allFlowsLocked() {
		if f.Events[id] != nil {
			delete(f.Events, id)
			w.WriteHeader(http.StatusNoContent)

			return
		}
	}

	writeError(w, http.StatusNotFound, "no such event")
}

func (s *FakeSpindle) handleListStateFields(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()

	f := s.findFlowLocked(r.PathValue("id"))
	if f == nil {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "no such flow")

		return
	}

	items := make([]wireStateField, 0, len(f.StateFields))
	for _, sf := range f.StateFields {
		items = append(items, wireStateField{ID: sf.ID, Idn: sf.Idn, Title: sf.Title, Type: sf.Type, Default: sf.Default})
	}

	s.mu.Unlock()

	sortByIdn(items, func(v wireStateField) string { return v.Idn })
	writeItems(w, items)
}

func (s *FakeSpindle) handleCreateStateField(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeParams(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.findFlowLocked(params.FlowID)
	if f == nil {
		writeError(w, http.StatusBadRequest, "unknown flow_id")

		return
	}

	sf := &FakeStateField{ID: s.nextID("sf"), Idn: params.Idn, Title: params.Title, Type: params.Type, Default: params.Default}
	f.StateFields[sf.ID] = sf

	writeJSON(w, http.StatusCreated, wireStateField{ID: sf.ID, Idn: sf.Idn, Title: sf.Title, Type: sf.Type, Default: sf.Default})
}

func (s *FakeSpindle) handleUpdateStateField(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeParams(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.PathValue("id")

	for _, f := range s.allFlowsLocked() {
		if sf := f.StateFields[id]; sf != nil {
			applyString(&sf.Title, params.Title)
			applyString(&sf.Type, params.Type)
			applyString(&sf.Default, params.Default)
			writeJSON(w, http.StatusOK, wireStateField{ID: sf.ID, Idn: sf.Idn, Title: sf.Title, Type: sf.Type, Default: sf.Default})

			return
		}
	}

	writeError(w, http.StatusNotFound, "no such state field")
}

func (s *FakeSpindle) handleDeleteStateField(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.PathValue("id")

	for _, f := range s.allFlowsLocked() {
		if f.StateFields[id] != nil {
			delete(f.StateFields, id)
			w.WriteHeader(http.StatusNoContent)

			return
		}
	}

	writeError(w, http.StatusNotFound, "no such state field")
}

func (s *FakeSpindle) handleListPersonas(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()

	items := make([]wireProject, 0, len(s.personas))
	for _, p := range s.personas {
		items = append(items, wireProject{ID: p.ID, Idn: p.Idn, Title: p.Title, Description: p.Description})
	}

	s.mu.Unlock()

	sortByIdn(items, func(v wireProject) string { return v.Idn })
	writeItems(w, items)
}

func (s *FakeSpindle) handleCreatePersona(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeParams(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	p := &FakePersona{ID: s.nextID("pe"), Idn: params.Idn, Title: params.Title, Description: params.Description}
	s.personas[p.ID] = p
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, wireProject{ID: p.ID, Idn: p.Idn, Title: p.Title, Description: p.Description})
}

func (s *FakeSpindle) handleUpdatePersona(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeParams(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.personas[r.PathValue("id")]
	if p == nil {
		writeError(w, http.StatusNotFound, "no such persona")

		return
	}

	applyString(&p.Title, params.Title)
	applyString(&p.Description, params.Description)
	writeJSON(w, http.StatusOK, wireProject{ID: p.ID, Idn: p.Idn, Title: p.Title, Description: p.Description})
}

func (s *FakeSpindle) handleDeletePersona(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.PathValue("id")
	if s.personas[id] == nil {
		writeError(w, http.StatusNotFound, "no such persona")

		return
	}

	delete(s.personas, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *FakeSpindle) handleListAttributes(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()

	items := make([]wireAttribute, 0, len(s.attributes))
	for _, a := range s.attributes {
		items = append(items, wireAttribute{ID: a.ID, Idn: a.Idn, Title: a.Title, Value: a.Value})
	}

	s.mu.Unlock()

	sortByIdn(items, func(v wireAttribute) string { return v.Idn })
	writeItems(w, items)
}

func (s *FakeSpindle) handleCreateAttribute(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeParams(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	a := &FakeAttribute{ID: s.nextID("at"), Idn: params.Idn, Title: params.Title, Value: params.Value}
	s.attributes[a.ID] = a
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, wireAttribute{ID: a.ID, Idn: a.Idn, Title: a.Title, Value: a.Value})
}

func (s *FakeSpindle) handleUpdateAttribute(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeParams(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.attributes[r.PathValue("id")]
	if a == nil {
		writeError(w, http.StatusNotFound, "no such attribute")

		return
	}

	applyString(&a.Title, params.Title)
	applyString(&a.Value, params.Value)
	writeJSON(w, http.StatusOK, wireAttribute{ID: a.ID, Idn: a.Idn, Title: a.Title, Value: a.Value})
}

func (s *FakeSpindle) handleListArticles(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()

	items := make([]wireArticle, 0, len(s.articles))
	for _, a := range s.articles {
		items = append(items, wireArticle{ID: a.ID, Idn: a.Idn, Title: a.Title, Content: a.Content})
	}

	s.mu.Unlock()

	sortByIdn(items, func(v wireArticle) string { return v.Idn })
	writeItems(w, items)
}

func (s *FakeSpindle) findAgentLocked(id string) *FakeAgent {
	for _, p := range s.projects {
		if a := p.Agents[id]; a != nil {
			return a
		}
	}

	return nil
}

func (s *FakeSpindle) findFlowLocked(id string) *FakeFlow {
	for _, p := range s.projects {
		for _, a := range p.Agents {
			if f := a.Flows[id]; f != nil {
				return f
			}
		}
	}

	return nil
}

func (s *FakeSpindle) findSkillLocked(id string) *FakeSkill {
	if f := s.flowOfSkillLocked(id); f != nil {
		return f.Skills[id]
	}

	return nil
}

func (s *FakeSpindle) flowOfSkillLocked(id string) *FakeFlow {
	for _, f := range s.allFlowsLocked() {
		if f.Skills[id] != nil {
			return f
		}
	}

	return nil
}

func (s *FakeSpindle) allFlowsLocked() []*FakeFlow {
	var flows []*FakeFlow

	for _, p := range s.projects {
		for _, a := range p.Agents {
			for _, f := range a.Flows {
				flows = append(flows, f)
			}
		}
	}

	return flows
}

func decodeParams(w http.ResponseWriter, r *http.Request) (wireParams, bool) {
	var params wireParams

	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")

		return params, false
	}

	return params, true
}

func applyString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func sortByIdn[T any](items []T, idnOf func(T) string) {
	sort.Slice(items, func(i, j int) bool { return idnOf(items[i]) < idnOf(items[j]) })
}

func writeItems(w http.ResponseWriter, items any) {
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
