package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spindleworks/spindle-go/internal/api"
	"github.com/spindleworks/spindle-go/internal/fingerprint"
	"github.com/spindleworks/spindle-go/internal/idn"
	"github.com/spindleworks/spindle-go/internal/mirror"
)

// pushKindOrder replays local edits parents-first so creations can
// resolve the remote ids of entities created moments earlier in the
// same run, and deletions collapse into the top-most entity.
var pushKindOrder = []mirror.EntityKind{
	mirror.KindProject,
	mirror.KindAgent,
	mirror.KindFlow,
	mirror.KindSkill,
	mirror.KindPersona,
	mirror.KindAttributes,
}

// prefixSet tracks path prefixes already dealt with, so children of a
// failed create or of a deleted subtree are not processed twice.
type prefixSet struct {
	prefixes []string
}

func (s *prefixSet) add(prefix string) {
	s.prefixes = append(s.prefixes, prefix)
}

func (s *prefixSet) covers(relPath string) bool {
	for _, prefix := range s.prefixes {
		if strings.HasPrefix(relPath, prefix) {
			return true
		}
	}

	return false
}

// Push replays local edits onto the remote graph. scope narrows the run
// to one project directory. A clean tree returns without a single HTTP
// request, token refresh included.
//
// Entity failures land in the report and never abort the rest of the
// run; the returned error is reserved for fatal conditions.
func (e *Engine) Push(ctx context.Context, scope string) (*RunReport, error) {
	report := newRunReport(e.tenant.Idn, OpPush, e.now())

	plan, err := e.Status(scope)
	if err != nil {
		e.failRun(ctx, report)

		return report, err
	}

	var added, modified, deleted []PlanEntry

	for _, entry := range plan.Entries {
		switch entry.Change {
		case Added:
			if entry.HasNode {
				// The identity store already maps this path to a live
				// remote entity; the fingerprint was lost, not the
				// entity. Update in place instead of creating a twin.
				modified = append(modified, entry)
			} else {
				added = append(added, entry)
			}
		case Modified:
			modified = append(modified, entry)
		case Deleted:
			deleted = append(deleted, entry)
		case Ignored:
			e.handleIgnored(entry)
		case Unchanged:
			report.addUnchanged()
		}
	}

	if len(added)+len(modified)+len(deleted) == 0 {
		e.logger.Info("local tree matches the last sync, nothing to push")

		if err := e.saveStores(); err != nil {
			e.failRun(ctx, report)

			return report, err
		}

		e.finishRun(ctx, report)

		return report, nil
	}

	skipped := &prefixSet{}

	for _, kind := range pushKindOrder {
		for _, entry := range added {
			if entry.Ref.Kind != kind {
				continue
			}

			if skipped.covers(entry.Path) {
				e.logger.Debug("skipping entry under a failed parent", slog.String("path", entry.Path))

				continue
			}

			e.pushCreate(ctx, entry, skipped, report)
		}
	}

	for _, kind := range pushKindOrder {
		for _, entry := range modified {
			if entry.Ref.Kind != kind {
				continue
			}

			e.pushUpdate(ctx, entry, report)
		}
	}

	e.pushDeletions(ctx, deleted, report)

	if ctx.Err() != nil {
		e.failRun(ctx, report)

		return report, fmt.Errorf("push interrupted: %w", ctx.Err())
	}

	if err := e.saveStores(); err != nil {
		e.failRun(ctx, report)

		return report, err
	}

	e.finishRun(ctx, report)

	return report, nil
}

func (e *Engine) pushCreate(ctx context.Context, entry PlanEntry, skipped *prefixSet, report *RunReport) {
	raw, err := os.ReadFile(mirror.Abs(e.root, entry.Path))
	if err != nil {
		e.entityErr(report, entry, "read", err)

		return
	}

	switch entry.Ref.Kind {
	case mirror.KindProject:
		e.createProject(ctx, entry, raw, skipped, report)
	case mirror.KindAgent:
		e.createAgent(ctx, entry, raw, skipped, report)
	case mirror.KindFlow:
		e.createFlow(ctx, entry, raw, skipped, report)
	case mirror.KindSkill:
		e.createSkill(ctx, entry, raw, report)
	case mirror.KindPersona:
		e.createPersona(ctx, entry, raw, report)
	case mirror.KindAttributes:
		e.pushAttributes(ctx, entry, raw, report)
	}
}

func (e *Engine) createProject(ctx context.Context, entry PlanEntry, raw []byte, skipped *prefixSet, report *RunReport) {
	ref := entry.Ref
	scope := mirror.ProjectDir(ref.Project) + "/"

	doc, err := mirror.DecodeProject(raw)
	if err != nil {
		e.entityErr(report, entry, "parse", err)
		skipped.add(scope)

		return
	}

	e.checkDocIdn(doc.Idn, ref)

	project, err := e.client.CreateProject(ctx, api.ProjectParams{
		Idn:         ref.Project,
		Title:       defaultTitle(doc.Title, ref.Project),
		Description: doc.Description,
	})
	if err != nil {
		e.entityErr(report, entry, "create", err)
		skipped.add(scope)

		return
	}

	e.identity.SetProjectID(ref.Project, project.ID)
	e.hashes.Set(entry.Path, fingerprint.Bytes(raw))
	report.addCreated()
	e.logger.Info("created project", slog.String("idn", ref.Project), slog.String("id", project.ID))
}

func (e *Engine) createAgent(ctx context.Context, entry PlanEntry, raw []byte, skipped *prefixSet, report *RunReport) {
	ref := entry.Ref
	scope := mirror.AgentDir(ref.Project, ref.Agent) + "/"

	doc, err := mirror.DecodeAgent(raw)
	if err != nil {
		e.entityErr(report, entry, "parse", err)
		skipped.add(scope)

		return
	}

	e.checkDocIdn(doc.Idn, ref)

	projectID, ok := e.identity.ProjectID(ref.Project)
	if !ok || projectID == "" {
		e.entityErr(report, entry, "create", fmt.Errorf("project %q has no remote id yet", ref.Project))
		skipped.add(scope)

		return
	}

	agent, err := e.client.CreateAgent(ctx, api.AgentParams{
		ProjectID:   projectID,
		Idn:         ref.Agent,
		Title:       defaultTitle(doc.Title, ref.Agent),
		Description: doc.Description,
	})
	if err != nil {
		e.entityErr(report, entry, "create", err)
		skipped.add(scope)

		return
	}

	e.identity.SetAgentID(ref.Project, ref.Agent, agent.ID)
	e.hashes.Set(entry.Path, fingerprint.Bytes(raw))
	report.addCreated()
	e.logger.Info("created agent", slog.String("idn", ref.Agent), slog.String("id", agent.ID))
}

// createFlow posts the flow and then re-lists the parent agent's flows:
// the create endpoint acknowledges without a body, so the assigned id
// has to be looked up. When the fresh flow is not listed yet, a pending
// mapping is recorded and the whole entry stays untracked so the next
// push resumes with the lookup instead of posting a duplicate.
func (e *Engine) createFlow(ctx context.Context, entry PlanEntry, raw []byte, skipped *prefixSet, report *RunReport) {
	ref := entry.Ref

	doc, err := mirror.DecodeFlow(raw)
	if err != nil {
		e.entityErr(report, entry, "parse", err)
		skipped.add(mirror.FlowDir(ref.Project, ref.Agent, ref.Flow) + "/")

		return
	}

	e.checkDocIdn(doc.Idn, ref)

	agentID, ok := e.identity.AgentID(ref.Project, ref.Agent)
	if !ok || agentID == "" {
		e.entityErr(report, entry, "create", fmt.Errorf("agent %q has no remote id yet", ref.Agent))
		skipped.add(mirror.FlowDir(ref.Project, ref.Agent, ref.Flow) + "/")

		return
	}

	_, posted := e.identity.FlowID(ref.Project, ref.Agent, ref.Flow)

	if !posted {
		err := e.client.CreateFlow(ctx, api.FlowParams{
			AgentID:     agentID,
			Idn:         ref.Flow,
			Title:       defaultTitle(doc.Title, ref.Flow),
			Description: doc.Description,
		})
		if err != nil {
			e.entityErr(report, entry, "create", err)
			skipped.add(mirror.FlowDir(ref.Project, ref.Agent, ref.Flow) + "/")

			return
		}
	}

	flows, err := e.client.ListFlows(ctx, agentID)
	if err != nil {
		e.identity.SetFlowID(ref.Project, ref.Agent, ref.Flow, "")
		e.entityErr(report, entry, "reconcile", err)

		return
	}

	var flowID string

	for _, flow := range flows {
		if flow.Idn == ref.Flow {
			flowID = flow.ID

			break
		}
	}

	if flowID == "" {
		e.identity.SetFlowID(ref.Project, ref.Agent, ref.Flow, "")
		e.logger.Warn("created flow is not listed yet; its skills stay deferred until it resolves",
			slog.String("flow", ref.Flow),
		)

		return
	}

	e.identity.SetFlowID(ref.Project, ref.Agent, ref.Flow, flowID)

	if err := e.reconcileEvents(ctx, flowID, doc.Events, report); err != nil {
		e.entityErr(report, entry, "reconcile", err)

		return
	}

	if err := e.reconcileStateFields(ctx, flowID, doc.StateFields, report); err != nil {
		e.entityErr(report, entry, "reconcile", err)

		return
	}

	e.hashes.Set(entry.Path, fingerprint.Bytes(raw))
	report.addCreated()
	e.logger.Info("created flow", slog.String("idn", ref.Flow), slog.String("id", flowID))
}

func (e *Engine) createSkill(ctx context.Context, entry PlanEntry, raw []byte, report *RunReport) {
	ref := entry.Ref

	flowID, ok := e.identity.FlowID(ref.Project, ref.Agent, ref.Flow)
	if !ok {
		e.entityErr(report, entry, "create", fmt.Errorf("flow %q has no remote id yet", ref.Flow))

		return
	}

	if flowID == "" {
		e.logger.Warn("skill deferred until its flow resolves a remote id", slog.String("path", entry.Path))

		return
	}

	meta := e.skillMeta(ref)

	skill, err := e.client.CreateSkill(ctx, api.SkillParams{
		FlowID:       flowID,
		Idn:          ref.Skill,
		Title:        defaultTitle(meta.Title, ref.Skill),
		RunnerType:   ref.Runner,
		Model:        meta.Model,
		Parameters:   apiParameters(meta.Parameters),
		PromptScript: string(raw),
	})
	if err != nil {
		e.entityErr(report, entry, "create", err)

		return
	}

	e.identity.SetSkillID(ref.Project, ref.Agent, ref.Flow, ref.Skill, skill.ID)
	e.hashes.Set(entry.Path, fingerprint.Bytes(raw))
	report.addCreated()
	e.logger.Info("created skill", slog.String("idn", ref.Skill), slog.String("id", skill.ID))
}

func (e *Engine) createPersona(ctx context.Context, entry PlanEntry, raw []byte, report *RunReport) {
	ref := entry.Ref

	doc, err := mirror.DecodePersona(raw)
	if err != nil {
		e.entityErr(report, entry, "parse", err)

		return
	}

	e.checkDocIdn(doc.Idn, ref)

	persona, err := e.client.CreatePersona(ctx, api.PersonaParams{
		Idn:         ref.Name,
		Title:       defaultTitle(doc.Title, ref.Name),
		Description: doc.Description,
	})
	if err != nil {
		e.entityErr(report, entry, "create", err)

		return
	}

	e.identity.SetPersonaID(ref.Name, persona.ID)
	e.hashes.Set(entry.Path, fingerprint.Bytes(raw))
	report.addCreated()
	e.logger.Info("created persona", slog.String("idn", ref.Name), slog.String("id", persona.ID))
}

func (e *Engine) pushUpdate(ctx context.Context, entry PlanEntry, report *RunReport) {
	raw, err := os.ReadFile(mirror.Abs(e.root, entry.Path))
	if err != nil {
		e.entityErr(report, entry, "read", err)

		return
	}

	switch entry.Ref.Kind {
	case mirror.KindProject:
		e.updateProject(ctx, entry, raw, report)
	case mirror.KindAgent:
		e.updateAgent(ctx, entry, raw, report)
	case mirror.KindFlow:
		e.updateFlow(ctx, entry, raw, report)
	case mirror.KindSkill:
		e.updateSkillContent(ctx, entry, raw, report)
	case mirror.KindPersona:
		e.updatePersona(ctx, entry, raw, report)
	case mirror.KindAttributes:
		e.pushAttributes(ctx, entry, raw, report)
	}
}

func (e *Engine) updateProject(ctx context.Context, entry PlanEntry, raw []byte, report *RunReport) {
	ref := entry.Ref

	doc, err := mirror.DecodeProject(raw)
	if err != nil {
		e.entityErr(report, entry, "parse", err)

		return
	}

	e.checkDocIdn(doc.Idn, ref)

	id, ok := e.identity.ProjectID(ref.Project)
	if !ok || id == "" {
		e.entityErr(report, entry, "update", errors.New("no remote id recorded, run pull first"))

		return
	}

	err = e.client.UpdateProject(ctx, id, api.ProjectParams{
		Title:       doc.Title,
		Description: doc.Description,
	})
	if err != nil {
		e.entityErr(report, entry, "update", err)

		return
	}

	e.hashes.Set(entry.Path, fingerprint.Bytes(raw))
	report.addUpdated()
}

func (e *Engine) updateAgent(ctx context.Context, entry PlanEntry, raw []byte, report *RunReport) {
	ref := entry.Ref

	doc, err := mirror.DecodeAgent(raw)
	if err != nil {
		e.entityErr(report, entry, "parse", err)

		return
	}

	e.checkDocIdn(doc.Idn, ref)

	id, ok := e.identity.AgentID(ref.Project, ref.Agent)
	if !ok || id == "" {
		e.entityErr(report, entry, "update", errors.New("no remote id recorded, run pull first"))

		return
	}

	err = e.client.UpdateAgent(ctx, id, api.AgentParams{
		Title:       doc.Title,
		Description: doc.Description,
	})
	if err != nil {
		e.entityErr(report, entry, "update", err)

		return
	}

	e.hashes.Set(entry.Path, fingerprint.Bytes(raw))
	report.addUpdated()
}

// updateFlow pushes the flow document: its own fields, then the nested
// event and state-field sections, then the metadata half of any skill
// entries. Skill prompt scripts stay file-driven and are not touched
// from here.
func (e *Engine) updateFlow(ctx context.Context, entry PlanEntry, raw []byte, report *RunReport) {
	ref := entry.Ref

	doc, err := mirror.DecodeFlow(raw)
	if err != nil {
		e.entityErr(report, entry, "parse", err)

		return
	}

	e.checkDocIdn(doc.Idn, ref)

	id, ok := e.identity.FlowID(ref.Project, ref.Agent, ref.Flow)
	if !ok || id == "" {
		e.entityErr(report, entry, "update", errors.New("no remote id recorded, run pull first"))

		return
	}

	err = e.client.UpdateFlow(ctx, id, api.FlowParams{
		Title:       doc.Title,
		Description: doc.Description,
	})
	if err != nil {
		e.entityErr(report, entry, "update", err)

		return
	}

	if err := e.reconcileEvents(ctx, id, doc.Events, report); err != nil {
		e.entityErr(report, entry, "reconcile", err)

		return
	}

	if err := e.reconcileStateFields(ctx, id, doc.StateFields, report); err != nil {
		e.entityErr(report, entry, "reconcile", err)

		return
	}

	if err := e.reconcileSkillMeta(ctx, ref, id, doc.Skills, report); err != nil {
		e.entityErr(report, entry, "reconcile", err)

		return
	}

	e.hashes.Set(entry.Path, fingerprint.Bytes(raw))
	report.addUpdated()
}

func (e *Engine) updateSkillContent(ctx context.Context, entry PlanEntry, raw []byte, report *RunReport) {
	ref := entry.Ref

	id, ok := e.identity.SkillID(ref.Project, ref.Agent, ref.Flow, ref.Skill)
	if !ok || id == "" {
		e.entityErr(report, entry, "update", errors.New("no remote id recorded, run pull first"))

		return
	}

	if len(raw) == 0 {
		// Empty fields are left unchanged by the API, so an emptied
		// file cannot clear the remote script.
		e.logger.Warn("skill file is empty; the remote prompt script is left as-is and pull will restore the file",
			slog.String("path", entry.Path),
		)
		e.hashes.Set(entry.Path, fingerprint.Bytes(raw))

		return
	}

	err := e.client.UpdateSkill(ctx, id, api.SkillParams{PromptScript: string(raw)})
	if err != nil {
		e.entityErr(report, entry, "update", err)

		return
	}

	e.hashes.Set(entry.Path, fingerprint.Bytes(raw))
	report.addUpdated()
}

func (e *Engine) updatePersona(ctx context.Context, entry PlanEntry, raw []byte, report *RunReport) {
	ref := entry.Ref

	doc, err := mirror.DecodePersona(raw)
	if err != nil {
		e.entityErr(report, entry, "parse", err)

		return
	}

	e.checkDocIdn(doc.Idn, ref)

	id, ok := e.identity.PersonaID(ref.Name)
	if !ok || id == "" {
		e.entityErr(report, entry, "update", errors.New("no remote id recorded, run pull first"))

		return
	}

	err = e.client.UpdatePersona(ctx, id, api.PersonaParams{
		Title:       doc.Title,
		Description: doc.Description,
	})
	if err != nil {
		e.entityErr(report, entry, "update", err)

		return
	}

	e.hashes.Set(entry.Path, fingerprint.Bytes(raw))
	report.addUpdated()
}

// reconcileEvents converges the remote event list on the flow document:
// document-only events are created, matching ones updated when they
// drifted, remote-only ones deleted. Matching is by idn. The first
// failure aborts so the caller leaves the document untracked and the
// next push resumes; every individual action is idempotent.
func (e *Engine) reconcileEvents(ctx context.Context, flowID string, docs []mirror.EventDoc, report *RunReport) error {
	remote, err := e.client.ListEvents(ctx, flowID)
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}

	byIdn := make(map[string]api.Event, len(remote))
	for _, event := range remote {
		byIdn[event.Idn] = event
	}

	seen := make(map[string]bool, len(docs))

	for _, doc := range docs {
		eventIdn := idn.Normalize(doc.Idn)
		if err := idn.Validate(eventIdn); err != nil {
			return fmt.Errorf("event %q: %w", doc.Idn, err)
		}

		seen[eventIdn] = true
		current, exists := byIdn[eventIdn]

		switch {
		case !exists:
			_, err := e.client.CreateEvent(ctx, api.EventParams{
				FlowID:      flowID,
				Idn:         eventIdn,
				Title:       defaultTitle(doc.Title, eventIdn),
				Description: doc.Description,
			})
			if err != nil {
				return fmt.Errorf("creating event %q: %w", eventIdn, err)
			}

			report.addCreated()
		case fieldDrifted(current.Title, doc.Title) || fieldDrifted(current.Description, doc.Description):
			err := e.client.UpdateEvent(ctx, current.ID, api.EventParams{
				Title:       doc.Title,
				Description: doc.Description,
			})
			if err != nil {
				return fmt.Errorf("updating event %q: %w", eventIdn, err)
			}

			report.addUpdated()
		}
	}

	for _, event := range remote {
		if seen[event.Idn] {
			continue
		}

		if err := e.client.DeleteEvent(ctx, event.ID); err != nil && !errors.Is(err, api.ErrNotFound) {
			return fmt.Errorf("deleting event %q: %w", event.Idn, err)
		}

		report.addDeleted()
	}

	return nil
}

func (e *Engine) reconcileStateFields(ctx context.Context, flowID string, docs []mirror.StateFieldDoc, report *RunReport) error {
	remote, err := e.client.ListStateFields(ctx, flowID)
	if err != nil {
		return fmt.Errorf("listing state fields: %w", err)
	}

	byIdn := make(map[string]api.StateField, len(remote))
	for _, field := range remote {
		byIdn[field.Idn] = field
	}

	seen := make(map[string]bool, len(docs))

	for _, doc := range docs {
		fieldIdn := idn.Normalize(doc.Idn)
		if err := idn.Validate(fieldIdn); err != nil {
			return fmt.Errorf("state field %q: %w", doc.Idn, err)
		}

		seen[fieldIdn] = true
		current, exists := byIdn[fieldIdn]

		switch {
		case !exists:
			_, err := e.client.CreateStateField(ctx, api.StateFieldParams{
				FlowID:  flowID,
				Idn:     fieldIdn,
				Title:   defaultTitle(doc.Title, fieldIdn),
				Type:    doc.Type,
				Default: doc.Default,
			})
			if err != nil {
				return fmt.Errorf("creating state field %q: %w", fieldIdn, err)
			}

			report.addCreated()
		case fieldDrifted(current.Title, doc.Title) ||
			fieldDrifted(current.Type, doc.Type) ||
			fieldDrifted(current.Default, doc.Default):
			err := e.client.UpdateStateField(ctx, current.ID, api.StateFieldParams{
				Title:   doc.Title,
				Type:    doc.Type,
				Default: doc.Default,
			})
			if err != nil {
				return fmt.Errorf("updating state field %q: %w", fieldIdn, err)
			}

			report.addUpdated()
		}
	}

	for _, field := range remote {
		if seen[field.Idn] {
			continue
		}

		if err := e.client.DeleteStateField(ctx, field.ID); err != nil && !errors.Is(err, api.ErrNotFound) {
			return fmt.Errorf("deleting state field %q: %w", field.Idn, err)
		}

		report.addDeleted()
	}

	return nil
}

// reconcileSkillMeta pushes title, model and parameter drift for skills
// the flow document lists. Creation and deletion of skills belong to
// their content files, so unmatched entries on either side are left
// alone here.
func (e *Engine) reconcileSkillMeta(ctx context.Context, ref mirror.EntityRef, flowID string, docs []mirror.SkillDoc, report *RunReport) error {
	if len(docs) == 0 {
		return nil
	}

	remote, err := e.client.ListSkills(ctx, flowID)
	if err != nil {
		return fmt.Errorf("listing skills: %w", err)
	}

	byIdn := make(map[string]api.Skill, len(remote))
	for _, skill := range remote {
		byIdn[skill.Idn] = skill
	}

	for _, doc := range docs {
		skillIdn := idn.Normalize(doc.Idn)

		current, exists := byIdn[skillIdn]
		if !exists {
			continue
		}

		e.identity.SetSkillID(ref.Project, ref.Agent, ref.Flow, skillIdn, current.ID)

		drifted := fieldDrifted(current.Title, doc.Title) ||
			fieldDrifted(current.Model, doc.Model) ||
			(len(doc.Parameters) > 0 && !paramsEqual(doc.Parameters, current.Parameters))

		if !drifted {
			continue
		}

		err := e.client.UpdateSkill(ctx, current.ID, api.SkillParams{
			Title:      doc.Title,
			Model:      doc.Model,
			Parameters: apiParameters(doc.Parameters),
		})
		if err != nil {
			return fmt.Errorf("updating skill %q: %w", skillIdn, err)
		}

		report.addUpdated()
	}

	return nil
}

// pushAttributes upserts customer attributes from the local document.
// Attributes are never deleted remotely: dropping a line from the file
// must not destroy customer data, so remote-only entries are reported
// and left untouched.
func (e *Engine) pushAttributes(ctx context.Context, entry PlanEntry, raw []byte, report *RunReport) {
	doc, err := mirror.DecodeAttributes(raw)
	if err != nil {
		e.entityErr(report, entry, "parse", err)

		return
	}

	remote, err := e.client.ListAttributes(ctx)
	if err != nil {
		e.entityErr(report, entry, "list", err)

		return
	}

	byIdn := make(map[string]api.Attribute, len(remote))
	for _, attribute := range remote {
		byIdn[attribute.Idn] = attribute
	}

	seen := make(map[string]bool, len(doc.Attributes))
	failed := false
	changed := 0

	for _, attribute := range doc.Attributes {
		attrIdn := idn.Normalize(attribute.Idn)
		if err := idn.Validate(attrIdn); err != nil {
			report.addError(EntityError{Kind: "attribute", Idn: attribute.Idn, Path: entry.Path, Op: "parse", Err: err})
			failed = true

			continue
		}

		seen[attrIdn] = true

		current, exists := byIdn[attrIdn]
		if !exists {
			created, err := e.client.CreateAttribute(ctx, api.AttributeParams{
				Idn:   attrIdn,
				Title: defaultTitle(attribute.Title, attrIdn),
				Value: attribute.Value,
			})
			if err != nil {
				report.addError(EntityError{Kind: "attribute", Idn: attrIdn, Path: entry.Path, Op: "create", Err: err})
				failed = true

				continue
			}

			e.identity.SetAttributeID(attrIdn, created.ID)
			report.addCreated()
			changed++

			continue
		}

		e.identity.SetAttributeID(attrIdn, current.ID)

		if fieldDrifted(current.Title, attribute.Title) || fieldDrifted(current.Value, attribute.Value) {
			err := e.client.UpdateAttribute(ctx, current.ID, api.AttributeParams{
				Title: attribute.Title,
				Value: attribute.Value,
			})
			if err != nil {
				report.addError(EntityError{Kind: "attribute", Idn: attrIdn, Path: entry.Path, Op: "update", Err: err})
				failed = true

				continue
			}

			report.addUpdated()
			changed++
		}
	}

	for _, attribute := range remote {
		if !seen[attribute.Idn] {
			e.logger.Info("remote attribute missing from the local file is left untouched",
				slog.String("idn", attribute.Idn),
			)
		}
	}

	if failed {
		return
	}

	e.hashes.Set(entry.Path, fingerprint.Bytes(raw))

	if changed == 0 {
		report.addUnchanged()
	}
}

// pushDeletions replays local removals top-most entity first: deleting
// a project remotely cascades, so deeper entries under an already
// deleted prefix only need their store rows cleared.
func (e *Engine) pushDeletions(ctx context.Context, entries []PlanEntry, report *RunReport) {
	handled := &prefixSet{}

	for _, kind := range pushKindOrder {
		for _, entry := range entries {
			if entry.Ref.Kind != kind {
				continue
			}

			if handled.covers(entry.Path) {
				e.hashes.Delete(entry.Path)

				continue
			}

			e.pushDelete(ctx, entry, handled, report)
		}
	}
}

func (e *Engine) pushDelete(ctx context.Context, entry PlanEntry, handled *prefixSet, report *RunReport) {
	ref := entry.Ref

	if ref.Kind == mirror.KindAttributes {
		e.logger.Warn("attributes file was deleted locally; remote attributes are never mass-deleted, run pull to restore it")
		e.hashes.Delete(entry.Path)

		return
	}

	// A metadata file missing while its directory survives reads as an
	// accident, not an intent to drop the subtree.
	if dir, scoped := entityDir(ref); scoped {
		if _, err := os.Stat(mirror.Abs(e.root, dir)); err == nil {
			e.logger.Warn("metadata file is missing but its directory remains; nothing deleted remotely, run pull to restore it",
				slog.String("path", entry.Path),
			)
			e.hashes.Delete(entry.Path)

			return
		}
	}

	id, exists := nodeID(e.identity, ref)

	if exists && id != "" {
		var err error

		switch ref.Kind {
		case mirror.KindProject:
			err = e.client.DeleteProject(ctx, id)
		case mirror.KindAgent:
			err = e.client.DeleteAgent(ctx, id)
		case mirror.KindFlow:
			err = e.client.DeleteFlow(ctx, id)
		case mirror.KindSkill:
			err = e.client.DeleteSkill(ctx, id)
		case mirror.KindPersona:
			err = e.client.DeletePersona(ctx, id)
		}

		if err != nil && !errors.Is(err, api.ErrNotFound) {
			e.entityErr(report, entry, "delete", err)

			return
		}
	}

	e.deleteNode(ref)
	e.hashes.Delete(entry.Path)

	if dir, scoped := entityDir(ref); scoped {
		prefix := dir + "/"
		handled.add(prefix)

		for _, tracked := range e.hashes.Paths() {
			if strings.HasPrefix(tracked, prefix) {
				e.hashes.Delete(tracked)
			}
		}
	}

	report.addDeleted()
	e.logger.Info("deleted", slog.String("kind", ref.Kind.String()), slog.String("idn", ref.Idn()))
}

// handleIgnored deals with read-only paths: knowledge-base articles and
// skill files without a recognized runner. Local edits are never
// pushed; a removed file is just dropped from tracking so pull can
// restore it.
func (e *Engine) handleIgnored(entry PlanEntry) {
	if entry.Missing {
		e.logger.Warn("read-only file removed locally; dropping it from tracking, pull restores it",
			slog.String("path", entry.Path),
		)
		e.hashes.Delete(entry.Path)

		return
	}

	e.logger.Debug("local change to a read-only path is not pushed", slog.String("path", entry.Path))
}

// skillMeta pulls a skill's metadata entry out of its flow document, if
// the document exists and lists it. Missing metadata is fine: creation
// falls back to defaults.
func (e *Engine) skillMeta(ref mirror.EntityRef) mirror.SkillDoc {
	raw, err := os.ReadFile(mirror.Abs(e.root, mirror.FlowMetaPath(ref.Project, ref.Agent, ref.Flow)))
	if err != nil {
		return mirror.SkillDoc{}
	}

	doc, err := mirror.DecodeFlow(raw)
	if err != nil {
		return mirror.SkillDoc{}
	}

	for _, skill := range doc.Skills {
		if idn.Normalize(skill.Idn) == ref.Skill {
			return skill
		}
	}

	return mirror.SkillDoc{}
}

func (e *Engine) entityErr(report *RunReport, entry PlanEntry, op string, err error) {
	report.addError(EntityError{
		Kind: entry.Ref.Kind.String(),
		Idn:  entry.Ref.Idn(),
		Path: entry.Path,
		Op:   op,
		Err:  err,
	})
}

// checkDocIdn warns when a document carries an idn that disagrees with
// its own path. The path is authoritative; the field is informative.
func (e *Engine) checkDocIdn(docIdn string, ref mirror.EntityRef) {
	if docIdn == "" {
		return
	}

	if idn.Normalize(docIdn) != ref.Idn() {
		e.logger.Warn("document idn differs from its path, the path wins",
			slog.String("doc_idn", docIdn),
			slog.String("path_idn", ref.Idn()),
		)
	}
}

// entityDir maps directory-scoped kinds to their directory.
func entityDir(ref mirror.EntityRef) (string, bool) {
	switch ref.Kind {
	case mirror.KindProject:
		return mirror.ProjectDir(ref.Project), true
	case mirror.KindAgent:
		return mirror.AgentDir(ref.Project, ref.Agent), true
	case mirror.KindFlow:
		return mirror.FlowDir(ref.Project, ref.Agent, ref.Flow), true
	default:
		return "", false
	}
}

func defaultTitle(title, fallback string) string {
	if title != "" {
		return title
	}

	return fallback
}

// fieldDrifted compares a remote value against a document value. Empty
// document fields are "leave as-is" (the API omits them from updates),
// so they never count as drift.
func fieldDrifted(current, doc string) bool {
	return doc != "" && current != doc
}

func apiParameters(docs []mirror.ParameterDoc) []api.Parameter {
	if len(docs) == 0 {
		return nil
	}

	params := make([]api.Parameter, 0, len(docs))
	for _, doc := range docs {
		params = append(params, api.Parameter{Name: doc.Name, Value: doc.Value})
	}

	return params
}

func paramsEqual(docs []mirror.ParameterDoc, params []api.Parameter) bool {
	if len(docs) != len(params) {
		return false
	}

	have := make(map[string]string, len(params))
	for _, param := range params {
		have[param.Name] = param.Value
	}

	for _, doc := range docs {
		value, ok := have[doc.Name]
		if !ok || value != doc.Value {
			return false
		}
	}

	return true
}
