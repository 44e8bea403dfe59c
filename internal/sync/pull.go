package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/spindleworks/spindle-go/internal/api"
	"github.com/spindleworks/spindle-go/internal/fingerprint"
	"github.com/spindleworks/spindle-go/internal/mirror"
)

// visitTracker records which mirror paths a pull confirmed and which
// scope prefixes errored. Errored scopes are exempt from pruning: a
// subtree we failed to fetch tells us nothing about what still exists.
type visitTracker struct {
	mu      sync.Mutex
	paths   map[string]bool
	errored []string
}

func newVisitTracker() *visitTracker {
	return &visitTracker{paths: make(map[string]bool)}
}

func (v *visitTracker) markPath(relPath string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.paths[relPath] = true
}

func (v *visitTracker) markErrored(prefix string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.errored = append(v.errored, prefix)
}

func (v *visitTracker) visited(relPath string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.paths[relPath]
}

func (v *visitTracker) underErrored(relPath string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, prefix := range v.errored {
		if strings.HasPrefix(relPath, prefix) {
			return true
		}
	}

	return false
}

// Pull mirrors the remote graph into the tenant tree. projectID narrows
// the hierarchy walk to one remote project; the tenant's configured
// project (when set) applies when projectID is empty. Customer-level
// sections — personas, attributes, knowledge base — are outside any
// project and always pulled.
//
// Entity failures land in the report and never abort siblings; the
// returned error is reserved for fatal conditions (nothing listed,
// stores unwritable, canceled context).
func (e *Engine) Pull(ctx context.Context, projectID string) (*RunReport, error) {
	report := newRunReport(e.tenant.Idn, OpPull, e.now())

	filter := projectID
	if filter == "" {
		filter = e.tenant.ProjectID
	}

	visits := newVisitTracker()
	before := e.hashes.Snapshot()

	projects, err := e.client.ListProjects(ctx)
	if err != nil {
		e.failRun(ctx, report)

		return report, fmt.Errorf("listing projects: %w", err)
	}

	var filteredIdn string

	for _, project := range projects {
		if filter != "" && project.ID != filter {
			continue
		}

		if filter != "" {
			filteredIdn = project.Idn
		}

		e.pullProject(ctx, project, visits, report)
	}

	if filter != "" && filteredIdn == "" {
		e.logger.Warn("project filter matched no remote project", slog.String("project_id", filter))
	}

	e.pullPersonas(ctx, visits, report)
	e.pullAttributes(ctx, visits, report)
	e.pullArticles(ctx, visits, report)

	if ctx.Err() != nil {
		e.failRun(ctx, report)

		return report, fmt.Errorf("pull interrupted: %w", ctx.Err())
	}

	e.prune(before, visits, filter, filteredIdn, report)

	if err := e.saveStores(); err != nil {
		e.failRun(ctx, report)

		return report, err
	}

	e.finishRun(ctx, report)

	return report, nil
}

func (e *Engine) pullProject(ctx context.Context, project api.Project, visits *visitTracker, report *RunReport) {
	scope := mirror.ProjectDir(project.Idn) + "/"
	metaPath := mirror.ProjectMetaPath(project.Idn)

	data, err := mirror.EncodeProject(mirror.ProjectDoc{
		Idn:         project.Idn,
		Title:       project.Title,
		Description: project.Description,
	})
	if err == nil {
		err = e.writeManaged(metaPath, data, report)
	}

	if err != nil {
		report.addError(EntityError{Kind: "project", Idn: project.Idn, Path: metaPath, Op: "write", Err: err})
		visits.markErrored(scope)

		return
	}

	visits.markPath(metaPath)
	e.identity.SetProjectID(project.Idn, project.ID)

	agents, err := e.client.ListAgents(ctx, project.ID)
	if err != nil {
		report.addError(EntityError{Kind: "project", Idn: project.Idn, Op: "list", Err: err})
		visits.markErrored(scope)

		return
	}

	for _, agent := range agents {
		e.pullAgent(ctx, project, agent, visits, report)
	}
}

func (e *Engine) pullAgent(ctx context.Context, project api.Project, agent api.Agent, visits *visitTracker, report *RunReport) {
	scope := mirror.AgentDir(project.Idn, agent.Idn) + "/"
	metaPath := mirror.AgentMetaPath(project.Idn, agent.Idn)

	data, err := mirror.EncodeAgent(mirror.AgentDoc{
		Idn:         agent.Idn,
		Title:       agent.Title,
		Description: agent.Description,
	})
	if err == nil {
		err = e.writeManaged(metaPath, data, report)
	}

	if err != nil {
		report.addError(EntityError{Kind: "agent", Idn: agent.Idn, Path: metaPath, Op: "write", Err: err})
		visits.markErrored(scope)

		return
	}

	visits.markPath(metaPath)
	e.identity.SetAgentID(project.Idn, agent.Idn, agent.ID)

	flows, err := e.client.ListFlows(ctx, agent.ID)
	if err != nil {
		report.addError(EntityError{Kind: "agent", Idn: agent.Idn, Op: "list", Err: err})
		visits.markErrored(scope)

		return
	}

	// Flows are independent of each other: fan out, bounded to stay
	// inside the platform's rate limits.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, flow := range flows {
		g.Go(func() error {
			e.pullFlow(gctx, project, agent, flow, visits, report)

			return nil
		})
	}

	_ = g.Wait()
}

func (e *Engine) pullFlow(ctx context.Context, project api.Project, agent api.Agent, flow api.Flow, visits *visitTracker, report *RunReport) {
	scope := mirror.FlowDir(project.Idn, agent.Idn, flow.Idn) + "/"

	fail := func(op string, err error) {
		report.addError(EntityError{Kind: "flow", Idn: flow.Idn, Op: op, Err: err})
		visits.markErrored(scope)
	}

	skills, err := e.client.ListSkills(ctx, flow.ID)
	if err != nil {
		fail("list", err)

		return
	}

	events, err := e.client.ListEvents(ctx, flow.ID)
	if err != nil {
		fail("list", err)

		return
	}

	fields, err := e.client.ListStateFields(ctx, flow.ID)
	if err != nil {
		fail("list", err)

		return
	}

	e.identity.SetFlowID(project.Idn, agent.Idn, flow.Idn, flow.ID)

	doc := mirror.FlowDoc{
		Idn:         flow.Idn,
		Title:       flow.Title,
		Description: flow.Description,
	}

	for _, event := range events {
		doc.Events = append(doc.Events, mirror.EventDoc{
			Idn:         event.Idn,
			Title:       event.Title,
			Description: event.Description,
		})
	}

	for _, field := range fields {
		doc.StateFields = append(doc.StateFields, mirror.StateFieldDoc{
			Idn:     field.Idn,
			Title:   field.Title,
			Type:    field.Type,
			Default: field.Default,
		})
	}

	for _, skill := range skills {
		if _, known := mirror.ExtForRunner(skill.RunnerType); !known {
			e.logger.Warn("skill runner type has no content extension, writing pull-only file",
				slog.String("skill", skill.Idn),
				slog.String("runner_type", skill.RunnerType),
			)
		}

		skillPath := mirror.SkillPath(project.Idn, agent.Idn, flow.Idn, skill.Idn, skill.RunnerType)

		if err := e.writeManaged(skillPath, []byte(skill.PromptScript), report); err != nil {
			report.addError(EntityError{Kind: "skill", Idn: skill.Idn, Path: skillPath, Op: "write", Err: err})
			visits.markErrored(scope)
		} else {
			visits.markPath(skillPath)
			e.identity.SetSkillID(project.Idn, agent.Idn, flow.Idn, skill.Idn, skill.ID)
		}

		doc.Skills = append(doc.Skills, mirror.SkillDoc{
			Idn:        skill.Idn,
			Title:      skill.Title,
			RunnerType: skill.RunnerType,
			Model:      skill.Model,
			Parameters: parameterDocs(skill.Parameters),
		})
	}

	metaPath := mirror.FlowMetaPath(project.Idn, agent.Idn, flow.Idn)

	data, err := mirror.EncodeFlow(doc)
	if err == nil {
		err = e.writeManaged(metaPath, data, report)
	}

	if err != nil {
		report.addError(EntityError{Kind: "flow", Idn: flow.Idn, Path: metaPath, Op: "write", Err: err})
		visits.markErrored(scope)

		return
	}

	visits.markPath(metaPath)
}

func (e *Engine) pullPersonas(ctx context.Context, visits *visitTracker, report *RunReport) {
	personas, err := e.client.ListPersonas(ctx)
	if err != nil {
		report.addError(EntityError{Kind: "personas", Op: "list", Err: err})
		visits.markErrored(mirror.PersonasDir + "/")

		return
	}

	remote := make(map[string]bool, len(personas))

	for _, persona := range personas {
		remote[persona.Idn] = true
		metaPath := mirror.PersonaPath(persona.Idn)

		data, err := mirror.EncodePersona(mirror.PersonaDoc{
			Idn:         persona.Idn,
			Title:       persona.Title,
			Description: persona.Description,
		})
		if err == nil {
			err = e.writeManaged(metaPath, data, report)
		}

		if err != nil {
			report.addError(EntityError{Kind: "persona", Idn: persona.Idn, Path: metaPath, Op: "write", Err: err})
			visits.markErrored(metaPath)

			continue
		}

		visits.markPath(metaPath)
		e.identity.SetPersonaID(persona.Idn, persona.ID)
	}

	for _, idn := range e.identity.Personas() {
		if !remote[idn] {
			e.identity.DeletePersona(idn)
		}
	}
}

func (e *Engine) pullAttributes(ctx context.Context, visits *visitTracker, report *RunReport) {
	attributes, err := e.client.ListAttributes(ctx)
	if err != nil {
		report.addError(EntityError{Kind: "attributes", Op: "list", Err: err})
		visits.markErrored(mirror.AttributesFile)

		return
	}

	doc := mirror.AttributesDoc{Attributes: make([]mirror.AttributeDoc, 0, len(attributes))}
	remote := make(map[string]bool, len(attributes))

	for _, attribute := range attributes {
		remote[attribute.Idn] = true
		doc.Attributes = append(doc.Attributes, mirror.AttributeDoc{
			Idn:   attribute.Idn,
			Title: attribute.Title,
			Value: attribute.Value,
		})
		e.identity.SetAttributeID(attribute.Idn, attribute.ID)
	}

	data, err := mirror.EncodeAttributes(doc)
	if err == nil {
		err = e.writeManaged(mirror.AttributesFile, data, report)
	}

	if err != nil {
		report.addError(EntityError{Kind: "attributes", Path: mirror.AttributesFile, Op: "write", Err: err})
		visits.markErrored(mirror.AttributesFile)

		return
	}

	visits.markPath(mirror.AttributesFile)

	for _, idn := range e.identity.Attributes() {
		if !remote[idn] {
			e.identity.DeleteAttribute(idn)
		}
	}
}

func (e *Engine) pullArticles(ctx context.Context, visits *visitTracker, report *RunReport) {
	articles, err := e.client.ListArticles(ctx)
	if err != nil {
		report.addError(EntityError{Kind: "articles", Op: "list", Err: err})
		visits.markErrored(mirror.AKBDir + "/")

		return
	}

	for _, article := range articles {
		metaPath := mirror.ArticlePath(article.Idn)

		data, err := mirror.EncodeArticle(mirror.ArticleDoc{
			Idn:     article.Idn,
			Title:   article.Title,
			Content: article.Content,
		})
		if err == nil {
			err = e.writeManaged(metaPath, data, report)
		}

		if err != nil {
			report.addError(EntityError{Kind: "article", Idn: article.Idn, Path: metaPath, Op: "write", Err: err})
			visits.markErrored(metaPath)

			continue
		}

		visits.markPath(metaPath)
	}
}

// writeManaged writes mirror content and records its fingerprint. The
// physical write is skipped when the on-disk bytes already match, which
// keeps repeated pulls byte-stable and cheap.
func (e *Engine) writeManaged(relPath string, data []byte, report *RunReport) error {
	newFP := fingerprint.Bytes(data)
	absPath := mirror.Abs(e.root, relPath)

	stored, tracked := e.hashes.Get(relPath)

	onDisk, err := fingerprint.File(absPath)
	if err != nil || onDisk != newFP {
		if err := mirror.WriteFileAtomic(absPath, data); err != nil {
			return err
		}
	}

	e.hashes.Set(relPath, newFP)

	switch {
	case tracked && stored == newFP:
		report.addUnchanged()
	case tracked:
		report.addUpdated()
	default:
		report.addCreated()
	}

	return nil
}

// prune removes tracked paths that a completed walk did not re-see.
// Everything visited, everything under an errored scope, everything
// outside the project filter, and pending local creations survive.
func (e *Engine) prune(before map[string]string, visits *visitTracker, filterID, filteredIdn string, report *RunReport) {
	paths := make([]string, 0, len(before))
	for relPath := range before {
		paths = append(paths, relPath)
	}

	sort.Strings(paths)

	for _, relPath := range paths {
		if visits.visited(relPath) || visits.underErrored(relPath) {
			continue
		}

		if strings.HasPrefix(relPath, mirror.ProjectsDir+"/") && filterID != "" {
			if filteredIdn == "" || !strings.HasPrefix(relPath, mirror.ProjectDir(filteredIdn)+"/") {
				continue
			}
		}

		ref, classified := mirror.Classify(relPath)

		if classified {
			if id, exists := nodeID(e.identity, ref); exists && id == "" {
				if _, err := os.Stat(mirror.Abs(e.root, relPath)); err == nil {
					// Locally created, not yet acknowledged remotely.
					continue
				}
			}
		}

		if err := mirror.RemoveFile(e.root, relPath); err != nil {
			report.addError(EntityError{Kind: ref.Kind.String(), Idn: ref.Idn(), Path: relPath, Op: "delete", Err: err})

			continue
		}

		e.hashes.Delete(relPath)

		if classified {
			e.deleteNode(ref)
		}

		report.addDeleted()
		e.logger.Info("pruned path deleted remotely", slog.String("path", relPath))
	}
}

// deleteNode drops the identity subtree belonging to a pruned path.
func (e *Engine) deleteNode(ref mirror.EntityRef) {
	switch ref.Kind {
	case mirror.KindProject:
		e.identity.DeleteProject(ref.Project)
	case mirror.KindAgent:
		e.identity.DeleteAgent(ref.Project, ref.Agent)
	case mirror.KindFlow:
		e.identity.DeleteFlow(ref.Project, ref.Agent, ref.Flow)
	case mirror.KindSkill:
		e.identity.DeleteSkill(ref.Project, ref.Agent, ref.Flow, ref.Skill)
	case mirror.KindPersona:
		e.identity.DeletePersona(ref.Name)
	}
}

func parameterDocs(params []api.Parameter) []mirror.ParameterDoc {
	if len(params) == 0 {
		return nil
	}

	docs := make([]mirror.ParameterDoc, 0, len(params))
	for _, p := range params {
		docs = append(docs, mirror.ParameterDoc{Name: p.Name, Value: p.Value})
	}

	return docs
}
