// Package mirror defines the on-disk layout of a tenant's configuration
// tree: path construction and parsing, runner-type↔extension mapping,
// YAML metadata codecs, atomic writes, and the tree scanner.
//
// All paths handled here are relative to a tenant root and use forward
// slashes; they double as Hash Store keys.
package mirror

import (
	"path"
	"strings"

	"github.com/spindleworks/spindle-go/internal/idn"
)

// Reserved file and directory names inside a tenant tree.
const (
	ProjectsDir    = "projects"
	PersonasDir    = "personas"
	AKBDir         = "akb"
	ProjectFile    = "project.yaml"
	AgentFile      = "agent.yaml"
	FlowFile       = "flow.yaml"
	AttributesFile = "attributes.yaml"

	yamlExt = ".yaml"
)

// Runner types with a dedicated skill content extension.
const (
	RunnerGuidance = "guidance"
	RunnerJinja    = "jinja"
)

// unknownRunnerExt is the fallback extension for skills whose runner type
// has no dedicated extension. Such files are pull-only.
const unknownRunnerExt = ".txt"

// EntityKind identifies what a managed path represents.
type EntityKind int

const (
	KindUnknown EntityKind = iota
	KindProject
	KindAgent
	KindFlow
	KindSkill
	KindPersona
	KindAttributes
	KindArticle
)

func (k EntityKind) String() string {
	switch k {
	case KindProject:
		return "project"
	case KindAgent:
		return "agent"
	case KindFlow:
		return "flow"
	case KindSkill:
		return "skill"
	case KindPersona:
		return "persona"
	case KindAttributes:
		return "attributes"
	case KindArticle:
		return "article"
	default:
		return "unknown"
	}
}

// EntityRef locates an entity within the object graph. Idn fields are
// populated top-down as far as the kind requires: a skill carries
// Project, Agent, Flow and Skill; a persona or article carries only Name.
type EntityRef struct {
	Kind    EntityKind
	Project string
	Agent   string
	Flow    string
	Skill   string
	Name    string

	// Runner is the runner type implied by a skill file's extension.
	// Empty for skill files with the fallback extension: their runner is
	// unknown locally, so push leaves them alone.
	Runner string
}

// Idn returns the leaf identifier of the referenced entity.
func (r EntityRef) Idn() string {
	switch r.Kind {
	case KindProject:
		return r.Project
	case KindAgent:
		return r.Agent
	case KindFlow:
		return r.Flow
	case KindSkill:
		return r.Skill
	case KindPersona, KindArticle:
		return r.Name
	case KindAttributes:
		return "attributes"
	default:
		return ""
	}
}

// ExtForRunner maps a runner type to its skill content extension.
// Unknown runner types get the fallback extension and known=false.
func ExtForRunner(runner string) (ext string, known bool) {
	switch runner {
	case RunnerGuidance:
		return ".guidance", true
	case RunnerJinja:
		return ".jinja", true
	default:
		return unknownRunnerExt, false
	}
}

// runnerForExt is the inverse of ExtForRunner. The fallback extension
// maps to an empty runner with known=false.
func runnerForExt(ext string) (runner string, known bool) {
	switch ext {
	case ".guidance":
		return RunnerGuidance, true
	case ".jinja":
		return RunnerJinja, true
	case unknownRunnerExt:
		return "", false
	default:
		return "", false
	}
}

// skillExt reports whether ext is a recognized skill content extension,
// the fallback extension included.
func skillExt(ext string) bool {
	switch ext {
	case ".guidance", ".jinja", unknownRunnerExt:
		return true
	default:
		return false
	}
}

// ProjectMetaPath returns the relative path of a project's metadata file.
func ProjectMetaPath(project string) string {
	return path.Join(ProjectsDir, project, ProjectFile)
}

// AgentMetaPath returns the relative path of an agent's metadata file.
func AgentMetaPath(project, agent string) string {
	return path.Join(ProjectsDir, project, agent, AgentFile)
}

// FlowMetaPath returns the relative path of a flow's metadata file.
func FlowMetaPath(project, agent, flow string) string {
	return path.Join(ProjectsDir, project, agent, flow, FlowFile)
}

// SkillPath returns the relative path of a skill's content file. The
// extension is derived from the runner type.
func SkillPath(project, agent, flow, skill, runner string) string {
	ext, _ := ExtForRunner(runner)

	return path.Join(ProjectsDir, project, agent, flow, skill+ext)
}

// ProjectDir returns the relative path of a project's directory.
func ProjectDir(project string) string {
	return path.Join(ProjectsDir, project)
}

// AgentDir returns the relative path of an agent's directory.
func AgentDir(project, agent string) string {
	return path.Join(ProjectsDir, project, agent)
}

// FlowDir returns the relative path of a flow's directory.
func FlowDir(project, agent, flow string) string {
	return path.Join(ProjectsDir, project, agent, flow)
}

// PersonaPath returns the relative path of a persona's metadata file.
func PersonaPath(persona string) string {
	return path.Join(PersonasDir, persona+yamlExt)
}

// ArticlePath returns the relative path of a knowledge-base article file.
func ArticlePath(article string) string {
	return path.Join(AKBDir, article+yamlExt)
}

// Classify parses a slash-separated relative path into an EntityRef.
// Paths that do not name a managed entity return ok=false: stray files,
// wrong nesting depth, and idn segments that fail validation are all
// simply not part of the mirror contract.
func Classify(relPath string) (EntityRef, bool) {
	segs := strings.Split(relPath, "/")

	switch {
	case len(segs) == 1 && segs[0] == AttributesFile:
		return EntityRef{Kind: KindAttributes}, true

	case len(segs) == 2 && segs[0] == PersonasDir:
		name, ok := yamlBase(segs[1])
		if !ok {
			return EntityRef{}, false
		}

		return EntityRef{Kind: KindPersona, Name: name}, true

	case len(segs) == 2 && segs[0] == AKBDir:
		name, ok := yamlBase(segs[1])
		if !ok {
			return EntityRef{}, false
		}

		return EntityRef{Kind: KindArticle, Name: name}, true

	case segs[0] == ProjectsDir:
		return classifyProjectPath(segs)
	}

	return EntityRef{}, false
}

func classifyProjectPath(segs []string) (EntityRef, bool) {
	switch len(segs) {
	case 3:
		if segs[2] != ProjectFile {
			return EntityRef{}, false
		}

		project, ok := cleanIdn(segs[1])
		if !ok {
			return EntityRef{}, false
		}

		return EntityRef{Kind: KindProject, Project: project}, true

	case 4:
		if segs[3] != AgentFile {
			return EntityRef{}, false
		}

		project, okP := cleanIdn(segs[1])
		agent, okA := cleanIdn(segs[2])

		if !okP || !okA {
			return EntityRef{}, false
		}

		return EntityRef{Kind: KindAgent, Project: project, Agent: agent}, true

	case 5:
		project, okP := cleanIdn(segs[1])
		agent, okA := cleanIdn(segs[2])
		flow, okF := cleanIdn(segs[3])

		if !okP || !okA || !okF {
			return EntityRef{}, false
		}

		ref := EntityRef{Project: project, Agent: agent, Flow: flow}

		if segs[4] == FlowFile {
			ref.Kind = KindFlow

			return ref, true
		}

		ext := path.Ext(segs[4])
		if !skillExt(ext) {
			return EntityRef{}, false
		}

		skill, ok := cleanIdn(strings.TrimSuffix(segs[4], ext))
		if !ok {
			return EntityRef{}, false
		}

		ref.Kind = KindSkill
		ref.Skill = skill
		ref.Runner, _ = runnerForExt(ext)

		return ref, true
	}

	return EntityRef{}, false
}

// yamlBase strips the .yaml extension and validates the remaining idn.
func yamlBase(file string) (string, bool) {
	if !strings.HasSuffix(file, yamlExt) {
		return "", false
	}

	return cleanIdn(strings.TrimSuffix(file, yamlExt))
}

// cleanIdn normalizes and validates a path segment used as an idn.
func cleanIdn(raw string) (string, bool) {
	normalized := idn.Normalize(raw)
	if err := idn.Validate(normalized); err != nil {
		return "", false
	}

	return normalized, true
}
