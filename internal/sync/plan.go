package sync

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spindleworks/spindle-go/internal/fingerprint"
	"github.com/spindleworks/spindle-go/internal/mirror"
	"github.com/spindleworks/spindle-go/internal/state"
)

// Change classifies one mirror path against the hash store.
type Change int

const (
	Unchanged Change = iota
	Added
	Modified
	Deleted
	Ignored
)

func (c Change) String() string {
	switch c {
	case Unchanged:
		return "unchanged"
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Ignored:
		return "ignored"
	default:
		return "invalid"
	}
}

// PlanEntry is one path's classification.
type PlanEntry struct {
	Path   string
	Change Change
	Ref    mirror.EntityRef

	// Missing is set when the path is tracked but absent on disk. It is
	// implied for Deleted entries and distinguishes vanished read-only
	// files among the Ignored ones.
	Missing bool

	// HasNode marks entries whose entity already has a resolved
	// (non-pending) identity node. An Added entry with HasNode set means
	// the hash store lost the path but the entity exists remotely: push
	// updates it rather than creating a duplicate.
	HasNode bool
}

// Plan is the ordered classification of a tenant tree. Status renders it;
// Push replays it. Both get it from the same function, so they cannot
// disagree about what would be pushed.
type Plan struct {
	Entries []PlanEntry
}

// Clean reports whether the plan contains no added, modified or deleted
// paths.
func (p *Plan) Clean() bool {
	for i := range p.Entries {
		switch p.Entries[i].Change {
		case Added, Modified, Deleted:
			return false
		}
	}

	return true
}

// Count returns the number of entries with the given change.
func (p *Plan) Count(c Change) int {
	n := 0

	for i := range p.Entries {
		if p.Entries[i].Change == c {
			n++
		}
	}

	return n
}

// Pending returns the entries push would act on, in plan order.
func (p *Plan) Pending() []PlanEntry {
	var pending []PlanEntry

	for _, e := range p.Entries {
		switch e.Change {
		case Added, Modified, Deleted:
			pending = append(pending, e)
		}
	}

	return pending
}

// BuildPlan classifies every managed path under root against the hash
// store: untracked files are added, fingerprint mismatches are modified,
// tracked-but-missing paths are deleted, and read-only paths (knowledge
// base articles, skills with an unknown runner type) are ignored instead
// of added/modified/deleted. A non-empty scope restricts the plan to one
// project's subtree. Pure with respect to the network and the stores:
// nothing is fetched and nothing is mutated.
func BuildPlan(root, scope string, hashes *state.HashStore, identity *state.IdentityMap) (*Plan, error) {
	onDisk, err := mirror.ScanTree(root)
	if err != nil {
		return nil, fmt.Errorf("planning: %w", err)
	}

	plan := &Plan{}
	seen := make(map[string]bool, len(onDisk))

	for _, relPath := range onDisk {
		if !underScope(relPath, scope) {
			continue
		}

		ref, ok := mirror.Classify(relPath)
		if !ok {
			continue
		}

		seen[relPath] = true

		current, err := fingerprint.File(mirror.Abs(root, relPath))
		if err != nil {
			return nil, fmt.Errorf("planning: fingerprinting %s: %w", relPath, err)
		}

		stored, tracked := hashes.Get(relPath)

		entry := PlanEntry{Path: relPath, Ref: ref}

		switch {
		case !tracked:
			entry.Change = Added
		case stored == current:
			entry.Change = Unchanged
		default:
			entry.Change = Modified
		}

		// Read-only paths never produce push work.
		if readOnlyRef(ref) && entry.Change != Unchanged {
			entry.Change = Ignored
		}

		if id, ok := nodeID(identity, ref); ok && id != "" {
			entry.HasNode = true
		}

		plan.Entries = append(plan.Entries, entry)
	}

	for _, relPath := range hashes.Paths() {
		if seen[relPath] || !underScope(relPath, scope) {
			continue
		}

		ref, _ := mirror.Classify(relPath)

		entry := PlanEntry{Path: relPath, Ref: ref, Missing: true, Change: Deleted}
		if readOnlyRef(ref) {
			entry.Change = Ignored
		}

		if id, ok := nodeID(identity, ref); ok && id != "" {
			entry.HasNode = true
		}

		plan.Entries = append(plan.Entries, entry)
	}

	sort.Slice(plan.Entries, func(i, j int) bool { return plan.Entries[i].Path < plan.Entries[j].Path })

	return plan, nil
}

// nodeID resolves a ref's identity-map entry. ok mirrors the store's
// node-exists answer; a pending node answers ok with an empty id.
func nodeID(identity *state.IdentityMap, ref mirror.EntityRef) (string, bool) {
	switch ref.Kind {
	case mirror.KindProject:
		return identity.ProjectID(ref.Project)
	case mirror.KindAgent:
		return identity.AgentID(ref.Project, ref.Agent)
	case mirror.KindFlow:
		return identity.FlowID(ref.Project, ref.Agent, ref.Flow)
	case mirror.KindSkill:
		return identity.SkillID(ref.Project, ref.Agent, ref.Flow, ref.Skill)
	case mirror.KindPersona:
		return identity.PersonaID(ref.Name)
	default:
		return "", false
	}
}

// readOnlyRef reports whether a path is read-only from the push engine's
// point of view: knowledge-base articles, and skill files whose runner
// type is unknown locally.
func readOnlyRef(ref mirror.EntityRef) bool {
	if ref.Kind == mirror.KindArticle {
		return true
	}

	return ref.Kind == mirror.KindSkill && ref.Runner == ""
}

// underScope reports whether relPath belongs to the given project scope.
// An empty scope admits everything.
func underScope(relPath, scope string) bool {
	if scope == "" {
		return true
	}

	return strings.HasPrefix(relPath, mirror.ProjectDir(scope)+"/")
}
