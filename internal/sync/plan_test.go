package sync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindleworks/spindle-go/internal/fingerprint"
	"github.com/spindleworks/spindle-go/internal/state"
)

func newPlanStores(t *testing.T) (*state.HashStore, *state.IdentityMap) {
	t.Helper()

	hashes, err := state.LoadHashStore(filepath.Join(t.TempDir(), "hashes.json"))
	require.NoError(t, err)

	identity, err := state.LoadIdentityMap(filepath.Join(t.TempDir(), "identity.json"))
	require.NoError(t, err)

	return hashes, identity
}

func writePlanFile(t *testing.T, root, relPath, content string) {
	t.Helper()

	abs := filepath.Join(root, filepath.FromSlash(relPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestBuildPlan_ClassifiesAllStates(t *testing.T) {
	root := t.TempDir()
	hashes, identity := newPlanStores(t)

	// Tracked and untouched.
	writePlanFile(t, root, "projects/support/project.yaml", "idn: support\n")
	hashes.Set("projects/support/project.yaml", fingerprint.Bytes([]byte("idn: support\n")))

	// Tracked and edited.
	writePlanFile(t, root, "projects/support/helper/agent.yaml", "idn: helper\ntitle: v2\n")
	hashes.Set("projects/support/helper/agent.yaml", fingerprint.Bytes([]byte("idn: helper\n")))

	// Untracked.
	writePlanFile(t, root, "projects/support/helper/greeting/flow.yaml", "idn: greeting\n")

	// Tracked but gone from disk.
	hashes.Set("projects/support/helper/greeting/gone.guidance", "whatever")

	// Read-only paths: an edited article, an untracked unknown-runner
	// skill file, and a vanished tracked article.
	writePlanFile(t, root, "akb/returns.yaml", "idn: returns\ncontent: edited\n")
	hashes.Set("akb/returns.yaml", fingerprint.Bytes([]byte("idn: returns\n")))
	writePlanFile(t, root, "projects/support/helper/greeting/odd.txt", "raw\n")
	hashes.Set("akb/gone.yaml", "whatever")

	identity.SetProjectID("support", "p1")

	plan, err := BuildPlan(root, "", hashes, identity)
	require.NoError(t, err)

	changes := make(map[string]Change, len(plan.Entries))
	missing := make(map[string]bool, len(plan.Entries))
	hasNode := make(map[string]bool, len(plan.Entries))

	for _, entry := range plan.Entries {
		changes[entry.Path] = entry.Change
		missing[entry.Path] = entry.Missing
		hasNode[entry.Path] = entry.HasNode
	}

	assert.Equal(t, Unchanged, changes["projects/support/project.yaml"])
	assert.Equal(t, Modified, changes["projects/support/helper/agent.yaml"])
	assert.Equal(t, Added, changes["projects/support/helper/greeting/flow.yaml"])
	assert.Equal(t, Deleted, changes["projects/support/helper/greeting/gone.guidance"])
	assert.Equal(t, Ignored, changes["akb/returns.yaml"])
	assert.Equal(t, Ignored, changes["projects/support/helper/greeting/odd.txt"])
	assert.Equal(t, Ignored, changes["akb/gone.yaml"])

	assert.True(t, missing["projects/support/helper/greeting/gone.guidance"])
	assert.True(t, missing["akb/gone.yaml"])
	assert.False(t, missing["akb/returns.yaml"])

	assert.True(t, hasNode["projects/support/project.yaml"])
	assert.False(t, hasNode["projects/support/helper/agent.yaml"])

	// Entries come back path-sorted.
	for i := 1; i < len(plan.Entries); i++ {
		assert.Less(t, plan.Entries[i-1].Path, plan.Entries[i].Path)
	}

	assert.False(t, plan.Clean())
	assert.Equal(t, 1, plan.Count(Added))
	assert.Equal(t, 1, plan.Count(Modified))
	assert.Equal(t, 1, plan.Count(Deleted))
	assert.Equal(t, 3, plan.Count(Ignored))
	assert.Len(t, plan.Pending(), 3, "ignored entries are not push work")
}

func TestBuildPlan_PendingNodeIsNotResolved(t *testing.T) {
	root := t.TempDir()
	hashes, identity := newPlanStores(t)

	writePlanFile(t, root, "projects/support/helper/outreach/flow.yaml", "idn: outreach\n")
	identity.SetFlowID("support", "helper", "outreach", "")

	plan, err := BuildPlan(root, "", hashes, identity)
	require.NoError(t, err)
	require.Len(t, plan.Entries, 1)

	assert.Equal(t, Added, plan.Entries[0].Change)
	assert.False(t, plan.Entries[0].HasNode, "a pending node must not trigger the update-in-place path")
}

func TestBuildPlan_ScopeFilter(t *testing.T) {
	root := t.TempDir()
	hashes, identity := newPlanStores(t)

	writePlanFile(t, root, "projects/support/project.yaml", "idn: support\n")
	writePlanFile(t, root, "projects/billing/project.yaml", "idn: billing\n")
	writePlanFile(t, root, "personas/friendly.yaml", "idn: friendly\n")

	// Tracked-but-missing in the other project: out of scope, so it must
	// not surface as deleted.
	hashes.Set("projects/billing/invoicer/agent.yaml", "whatever")

	plan, err := BuildPlan(root, "support", hashes, identity)
	require.NoError(t, err)

	require.Len(t, plan.Entries, 1)
	assert.Equal(t, "projects/support/project.yaml", plan.Entries[0].Path)
}

func TestChange_String(t *testing.T) {
	cases := map[Change]string{
		Unchanged:  "unchanged",
		Added:      "added",
		Modified:   "modified",
		Deleted:    "deleted",
		Ignored:    "ignored",
		Change(42): "invalid",
	}

	for change, want := range cases {
		assert.Equal(t, want, change.String())
	}
}
