package sync

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindleworks/spindle-go/internal/api"
	"github.com/spindleworks/spindle-go/internal/auth"
	"github.com/spindleworks/spindle-go/internal/state"
	"github.com/spindleworks/spindle-go/internal/tenant"
	"github.com/spindleworks/spindle-go/testutil"
)

// testEnv wires a real engine — real auth manager, real API client, real
// stores — against an in-process fake platform server.
type testEnv struct {
	fake     *testutil.FakeSpindle
	engine   *Engine
	root     string
	paths    state.Paths
	hashes   *state.HashStore
	identity *state.IdentityMap
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fake := testutil.NewFakeSpindle()
	t.Cleanup(fake.Close)

	env := &testEnv{
		fake:  fake,
		root:  t.TempDir(),
		paths: state.NewPaths(t.TempDir(), "acme"),
	}
	env.reload(t)

	return env
}

// reload rebuilds the engine from persisted state, the way a fresh CLI
// invocation would.
func (env *testEnv) reload(t *testing.T) {
	t.Helper()

	hashes, err := state.LoadHashStore(env.paths.HashFile())
	require.NoError(t, err)

	identity, err := state.LoadIdentityMap(env.paths.IdentityFile())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ten := tenant.Tenant{Idn: "acme", APIKey: env.fake.APIKey}
	tokens := auth.NewManager(env.fake.URL(), ten, env.paths.TokenFile(), nil, logger)
	client := api.NewClient(env.fake.URL(), nil, tokens, logger)

	engine, err := NewEngine(EngineConfig{
		Tenant:   ten,
		Client:   client,
		Root:     env.root,
		Hashes:   hashes,
		Identity: identity,
		Logger:   logger,
	})
	require.NoError(t, err)

	env.engine = engine
	env.hashes = hashes
	env.identity = identity
}

func (env *testEnv) abs(relPath string) string {
	return filepath.Join(env.root, filepath.FromSlash(relPath))
}

func (env *testEnv) read(t *testing.T, relPath string) string {
	t.Helper()

	data, err := os.ReadFile(env.abs(relPath))
	require.NoError(t, err)

	return string(data)
}

func (env *testEnv) write(t *testing.T, relPath, content string) {
	t.Helper()

	abs := env.abs(relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func (env *testEnv) remove(t *testing.T, relPath string) {
	t.Helper()

	require.NoError(t, os.RemoveAll(env.abs(relPath)))
}

func (env *testEnv) exists(relPath string) bool {
	_, err := os.Stat(env.abs(relPath))

	return err == nil
}

// seedGraph populates the fake with one project / agent / flow carrying a
// skill, an event and a state field, plus the customer-level sections.
func seedGraph(fake *testutil.FakeSpindle) {
	p := fake.AddProject("support", "Support")
	a := fake.AddAgent(p, "helper", "Helper")
	f := fake.AddFlow(a, "greeting", "Greeting flow")
	fake.AddSkill(f, "greet", "guidance", "gpt-4o", "Say hello politely.\n")
	fake.AddEvent(f, "user_joined", "User joined")
	fake.AddStateField(f, "mood", "string", "neutral")
	fake.AddPersona("friendly", "Friendly voice")
	fake.AddAttribute("region", "emea")
	fake.AddArticle("returns", "Returns policy", "Items can be returned within 30 days.\n")
}

func TestNewEngine_Validation(t *testing.T) {
	fake := testutil.NewFakeSpindle()
	defer fake.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ten := tenant.Tenant{Idn: "acme", APIKey: fake.APIKey}
	tokens := auth.NewManager(fake.URL(), ten, filepath.Join(t.TempDir(), "token.json"), nil, logger)
	client := api.NewClient(fake.URL(), nil, tokens, logger)

	hashes, err := state.LoadHashStore(filepath.Join(t.TempDir(), "hashes.json"))
	require.NoError(t, err)

	identity, err := state.LoadIdentityMap(filepath.Join(t.TempDir(), "identity.json"))
	require.NoError(t, err)

	_, err = NewEngine(EngineConfig{Client: client, Hashes: hashes, Identity: identity})
	require.Error(t, err)

	_, err = NewEngine(EngineConfig{Root: t.TempDir(), Hashes: hashes, Identity: identity})
	require.Error(t, err)

	_, err = NewEngine(EngineConfig{Root: t.TempDir(), Client: client})
	require.Error(t, err)

	engine, err := NewEngine(EngineConfig{
		Root:     t.TempDir(),
		Client:   client,
		Hashes:   hashes,
		Identity: identity,
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultConcurrency, engine.concurrency)
}

func TestStatus_EmptyTreeIsClean(t *testing.T) {
	env := newTestEnv(t)

	plan, err := env.engine.Status("")
	require.NoError(t, err)
	assert.True(t, plan.Clean())
	assert.Empty(t, plan.Entries)
}

func TestRunReport_Status(t *testing.T) {
	report := newRunReport("acme", OpPull, time.Now())
	assert.Equal(t, StatusOK, report.Status())
	assert.False(t, report.HasErrors())

	report.addError(EntityError{Kind: "flow", Idn: "greeting", Op: "list", Err: assert.AnError})
	assert.Equal(t, StatusPartial, report.Status())
	assert.True(t, report.HasErrors())

	report.Failed = true
	assert.Equal(t, StatusFailed, report.Status())
}

func TestEntityError_Formats(t *testing.T) {
	withPath := &EntityError{Kind: "skill", Idn: "greet", Path: "projects/support/helper/greeting/greet.guidance", Op: "update", Err: assert.AnError}
	assert.Contains(t, withPath.Error(), "skill greet")
	assert.Contains(t, withPath.Error(), "greet.guidance")

	collection := &EntityError{Kind: "personas", Op: "list", Err: assert.AnError}
	assert.Equal(t, "personas: list: "+assert.AnError.Error(), collection.Error())
	assert.ErrorIs(t, collection, assert.AnError)
}
