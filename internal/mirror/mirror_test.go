package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		path string
		want EntityRef
		ok   bool
	}{
		{
			name: "project metadata",
			path: "projects/support/project.yaml",
			want: EntityRef{Kind: KindProject, Project: "support"},
			ok:   true,
		},
		{
			name: "agent metadata",
			path: "projects/support/helper/agent.yaml",
			want: EntityRef{Kind: KindAgent, Project: "support", Agent: "helper"},
			ok:   true,
		},
		{
			name: "flow metadata",
			path: "projects/support/helper/greeting/flow.yaml",
			want: EntityRef{Kind: KindFlow, Project: "support", Agent: "helper", Flow: "greeting"},
			ok:   true,
		},
		{
			name: "guidance skill",
			path: "projects/support/helper/greeting/greet.guidance",
			want: EntityRef{
				Kind: KindSkill, Project: "support", Agent: "helper",
				Flow: "greeting", Skill: "greet", Runner: RunnerGuidance,
			},
			ok: true,
		},
		{
			name: "jinja skill",
			path: "projects/support/helper/greeting/render.jinja",
			want: EntityRef{
				Kind: KindSkill, Project: "support", Agent: "helper",
				Flow: "greeting", Skill: "render", Runner: RunnerJinja,
			},
			ok: true,
		},
		{
			name: "unknown runner skill",
			path: "projects/support/helper/greeting/odd.txt",
			want: EntityRef{
				Kind: KindSkill, Project: "support", Agent: "helper",
				Flow: "greeting", Skill: "odd", Runner: "",
			},
			ok: true,
		},
		{
			name: "persona",
			path: "personas/warm.yaml",
			want: EntityRef{Kind: KindPersona, Name: "warm"},
			ok:   true,
		},
		{
			name: "attributes",
			path: "attributes.yaml",
			want: EntityRef{Kind: KindAttributes},
			ok:   true,
		},
		{
			name: "article",
			path: "akb/refunds.yaml",
			want: EntityRef{Kind: KindArticle, Name: "refunds"},
			ok:   true,
		},
		{
			name: "idns are normalized",
			path: "projects/Support/Helper/agent.yaml",
			want: EntityRef{Kind: KindAgent, Project: "support", Agent: "helper"},
			ok:   true,
		},
		{name: "stray file at root", path: "notes.md", ok: false},
		{name: "stray yaml at project level", path: "projects/support/notes.yaml", ok: false},
		{name: "unknown extension in flow dir", path: "projects/p/a/f/skill.backup", ok: false},
		{name: "persona without yaml ext", path: "personas/warm.txt", ok: false},
		{name: "too deep", path: "projects/p/a/f/extra/file.yaml", ok: false},
		{name: "bare projects entry", path: "projects/orphan.yaml", ok: false},
		{name: "traversal segment rejected", path: "projects/../escape/project.yaml", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, ok := Classify(tt.path)
			require.Equal(t, tt.ok, ok)

			if tt.ok {
				assert.Equal(t, tt.want, ref)
			}
		})
	}
}

func TestClassify_RoundTripsPathBuilders(t *testing.T) {
	tests := []struct {
		path string
		kind EntityKind
	}{
		{ProjectMetaPath("support"), KindProject},
		{AgentMetaPath("support", "helper"), KindAgent},
		{FlowMetaPath("support", "helper", "greeting"), KindFlow},
		{SkillPath("support", "helper", "greeting", "greet", RunnerGuidance), KindSkill},
		{PersonaPath("warm"), KindPersona},
		{ArticlePath("refunds"), KindArticle},
		{AttributesFile, KindAttributes},
	}

	for _, tt := range tests {
		ref, ok := Classify(tt.path)
		require.True(t, ok, tt.path)
		assert.Equal(t, tt.kind, ref.Kind, tt.path)
	}
}

func TestExtForRunner(t *testing.T) {
	ext, known := ExtForRunner(RunnerGuidance)
	assert.Equal(t, ".guidance", ext)
	assert.True(t, known)

	ext, known = ExtForRunner(RunnerJinja)
	assert.Equal(t, ".jinja", ext)
	assert.True(t, known)

	ext, known = ExtForRunner("mystery")
	assert.Equal(t, ".txt", ext)
	assert.False(t, known)
}

func TestEntityRef_Idn(t *testing.T) {
	skill := EntityRef{Kind: KindSkill, Project: "p", Agent: "a", Flow: "f", Skill: "greet"}
	assert.Equal(t, "greet", skill.Idn())

	persona := EntityRef{Kind: KindPersona, Name: "warm"}
	assert.Equal(t, "warm", persona.Idn())

	flow := EntityRef{Kind: KindFlow, Project: "p", Agent: "a", Flow: "f"}
	assert.Equal(t, "f", flow.Idn())
}
