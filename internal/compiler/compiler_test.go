package compiler_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/parley/internal/compiler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const supportWorkflow = `
key: support
domain: support
entry: triage
nodes:
  triage:
    responder: triage-agent
    transitions:
      - target: billing
        condition: "intent == 'billing'"
        priority: 10
    default: general
  billing:
    responder: billing-agent
    end: true
  general:
    responder: general-agent
    end: true
`

func TestCompile_SingleWorkflow(t *testing.T) {
	workflows, err := compiler.Compile([]byte(supportWorkflow))
	require.NoError(t, err)
	require.Len(t, workflows, 1)

	w := workflows[0]
	assert.Equal(t, "support", w.Key)
	assert.Equal(t, "support", w.Domain)
	assert.Equal(t, "triage", w.Entry)
	require.Len(t, w.Nodes, 3)

	triage := w.Node("triage")
	require.NotNil(t, triage)
	assert.Equal(t, "triage", triage.Key, "node key is filled from the map key")
	require.Len(t, triage.Transitions, 1)
	assert.Equal(t, 10, triage.Transitions[0].Priority)
	assert.Equal(t, "general", triage.Default)
	assert.True(t, w.Node("billing").Terminal())
}

func TestCompile_WorkflowList(t *testing.T) {
	doc := `
workflows:
  - key: a
    entry: start
    nodes:
      start: {responder: agent-a, end: true}
  - key: b
    entry: start
    nodes:
      start: {sub_workflow: a, end: true}
`
	workflows, err := compiler.Compile([]byte(doc))
	require.NoError(t, err)
	require.Len(t, workflows, 2)
	assert.Equal(t, "a", workflows[0].Key)
	assert.Equal(t, "a", workflows[1].Node("start").SubWorkflow)
}

func TestCompile_Errors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "unknown field",
			doc:  "key: x\nentry: s\nnoodles: {}\n",
			want: "failed to decode",
		},
		{
			name: "missing entry",
			doc:  "key: x\nnodes:\n  s: {responder: r, end: true}\n",
			want: "entry is required",
		},
		{
			name: "entry node absent",
			doc:  "key: x\nentry: nope\nnodes:\n  s: {responder: r, end: true}\n",
			want: "does not exist",
		},
		{
			name: "dangling transition target",
			doc: `
key: x
entry: s
nodes:
  s:
    responder: r
    transitions:
      - target: ghost
`,
			want: "target \"ghost\" does not exist",
		},
		{
			name: "malformed condition",
			doc: `
key: x
entry: s
nodes:
  s:
    responder: r
    transitions:
      - target: s
        condition: "intent = 'oops'"
`,
			want: "bad condition",
		},
		{
			name: "responder and sub_workflow together",
			doc: `
key: x
entry: s
nodes:
  s: {responder: r, sub_workflow: other, end: true}
`,
			want: "mutually exclusive",
		},
		{
			name: "node with nothing to do",
			doc:  "key: x\nentry: s\nnodes:\n  s: {}\n",
			want: "needs a responder",
		},
		{
			name: "empty document",
			doc:  "",
			want: "empty workflow document",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := compiler.Compile([]byte(tc.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestCompileDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "support.yaml"), []byte(supportWorkflow), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a workflow"), 0o644))

	workflows, err := compiler.CompileDir(dir)
	require.NoError(t, err)
	require.Len(t, workflows, 1)
	assert.Equal(t, "support", workflows[0].Key)

	t.Run("duplicate keys across files", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "dup.yml"), []byte(supportWorkflow), 0o644))
		_, err := compiler.CompileDir(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already defined")
	})
}

func TestDecodeParams(t *testing.T) {
	type retrieverParams struct {
		Collection string  `yaml:"collection"`
		TopK       int     `yaml:"top_k"`
		MinScore   float64 `yaml:"min_score"`
	}

	t.Run("weakly typed input", func(t *testing.T) {
		var p retrieverParams
		err := compiler.DecodeParams(map[string]any{
			"collection": "products",
			"top_k":      "5", // string from env-substituted YAML
			"min_score":  0.25,
		}, &p)
		require.NoError(t, err)
		assert.Equal(t, retrieverParams{Collection: "products", TopK: 5, MinScore: 0.25}, p)
	})

	t.Run("unused keys are rejected", func(t *testing.T) {
		var p retrieverParams
		err := compiler.DecodeParams(map[string]any{"collektion": "typo"}, &p)
		assert.Error(t, err)
	})
}
