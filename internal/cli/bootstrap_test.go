package cli_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/cli"
	"github.com/aretw0/parley/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixtures(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()

	patternsPath := filepath.Join(dir, "patterns.yaml")
	require.NoError(t, os.WriteFile(patternsPath, []byte(`
domains:
  - domain: commerce
    keywords: [laptop, order]
  - domain: credit
    keywords: [balance]
`), 0o644))

	workflowDir := filepath.Join(dir, "workflows")
	require.NoError(t, os.Mkdir(workflowDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workflowDir, "commerce.yaml"), []byte(`
key: commerce-flow
domain: commerce
entry: answer
nodes:
  answer:
    responder: commerce-static
    params:
      reply: "We stock plenty of laptops."
    end: true
`), 0o644))

	cfg := config.Default()
	cfg.Paths.Patterns = patternsPath
	cfg.Paths.Workflows = workflowDir
	return cfg
}

func TestBuild_MemoryBackend(t *testing.T) {
	app, err := cli.Build(writeFixtures(t))
	require.NoError(t, err)
	defer app.Close()

	require.Len(t, app.Workflows, 1)

	resp, err := app.Orchestrator.HandleTurn(context.Background(), parley.TurnRequest{
		ConversationID: "c1",
		Message:        "do you sell a laptop",
	})
	require.NoError(t, err)
	assert.Equal(t, "We stock plenty of laptops.", resp.Reply)
	assert.Equal(t, "commerce", resp.Domain)
}

func TestBuild_MissingPatternFile(t *testing.T) {
	cfg := writeFixtures(t)
	cfg.Paths.Patterns = filepath.Join(t.TempDir(), "nope.yaml")
	_, err := cli.Build(cfg)
	assert.Error(t, err)
}

func TestBuild_UnknownResponderFails(t *testing.T) {
	cfg := writeFixtures(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Paths.Workflows, "broken.yaml"), []byte(`
key: broken
entry: start
nodes:
  start:
    responder: nobody-registered
    end: true
`), 0o644))

	_, err := cli.Build(cfg)
	assert.Error(t, err)
}

func TestBuild_FileBackendSurvivesRebuild(t *testing.T) {
	cfg := writeFixtures(t)
	cfg.File.Dir = filepath.Join(t.TempDir(), "conversations")

	app, err := cli.Build(cfg)
	require.NoError(t, err)

	_, err = app.Orchestrator.HandleTurn(context.Background(), parley.TurnRequest{
		ConversationID: "c-file",
		Message:        "do you sell a laptop",
	})
	require.NoError(t, err)
	require.NoError(t, app.Close())

	// A fresh build over the same directory sees the conversation.
	app2, err := cli.Build(cfg)
	require.NoError(t, err)
	defer app2.Close()

	state, err := app2.Orchestrator.Sessions().Load(context.Background(), "c-file")
	require.NoError(t, err)
	assert.Equal(t, "commerce", state.ActiveDomain)
	assert.NotEmpty(t, state.Messages)
}

func TestBuild_PrivacyMiddleware(t *testing.T) {
	cfg := writeFixtures(t)
	cfg.File.Dir = filepath.Join(t.TempDir(), "conversations")
	cfg.Privacy.PIIValuePatterns = []string{`\blaptop\b`}

	app, err := cli.Build(cfg)
	require.NoError(t, err)
	defer app.Close()

	_, err = app.Orchestrator.HandleTurn(context.Background(), parley.TurnRequest{
		ConversationID: "c-pii",
		Message:        "do you sell a laptop",
	})
	require.NoError(t, err)

	state, err := app.Orchestrator.Sessions().Load(context.Background(), "c-pii")
	require.NoError(t, err)
	assert.Equal(t, "do you sell a ***", state.Messages[0].Content)
}
