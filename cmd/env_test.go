//go:build !integration

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/campaign-cli/internal/config"
	"github.com/sells-group/campaign-cli/internal/model"
	"github.com/sells-group/campaign-cli/internal/monitoring"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "test.db"),
		},
		Pipeline: config.PipelineConfig{
			JobTimeoutSecs:   30,
			TickIntervalSecs: 1,
			DefaultCountries: []string{"US"},
			MaxConcurrency:   2,
		},
	}
}

func TestInitStore_SQLite(t *testing.T) {
	cfg = testConfig(t)

	st, err := initStore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st)
	defer st.Close() //nolint:errcheck
}

func TestInitStore_SQLiteDefaultDSN(t *testing.T) {
	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(origDir) //nolint:errcheck

	cfg = &config.Config{Store: config.StoreConfig{Driver: "sqlite"}}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	_, err = os.Stat(filepath.Join(tmpDir, "campaigns.db"))
	assert.NoError(t, err)
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "mysql"}}

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestInitStore_PostgresBadURL(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "postgres", DatabaseURL: "://not-a-url"}}

	_, err := initStore(context.Background())
	assert.Error(t, err)
}

func TestInitMetaClient_NoToken(t *testing.T) {
	cfg = testConfig(t)
	assert.Nil(t, initMetaClient())

	cfg.Meta.AccessToken = "token"
	assert.NotNil(t, initMetaClient())
}

func TestInitGenerator_NoKey(t *testing.T) {
	cfg = testConfig(t)
	assert.Nil(t, initGenerator())

	cfg.Anthropic = config.AnthropicConfig{Key: "sk-test", Model: "claude-test", MaxTokens: 1024}
	assert.NotNil(t, initGenerator())
}

func TestInitCampaign_ExecutesWithFallbacks(t *testing.T) {
	cfg = testConfig(t)

	env, err := initCampaign(context.Background())
	require.NoError(t, err)
	defer env.Close()

	job, err := env.Orchestrator.Execute(context.Background(), model.GenerationRequest{
		ProductURL: "https://www.example.com/lamp",
		Objective:  "SALES",
		Budget:     700,
		Approach:   model.ApproachDiscoveryFirst,
		Analysis:   &model.SemanticAnalysis{Persona: "home office", Keywords: []string{"desk lamp"}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.Result)
	assert.Equal(t, "example.com - SALES", job.Result.Name)
	assert.Len(t, job.Result.AdSets, 2)

	draft, err := env.Store.GetDraftByJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DraftStatusReady, draft.Status)

	snap, err := monitoring.NewCollector(env.Store, 0).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.JobsCompleted)
	assert.Positive(t, snap.Creatives)
	assert.Equal(t, snap.Creatives, snap.FallbackCreatives)
}
