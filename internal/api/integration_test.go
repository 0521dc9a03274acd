package api

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/campaign-cli/internal/audience"
	"github.com/sells-group/campaign-cli/internal/budget"
	"github.com/sells-group/campaign-cli/internal/config"
	"github.com/sells-group/campaign-cli/internal/creative"
	"github.com/sells-group/campaign-cli/internal/interest"
	"github.com/sells-group/campaign-cli/internal/jobs"
	"github.com/sells-group/campaign-cli/internal/model"
	"github.com/sells-group/campaign-cli/internal/pipeline"
	"github.com/sells-group/campaign-cli/internal/store"
)

func TestJobRoundTrip_SQLite(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	builder := pipeline.New(
		audience.NewConstructor(interest.NewResolver(nil, 2), []string{"US"}),
		creative.NewEngine(nil),
		budget.NewOptimizer(config.BudgetConfig{}),
		2,
	)
	orch := jobs.New(st, builder, jobs.Options{Timeout: 10 * time.Second, TickInterval: 10 * time.Millisecond})
	h := NewRouter(orch, nil)

	rec := do(t, h, http.MethodPost, "/jobs", `{
		"product_url": "https://shop.example.com/desk",
		"objective": "LINK_CLICKS",
		"budget": 420,
		"approach": "DISCOVERY_FIRST",
		"analysis": {"persona": "remote workers", "keywords": ["standing desk", "ergonomics"]}
	}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	created := decode[createJobResponse](t, rec)
	require.NotEmpty(t, created.JobID)

	orch.Wait()

	rec = do(t, h, http.MethodGet, "/jobs/"+created.JobID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[model.JobView](t, rec)
	assert.Equal(t, model.JobStatusCompleted, view.Status)
	assert.Equal(t, 100, view.Progress)
	require.NotNil(t, view.Result)
	assert.Equal(t, "OUTCOME_TRAFFIC", view.Result.Payload.Objective)
	assert.Len(t, view.Result.AdSets, 2)

	draft, err := st.GetDraftByJob(context.Background(), created.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.DraftStatusReady, draft.Status)
}
