package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/campaign-cli/internal/model"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Build one campaign synchronously and print it as JSON",
	Long:  "Runs the full pipeline for one request, recording it as a job, and prints the final job with its campaign.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("generate"); err != nil {
			return err
		}

		req, err := buildRequest(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := initCampaign(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Orchestrator.Execute(ctx, req)
		if err != nil {
			return eris.Wrap(err, "generate")
		}

		out, _ := cmd.Flags().GetString("out")
		if err := writeJSON(cmd.OutOrStdout(), out, job); err != nil {
			return err
		}
		if job.Status == model.JobStatusFailed {
			return eris.Errorf("generate: job %s failed: %s", job.ID, job.Error)
		}
		return nil
	},
}

// buildRequest loads the optional request file, then applies flag overrides.
func buildRequest(cmd *cobra.Command) (model.GenerationRequest, error) {
	var req model.GenerationRequest

	if path, _ := cmd.Flags().GetString("request"); path != "" {
		r, err := loadRequestFile(path)
		if err != nil {
			return req, err
		}
		req = *r
	}

	if path, _ := cmd.Flags().GetString("strategies"); path != "" {
		strategies, err := loadStrategiesFile(path)
		if err != nil {
			return req, err
		}
		req.Strategies = strategies
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		req.ProductURL, _ = flags.GetString("url")
	}
	if flags.Changed("objective") {
		req.Objective, _ = flags.GetString("objective")
	}
	if flags.Changed("budget") {
		req.Budget, _ = flags.GetFloat64("budget")
	}
	if flags.Changed("approach") {
		a, _ := flags.GetString("approach")
		req.Approach = model.Approach(a)
	}
	if flags.Changed("geo") {
		req.GeoTargets, _ = flags.GetStringSlice("geo")
	}
	if flags.Changed("name") {
		req.CampaignName, _ = flags.GetString("name")
	}
	if flags.Changed("page-id") {
		if req.Brand == nil {
			req.Brand = &model.BrandGuidelines{}
		}
		req.Brand.PageID, _ = flags.GetString("page-id")
	}

	if req.ProductURL == "" {
		return req, eris.New("generate: --url or a request file with product_url is required")
	}
	if req.Budget <= 0 {
		return req, eris.New("generate: budget must be > 0")
	}
	if _, err := model.ParseApproach(string(req.Approach)); err != nil {
		return req, eris.Wrap(err, "generate")
	}
	return req, nil
}

// loadRequestFile decodes a full request from YAML or JSON.
func loadRequestFile(path string) (*model.GenerationRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read request file %s", path)
	}
	var req model.GenerationRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, eris.Wrapf(err, "parse request file %s", path)
	}
	return &req, nil
}

// loadStrategiesFile decodes a list of ad set strategies from YAML or JSON.
// A top-level "strategies" key is also accepted.
func loadStrategiesFile(path string) ([]model.AdSetStrategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read strategies file %s", path)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "parse strategies file %s", path)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind == yaml.MappingNode {
		var wrapped struct {
			Strategies []model.AdSetStrategy `yaml:"strategies"`
		}
		if err := root.Decode(&wrapped); err != nil {
			return nil, eris.Wrapf(err, "parse strategies file %s", path)
		}
		return wrapped.Strategies, nil
	}

	var list []model.AdSetStrategy
	if err := root.Decode(&list); err != nil {
		return nil, eris.Wrapf(err, "parse strategies file %s", path)
	}
	return list, nil
}

// writeJSON writes v indented to path, or to w when path is empty.
func writeJSON(w io.Writer, path string, v any) error {
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create %s", path)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode output")
	}
	return nil
}

func addGenerateFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("request", "", "YAML or JSON file with a full generation request")
	f.String("strategies", "", "YAML or JSON file with ad set strategies")
	f.String("url", "", "product URL")
	f.String("objective", "", "campaign objective (e.g. SALES, OUTCOME_TRAFFIC)")
	f.Float64("budget", 0, "weekly budget in USD")
	f.String("approach", "", "RICH_DATA, HYBRID or DISCOVERY_FIRST (default HYBRID)")
	f.StringSlice("geo", nil, "country codes to target")
	f.String("name", "", "campaign name override")
	f.String("page-id", "", "page that publishes the ads")
	f.String("out", "", "write JSON to this file instead of stdout")
}

func init() {
	addGenerateFlags(generateCmd)
	rootCmd.AddCommand(generateCmd)
}
