// Package interest maps free-text interest keywords to platform targeting IDs.
package interest

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/campaign-cli/internal/model"
	"github.com/sells-group/campaign-cli/pkg/meta"
)

// Placeholder audience bounds used when an interest cannot be looked up.
const (
	PlaceholderMin int64 = 100_000
	PlaceholderMax int64 = 1_000_000

	placeholderPrefix = "PASS_THROUGH_"
)

// Resolver resolves interest names, falling back to placeholders when the
// platform search is unavailable.
type Resolver struct {
	search      meta.Client
	concurrency int
}

// NewResolver creates a Resolver. A nil client puts every lookup in
// pass-through mode.
func NewResolver(search meta.Client, concurrency int) *Resolver {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Resolver{search: search, concurrency: concurrency}
}

// Resolve returns one entry per distinct (case-insensitive) name, in first-seen
// order. Lookup failures never fail the call; they yield placeholders.
func (r *Resolver) Resolve(ctx context.Context, names []string) []model.ResolvedInterest {
	unique := dedupe(names)
	out := make([]model.ResolvedInterest, len(unique))

	if r.search == nil {
		for i, name := range unique {
			out[i] = Placeholder(name)
		}
		return out
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, name := range unique {
		g.Go(func() error {
			out[i] = r.lookup(gctx, name)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Resolver) lookup(ctx context.Context, name string) model.ResolvedInterest {
	hits, err := r.search.SearchInterests(ctx, name)
	if err != nil {
		zap.L().Warn("interest: lookup failed, using placeholder",
			zap.String("interest", name),
			zap.Error(err),
		)
		return Placeholder(name)
	}
	if len(hits) == 0 {
		zap.L().Debug("interest: no match, using placeholder", zap.String("interest", name))
		return Placeholder(name)
	}

	best := hits[0]
	for _, h := range hits {
		if strings.EqualFold(h.Name, name) {
			best = h
			break
		}
	}
	return model.ResolvedInterest{
		Query:       name,
		ID:          best.ID,
		Name:        best.Name,
		AudienceMin: best.AudienceSizeLowerBound,
		AudienceMax: best.AudienceSizeUpperBound,
		Path:        best.Path,
	}
}

// Placeholder builds the pass-through entry for an unresolved name.
func Placeholder(name string) model.ResolvedInterest {
	return model.ResolvedInterest{
		Query:       name,
		ID:          placeholderPrefix + Normalize(name),
		Name:        name,
		AudienceMin: PlaceholderMin,
		AudienceMax: PlaceholderMax,
		Placeholder: true,
	}
}

var nonAlnum = regexp.MustCompile(`[^A-Z0-9]+`)

// Normalize folds a name into an uppercase identifier: accents stripped,
// runs of other characters collapsed to underscores.
func Normalize(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	id := nonAlnum.ReplaceAllString(strings.ToUpper(folded), "_")
	id = strings.Trim(id, "_")
	if id == "" {
		return "UNKNOWN"
	}
	return id
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := strings.ToLower(n)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out
}
