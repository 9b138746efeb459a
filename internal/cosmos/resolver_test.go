package cosmos_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/gamesearch/internal/cosmos"
)

// fakeQuerier records issued queries and answers them via respond.
type fakeQuerier struct {
	queries []string
	respond func(query string) error
}

func (f *fakeQuerier) Query(ctx context.Context, container, query string, params []azcosmos.QueryParameter) ([][]byte, error) {
	f.queries = append(f.queries, query)
	if f.respond != nil {
		if err := f.respond(query); err != nil {
			return nil, err
		}
	}
	return [][]byte{[]byte(`{"id":"1"}`)}, nil
}

var errBadSignature = errors.New("Failed to invoke function: VectorDistance called with an incorrect number of arguments")

func probeVec() []float32 { return []float32{0.1, 0.2, 0.3} }

func TestResolvePrefersThreeArg(t *testing.T) {
	q := &fakeQuerier{}
	r := cosmos.NewResolver(nil)

	form := r.Resolve(context.Background(), q, "db", "reviews", "c.embedding", "cosine", probeVec(), cosmos.Auto)
	assert.Equal(t, cosmos.ThreeArg, form)

	require.Len(t, q.queries, 1, "a successful three-arg probe needs no second query")
	assert.Contains(t, q.queries[0], `"distanceFunction": "cosine"`)
	assert.Contains(t, q.queries[0], "SELECT TOP 1")
}

func TestResolveDemotesOnSignatureError(t *testing.T) {
	q := &fakeQuerier{respond: func(query string) error {
		if strings.Contains(query, "distanceFunction") {
			return errBadSignature
		}
		return nil
	}}
	r := cosmos.NewResolver(nil)

	form := r.Resolve(context.Background(), q, "db", "reviews", "c.embedding", "cosine", probeVec(), cosmos.Auto)
	assert.Equal(t, cosmos.TwoArg, form)

	require.Len(t, q.queries, 2, "signature rejection triggers the two-arg probe")
	assert.NotContains(t, q.queries[1], "distanceFunction")
}

func TestResolveDefaultsTwoArgOnOtherFailures(t *testing.T) {
	q := &fakeQuerier{respond: func(string) error {
		return errors.New("connection reset")
	}}
	r := cosmos.NewResolver(nil)

	form := r.Resolve(context.Background(), q, "db", "reviews", "c.embedding", "cosine", probeVec(), cosmos.Auto)
	assert.Equal(t, cosmos.TwoArg, form, "non-signature failures fall back to the safe default")
	assert.Len(t, q.queries, 1, "a non-signature failure does not trigger the second probe")
}

func TestResolveCachesPerKey(t *testing.T) {
	q := &fakeQuerier{}
	r := cosmos.NewResolver(nil)

	first := r.Resolve(context.Background(), q, "db", "reviews", "c.embedding", "cosine", probeVec(), cosmos.Auto)
	second := r.Resolve(context.Background(), q, "db", "reviews", "c.embedding", "cosine", probeVec(), cosmos.Auto)

	assert.Equal(t, first, second)
	assert.Len(t, q.queries, 1, "the second resolve must be served from cache without any store call")
}

func TestResolveKeyIncludesMetric(t *testing.T) {
	q := &fakeQuerier{}
	r := cosmos.NewResolver(nil)

	r.Resolve(context.Background(), q, "db", "reviews", "c.embedding", "cosine", probeVec(), cosmos.Auto)
	r.Resolve(context.Background(), q, "db", "reviews", "c.embedding", "euclidean", probeVec(), cosmos.Auto)

	assert.Len(t, q.queries, 2, "a different metric is a different cache key")
}

func TestResolveKeyNormalizesMetricCase(t *testing.T) {
	q := &fakeQuerier{}
	r := cosmos.NewResolver(nil)

	r.Resolve(context.Background(), q, "db", "reviews", "c.embedding", "Cosine", probeVec(), cosmos.Auto)
	r.Resolve(context.Background(), q, "db", "reviews", "c.embedding", "cosine", probeVec(), cosmos.Auto)

	assert.Len(t, q.queries, 1, "metric casing must not split the cache key")
}

func TestResolvePinnedSkipsProbe(t *testing.T) {
	q := &fakeQuerier{}
	r := cosmos.NewResolver(nil)

	form := r.Resolve(context.Background(), q, "db", "reviews", "c.embedding", "cosine", probeVec(), cosmos.PinThreeArg)
	assert.Equal(t, cosmos.ThreeArg, form)
	assert.Empty(t, q.queries, "a pinned preference is cached without probing")

	// Pinned answers are cached like probed ones.
	again := r.Resolve(context.Background(), q, "db", "reviews", "c.embedding", "cosine", probeVec(), cosmos.Auto)
	assert.Equal(t, cosmos.ThreeArg, again)
	assert.Empty(t, q.queries)
}

func TestDistanceExprForms(t *testing.T) {
	assert.Equal(t, "VectorDistance(c.embedding, @qv)",
		cosmos.TwoArg.DistanceExpr("c.embedding", "@qv", "cosine"))
	assert.Equal(t, `VectorDistance(c.embedding, @qv, {"distanceFunction": "cosine"})`,
		cosmos.ThreeArg.DistanceExpr("c.embedding", "@qv", "cosine"))
}

func TestParsePreference(t *testing.T) {
	assert.Equal(t, cosmos.PinTwoArg, cosmos.ParsePreference("two"))
	assert.Equal(t, cosmos.PinThreeArg, cosmos.ParsePreference("THREE"))
	assert.Equal(t, cosmos.Auto, cosmos.ParsePreference(""))
	assert.Equal(t, cosmos.Auto, cosmos.ParsePreference("whatever"))
}
