package cosmos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
)

// Form is the call signature the store accepts for its distance function.
type Form int

const (
	// TwoArg is VectorDistance(field, vector). The safe default.
	TwoArg Form = iota
	// ThreeArg is VectorDistance(field, vector, spec) with an explicit
	// distance function.
	ThreeArg
)

func (f Form) String() string {
	if f == ThreeArg {
		return "three-arg"
	}
	return "two-arg"
}

// DistanceExpr renders the VectorDistance call for a document field path and
// a query parameter name under this form.
func (f Form) DistanceExpr(field, param, metric string) string {
	if f == ThreeArg {
		return fmt.Sprintf(`VectorDistance(%s, %s, {"distanceFunction": "%s"})`, field, param, metric)
	}
	return fmt.Sprintf("VectorDistance(%s, %s)", field, param)
}

// Preference optionally pins the form, skipping the probe entirely.
type Preference int

const (
	Auto Preference = iota
	PinTwoArg
	PinThreeArg
)

// ParsePreference maps the config string to a Preference. Unknown values
// mean Auto.
func ParsePreference(s string) Preference {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "two", "2", "twoarg":
		return PinTwoArg
	case "three", "3", "threearg":
		return PinThreeArg
	}
	return Auto
}

type cacheKey struct {
	database  string
	container string
	metric    string
}

// Resolver discovers which distance form a container accepts and caches the
// answer for the process lifetime. Safe for concurrent use; concurrent
// resolvers for the same key converge to the same answer.
type Resolver struct {
	logger *slog.Logger

	mu    sync.Mutex
	cache map[cacheKey]Form
}

// NewResolver creates an empty resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger, cache: make(map[cacheKey]Form)}
}

// Resolve returns the distance form for (database, container, metric). A
// pinned preference is cached and returned without probing. Otherwise the
// three-argument form is probed first with a cheap top-1 query; a signature
// rejection demotes to the two-argument probe, and if both probes fail for
// other reasons the resolver defaults to TwoArg. At most one probe sequence
// is ever issued per key.
func (r *Resolver) Resolve(ctx context.Context, q Querier, database, container, field, metric string, probe []float32, pref Preference) Form {
	// The metric is case-insensitive on the store side, so the cache key
	// normalizes it to avoid probing "Cosine" and "cosine" separately.
	key := cacheKey{database: database, container: container, metric: strings.ToLower(metric)}

	r.mu.Lock()
	if form, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return form
	}
	r.mu.Unlock()

	var form Form
	switch pref {
	case PinTwoArg:
		form = TwoArg
	case PinThreeArg:
		form = ThreeArg
	default:
		form = r.probe(ctx, q, container, field, metric, probe)
	}

	r.mu.Lock()
	r.cache[key] = form
	r.mu.Unlock()

	r.logger.Debug("distance form resolved", "container", container, "metric", metric, "form", form.String())
	return form
}

func (r *Resolver) probe(ctx context.Context, q Querier, container, field, metric string, probe []float32) Form {
	params := []azcosmos.QueryParameter{{Name: "@probe", Value: probe}}

	threeArgQuery := "SELECT TOP 1 c.id FROM c ORDER BY " + ThreeArg.DistanceExpr(field, "@probe", metric)
	_, err := q.Query(ctx, container, threeArgQuery, params)
	if err == nil {
		return ThreeArg
	}
	if !unsupportedSignature(err) {
		r.logger.Warn("three-arg probe failed, defaulting to two-arg", "container", container, "error", err)
		return TwoArg
	}

	twoArgQuery := "SELECT TOP 1 c.id FROM c ORDER BY " + TwoArg.DistanceExpr(field, "@probe", metric)
	if _, err := q.Query(ctx, container, twoArgQuery, params); err != nil {
		r.logger.Warn("two-arg probe failed, defaulting to two-arg", "container", container, "error", err)
	}
	return TwoArg
}

// unsupportedSignature reports whether the store rejected the query because
// of the VectorDistance argument count, as opposed to being unreachable or
// otherwise unhappy.
func unsupportedSignature(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		if respErr.StatusCode != http.StatusBadRequest && respErr.StatusCode != http.StatusInternalServerError {
			return false
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "vectordistance") &&
		(strings.Contains(msg, "argument") || strings.Contains(msg, "signature") || strings.Contains(msg, "syntax"))
}
