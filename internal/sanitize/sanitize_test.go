package sanitize_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/gamesearch/internal/sanitize"
)

func TestDocumentStripsIdentityFields(t *testing.T) {
	in := json.RawMessage(`{"recommendationid":"12345","review":"Great game!","author":{"steamid":"7656","profile_url":"http://x"},"username":"u","votes_up":10}`)

	out := sanitize.Document(in)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "12345", doc["recommendationid"])
	assert.Equal(t, "Great game!", doc["review"])
	assert.Equal(t, float64(10), doc["votes_up"])
	assert.NotContains(t, doc, "author", "author object must be removed entirely")
	assert.NotContains(t, doc, "username")
}

func TestDocumentIsCaseInsensitive(t *testing.T) {
	in := json.RawMessage(`{"Author":"x","USERNAME":"y","SteamID":"z","review":"ok"}`)

	out := sanitize.Document(in)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Len(t, doc, 1)
	assert.Equal(t, "ok", doc["review"])
}

func TestDocumentStripsOneLevelOfNesting(t *testing.T) {
	in := json.RawMessage(`{"meta":{"steamid":"7656","playtime":12},"deep":{"inner":{"steamid":"kept"}}}`)

	out := sanitize.Document(in)

	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.NotContains(t, doc["meta"], "steamid", "identity keys one level inside objects are removed")
	assert.Equal(t, float64(12), doc["meta"]["playtime"])

	// Only one level of nesting is scrubbed; the transform is structural,
	// not a deep scan.
	inner, ok := doc["deep"]["inner"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "kept", inner["steamid"])
}

func TestDocumentDoesNotTouchTextFields(t *testing.T) {
	in := json.RawMessage(`{"review":"posted by steamid 7656","review_url":"https://example.com/user/7656"}`)

	out := sanitize.Document(in)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "posted by steamid 7656", doc["review"], "text fields pass through even with PII-looking substrings")
	assert.Equal(t, "https://example.com/user/7656", doc["review_url"])
}

func TestDocumentPreservesFieldOrder(t *testing.T) {
	in := json.RawMessage(`{"zeta":1,"author":"x","alpha":2,"mid":3}`)

	out := sanitize.Document(in)
	assert.JSONEq(t, `{"zeta":1,"alpha":2,"mid":3}`, string(out))

	// Byte-level order check: zeta must still come before alpha.
	assert.Equal(t, `{"zeta":1,"alpha":2,"mid":3}`, string(out), "surviving fields keep their original order")
}

func TestDocumentScrubsNestedObjectsInPlace(t *testing.T) {
	in := json.RawMessage(`{"b":1,"meta":{"steamid":"x","keep":2},"a":3}`)

	out := sanitize.Document(in)

	// Byte-exact: the nested identity key is gone and both levels keep
	// their original field order.
	assert.Equal(t, `{"b":1,"meta":{"keep":2},"a":3}`, string(out))
}

func TestDocumentPassesNonObjectsThrough(t *testing.T) {
	cases := []string{`[1,2,3]`, `"just a string"`, `42`, `null`}
	for _, c := range cases {
		out := sanitize.Document(json.RawMessage(c))
		assert.Equal(t, c, string(out), "non-object payloads pass through unmodified")
	}
}
