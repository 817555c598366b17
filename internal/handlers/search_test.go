package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSearchMissingQuery(t *testing.T) {
	env := newTestEnv(t)
	search := NewSearchHandler(nil, "notes")

	_, c := env.doJSONRequest(http.MethodGet, "/notes/search", nil)
	err := search.Search(c)
	he := requireHTTPError(t, err, http.StatusBadRequest)
	require.Equal(t, "search query is required", he.Message)
}

func TestSearchUnconfigured(t *testing.T) {
	env := newTestEnv(t)
	// No elasticsearch client wired, as when ES_URL is unset.
	search := NewSearchHandler(nil, "notes")

	_, c := env.doJSONRequest(http.MethodGet, "/notes/search?q=amp", nil)
	err := search.Search(c)
	he := requireHTTPError(t, err, http.StatusServiceUnavailable)
	require.Equal(t, "search is not configured", he.Message)
}
