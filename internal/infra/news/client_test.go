package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

var sample = &amendments.Amendment{
	Number:    "0001",
	Author:    amendments.Author{Name: "Dep. Fulano"},
	Recipient: amendments.Recipient{Name: "Cuiabá"},
}

func TestQuery(t *testing.T) {
	assert.Equal(t, "0001 Dep. Fulano Cuiabá", Query(sample))
	assert.Equal(t, "0002", Query(&amendments.Amendment{Number: "0002"}))
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "0001 Dep. Fulano Cuiabá", r.URL.Query().Get("q"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"articles":[
			{"title":"Deputado destina 13 milhões","url":"https://g1.example/a","source":"G1","published_at":"2025-01-20"},
			{"title":"","url":""},
			{"title":"Obra começa","url":"https://example/b","published_at":"2025-02-01T10:00:00Z"},
			{"title":"extra","url":"https://example/c"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second, Limit: 2})
	items, err := c.Search(context.Background(), sample)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "G1", items[0].Source)
	require.NotNil(t, items[0].PublishedAt)
	assert.Equal(t, 20, items[0].PublishedAt.Day())
	assert.Equal(t, "https://example/b", items[1].URL)
}

func TestSearch_BareList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"title":"a","url":"https://example/a"}]`))
	}))
	defer srv.Close()

	items, err := NewClient(Config{BaseURL: srv.URL}).Search(context.Background(), sample)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestSearch_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).Search(context.Background(), sample)
	assert.ErrorIs(t, err, amendments.ErrEnrichmentUnavailable)
}
