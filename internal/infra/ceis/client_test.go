package ceis

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

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(Config{BaseURL: srv.URL, APIKey: "secret"})
	c.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestSanction_Active(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ceis", r.URL.Path)
		assert.Equal(t, "12345678000195", r.URL.Query().Get("codigoSancionado"))
		assert.Equal(t, "secret", r.Header.Get("chave-api-dados"))
		_, _ = w.Write([]byte(`[
		  {"dataInicioSancao":"01/01/2020","dataFimSancao":"01/01/2021","tipoSancao":{"descricaoResumida":"Suspensão"}},
		  {"dataInicioSancao":"10/05/2024","dataFimSancao":"","tipoSancao":{"descricaoResumida":"Inidoneidade"},
		   "orgaoSancionador":{"nome":"CGU"},"sancionado":{"nome":"Construtora X"}}
		]`))
	})

	sn, err := c.Sanction(context.Background(), "12.345.678/0001-95")
	require.NoError(t, err)
	require.NotNil(t, sn)
	assert.Equal(t, "Inidoneidade", sn.Kind)
	assert.Equal(t, "CGU", sn.Authority)
	assert.Equal(t, "Construtora X", sn.Name)
	require.NotNil(t, sn.StartDate)
	assert.Equal(t, time.May, sn.StartDate.Month())
	assert.Nil(t, sn.EndDate)
}

func TestSanction_OnlyExpired(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"dataInicioSancao":"01/01/2020","dataFimSancao":"01/01/2021"}]`))
	})
	sn, err := c.Sanction(context.Background(), "12345678000195")
	require.NoError(t, err)
	assert.Nil(t, sn)
}

func TestSanction_Errors(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.Sanction(context.Background(), "12345678000195")
	assert.ErrorIs(t, err, amendments.ErrEnrichmentUnavailable)

	_, err = c.Sanction(context.Background(), "123")
	assert.ErrorIs(t, err, amendments.ErrInvalidInput)
}
