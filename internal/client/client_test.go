package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmFunding(t *testing.T) {
	var gotPath, gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"intent":{"id":"i1","status":"confirmed"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok-123")
	raw, err := c.ConfirmFunding(context.Background(), "i1", "matched wire #42")
	require.NoError(t, err)

	assert.Equal(t, "/api/funding/i1/confirm", gotPath)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.JSONEq(t, `{"notes":"matched wire #42"}`, gotBody)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "intent")
}

func TestOverview(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/ledger/overview", r.URL.Path)
		_, _ = w.Write([]byte(`{"total_escrowed":0}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "tok")
	raw, err := c.Overview(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_escrowed":0}`, string(raw))
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"validation error: payout status is settled, expected pending_settlement"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	_, err := c.SettlePayout(context.Background(), "p1", "")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "validation error")
}
