package httpdispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoReturnsResponseOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "rmeter/1", r.Header.Get("User-Agent"))
		w.Header().Set("X-Custom", "yes")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	d := New(0, 0)
	resp := d.Do(context.Background(), Request{Method: "GET", URL: srv.URL})

	require.Empty(t, resp.Err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Contains(t, resp.Headers, "x-custom")
	assert.GreaterOrEqual(t, resp.ElapsedMs, int64(0))
}

func TestDoReturnsSyntheticResponseOnTransportFailure(t *testing.T) {
	d := New(50*time.Millisecond, 0)
	resp := d.Do(context.Background(), Request{Method: "GET", URL: "http://127.0.0.1:0/unreachable"})

	assert.Equal(t, 0, resp.Status)
	assert.NotEmpty(t, resp.Err)
}

func TestDoSendsFormPairsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "bar", r.FormValue("foo"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	d := New(0, 0)
	resp := d.Do(context.Background(), Request{
		Method: "POST",
		URL:    srv.URL,
		Body:   &Body{Kind: BodyFormPairs, Pairs: []FormPair{{Name: "foo", Value: "bar"}}},
	})

	assert.Equal(t, http.StatusCreated, resp.Status)
}

func TestTruncatedBodyCapsAt4KiB(t *testing.T) {
	big := make([]byte, 10000)
	got := TruncatedBody(big)
	assert.Len(t, got, MaxBodyOnResult)
}
