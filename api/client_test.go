package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	base, err := url.Parse(srv.URL)
	require.NoError(t, err)

	return NewClient(base, srv.Client())
}

func TestClientVersion(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/version", r.URL.Path)
		fmt.Fprint(w, `{"version":"0.1.0"}`)
	})

	v, err := client.Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, "0.1.0", v)
}

func TestClientList(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/runs", r.URL.Path)
		fmt.Fprint(w, `{"runs":[{"name":"sec_regression_finbert-sec","epochs":3,"resumable":true}]}`)
	})

	resp, err := client.List(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Runs, 1)
	require.Equal(t, "sec_regression_finbert-sec", resp.Runs[0].Name)
	require.Equal(t, 3, resp.Runs[0].Epochs)
	require.True(t, resp.Runs[0].Resumable)
}

func TestClientShow(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/runs/myrun", r.URL.Path)
		fmt.Fprint(w, `{"name":"myrun","checkpoints":[{"epoch":5}],"eval_results":{"loss":"0.25"}}`)
	})

	detail, err := client.Show(context.Background(), "myrun")
	require.NoError(t, err)
	require.Equal(t, "myrun", detail.Name)
	require.Len(t, detail.Checkpoints, 1)
	require.Equal(t, 5, detail.Checkpoints[0].Epoch)
	require.Equal(t, "0.25", detail.EvalResults["loss"])
}

func TestClientStatusError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"run not found"}`)
	})

	_, err := client.Show(context.Background(), "missing")
	require.Error(t, err)

	var statusError StatusError
	require.ErrorAs(t, err, &statusError)
	require.Equal(t, http.StatusNotFound, statusError.StatusCode)
	require.Equal(t, "run not found", statusError.ErrorMessage)
}

func TestClientHeartbeat(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodHead, r.Method)
	})

	require.NoError(t, client.Heartbeat(context.Background()))
}
