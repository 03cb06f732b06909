package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/perception-eval/internal/httputil"
)

func TestClientAgainstServer(t *testing.T) {
	srv := httptest.NewServer(NewServer(seedStore(t), "").ServeMux())
	defer srv.Close()

	c := NewClient(srv.URL+"/", httputil.NewStandardClient(srv.Client()))
	ctx := context.Background()

	runs, err := c.ListRuns(ctx, "urban", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	d, err := c.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "urban", d.ScenarioName)
	assert.Len(t, d.Modes, 1)

	require.NoError(t, c.DeleteRun(ctx, "run-1"))
	_, err = c.GetRun(ctx, "run-1")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, "run not found", se.Message)
}

func TestClientWithMock(t *testing.T) {
	mock := httputil.NewMockHTTPClient().
		AddResponse(http.StatusOK, `[{"run_id":"a","scenario_name":"s"}]`).
		AddResponse(http.StatusInternalServerError, "plain failure").
		AddErrorResponse(errors.New("dial tcp: refused"))
	c := NewClient("http://eval.local", mock)
	ctx := context.Background()

	runs, err := c.ListRuns(ctx, "s", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "a", runs[0].RunID)
	assert.Equal(t, "http://eval.local/api/runs?scenario=s", mock.Requests()[0].URL.String())

	_, err = c.GetRun(ctx, "x")
	assert.EqualError(t, err, "server returned 500: plain failure")

	_, err = c.ListRuns(ctx, "", 0)
	assert.ErrorContains(t, err, "refused")
}
