package httputil

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardClient(t *testing.T) {
	custom := &http.Client{}
	assert.Same(t, custom, NewStandardClient(custom).Client)
	assert.Same(t, http.DefaultClient, NewStandardClient(nil).Client)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.URL.Path)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/runs", nil)
	require.NoError(t, err)
	resp, err := NewStandardClient(srv.Client()).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "/api/runs", string(body))
}

func TestMockHTTPClientQueue(t *testing.T) {
	mock := NewMockHTTPClient().
		AddResponse(http.StatusOK, `[]`).
		AddErrorResponse(errors.New("connection refused"))

	req, _ := http.NewRequest(http.MethodGet, "http://example.com/api/runs", nil)
	resp, err := mock.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "[]", string(body))

	_, err = mock.Do(req)
	assert.EqualError(t, err, "connection refused")

	resp, err = mock.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "drained queue answers 200")

	assert.Len(t, mock.Requests(), 3)
}

func TestMockHTTPClientDoFunc(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.DoFunc = func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusTeapot, Body: http.NoBody}, nil
	}
	req, _ := http.NewRequest(http.MethodDelete, "http://example.com/x", nil)
	resp, err := mock.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, http.MethodDelete, mock.Requests()[0].Method)
}
