package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dreamware/jubatus/internal/config"
	"github.com/dreamware/jubatus/internal/version"
)

func newTestServer(t *testing.T, specs []InstanceConfig) *server {
	t.Helper()
	handles, err := buildHandles(version.Owner("n1"), specs)
	require.NoError(t, err)
	return newServer("n1", handles, zap.NewNop())
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleInfoListsInstances(t *testing.T) {
	srv := newTestServer(t, []InstanceConfig{
		{Name: "weights", Type: "weight_manager", Primary: true},
	})
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/info", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Instances []string          `json:"instances"`
		Kinds     map[string]string `json:"kinds"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"weights"}, resp.Instances)
	assert.Equal(t, "linear", resp.Kinds["weights"])
}

func TestWeightManagerTrainAndPredict(t *testing.T) {
	srv := newTestServer(t, []InstanceConfig{
		{Name: "weights", Type: "weight_manager", Primary: true},
	})
	mux := srv.routes()

	body, _ := json.Marshal(trainRequest{Terms: []string{"alpha", "beta"}})
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/instances/weights/train", bytes.NewReader(body)))
	require.Equal(t, http.StatusNoContent, w.Code)

	// predict reads the installed (post-MIX) weights, so install the
	// locally trained diff first.
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/instances/weights/mix/diff", nil))
	require.Equal(t, http.StatusOK, w.Code)
	diff := w.Body.Bytes()
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/instances/weights/mix/diff", bytes.NewReader(diff)))
	require.Equal(t, http.StatusOK, w.Code)

	predBody, _ := json.Marshal(predictRequest{Terms: []string{"alpha"}})
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/instances/weights/predict", bytes.NewReader(predBody)))
	require.Equal(t, http.StatusOK, w.Code)

	var weights map[string]uint64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &weights))
	assert.EqualValues(t, 1, weights["alpha"])
}

func TestLinearMixDiffRoundTrip(t *testing.T) {
	srv := newTestServer(t, []InstanceConfig{
		{Name: "weights", Type: "weight_manager", Primary: true},
	})
	mux := srv.routes()

	body, _ := json.Marshal(trainRequest{Terms: []string{"alpha"}})
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/instances/weights/train", bytes.NewReader(body)))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/instances/weights/mix/diff", nil))
	require.Equal(t, http.StatusOK, w.Code)
	diff := w.Body.Bytes()
	require.NotEmpty(t, diff)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/instances/weights/mix/diff", bytes.NewReader(diff)))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Accepted bool `json:"accepted"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Accepted)
}

func TestLinearHandleRejectsPushEndpoints(t *testing.T) {
	srv := newTestServer(t, []InstanceConfig{
		{Name: "weights", Type: "weight_manager", Primary: true},
	})
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/instances/weights/mix/argument", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPushMixArgumentPullPushRoundTrip(t *testing.T) {
	specs := []InstanceConfig{
		{Name: "anomaly", Type: "anomaly"},
	}
	srvA := newTestServer(t, specs)
	srvB := newTestServer(t, specs)

	body, _ := json.Marshal(trainRequest{ID: "row1", Columns: map[string]float64{"score": 0.5}})
	w := httptest.NewRecorder()
	srvA.routes().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/instances/anomaly/train", bytes.NewReader(body)))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	srvB.routes().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/instances/anomaly/mix/argument", nil))
	require.Equal(t, http.StatusOK, w.Code)
	arg := w.Body.Bytes()

	w = httptest.NewRecorder()
	srvA.routes().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/instances/anomaly/mix/pull", bytes.NewReader(arg)))
	require.Equal(t, http.StatusOK, w.Code)
	diff := w.Body.Bytes()
	require.NotEmpty(t, diff)

	w = httptest.NewRecorder()
	srvB.routes().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/instances/anomaly/mix/push", bytes.NewReader(diff)))
	require.Equal(t, http.StatusNoContent, w.Code)

	predBody, _ := json.Marshal(predictRequest{ID: "row1"})
	w = httptest.NewRecorder()
	srvB.routes().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/instances/anomaly/predict", bytes.NewReader(predBody)))
	require.Equal(t, http.StatusOK, w.Code)

	var cols map[string]float64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cols))
	assert.EqualValues(t, 0.5, cols["score"])
}

func TestRecommenderTrainAndPredict(t *testing.T) {
	srv := newTestServer(t, []InstanceConfig{
		{Name: "rec", Type: "recommender", LSH: config.LSH{HashNum: 8, TableNum: 2, BinWidth: 50, ProbeNum: 4, Seed: 1091}},
	})
	mux := srv.routes()

	body, _ := json.Marshal(trainRequest{ID: "doc1", Vector: map[string]float64{"a": 1, "b": 2}})
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/instances/rec/train", bytes.NewReader(body)))
	require.Equal(t, http.StatusNoContent, w.Code)

	predBody, _ := json.Marshal(predictRequest{Vector: map[string]float64{"a": 1, "b": 2}, K: 1})
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/instances/rec/predict", bytes.NewReader(predBody)))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestUnknownInstanceReturns404(t *testing.T) {
	srv := newTestServer(t, nil)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/instances/missing/train", bytes.NewReader([]byte("{}"))))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
