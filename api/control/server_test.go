package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/mtrr/core/knowledge"
	"github.com/kilianp07/mtrr/core/mission"
	"github.com/kilianp07/mtrr/core/model"
	"github.com/kilianp07/mtrr/infra/logger"
)

type fakeController struct {
	mu        sync.Mutex
	started   []int
	refreshed int
	aborts    []string
	periodic  []bool
	abortErr  error
	active    int
}

func (f *fakeController) StartMission(_ context.Context, m *model.Mission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, m.ID)
	return nil
}

func (f *fakeController) RequestUpdatedStatus(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed++
	return nil
}

func (f *fakeController) AbortVehiclePlan(context.Context, int, bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborts = append(f.aborts, "vehicle")
	return f.abortErr
}

func (f *fakeController) AbortMissionPlan(_ context.Context, id int, hard bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if hard {
		f.aborts = append(f.aborts, "mission-hard")
	} else {
		f.aborts = append(f.aborts, "mission")
	}
	if id != f.active {
		return &mission.RejectionError{Reason: "Specified mission ID does not match", Err: mission.ErrMissionMismatch}
	}
	return f.abortErr
}

func (f *fakeController) OngoingMissionID() int { return f.active }

func (f *fakeController) EnablePeriodicEnvironmentalReport(context.Context) error {
	f.periodic = append(f.periodic, true)
	return nil
}

func (f *fakeController) DisablePeriodicEnvironmentalReport(context.Context) error {
	f.periodic = append(f.periodic, false)
	return nil
}

func newTestServer(t *testing.T, cfg Config) (*Server, *fakeController, *knowledge.MemoryStore) {
	t.Helper()
	ctrl := &fakeController{active: 7}
	store := knowledge.NewMemoryStore()
	return NewServer(context.Background(), cfg, ctrl, store, logger.NopLogger{}), ctrl, store
}

func do(s *Server, method, target, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestSendPlanRunsInBackground(t *testing.T) {
	s, ctrl, _ := newTestServer(t, Config{})
	rr := do(s, http.MethodPost, "/api/missions", `{"id": 12, "actions": [], "vehicles": []}`, "")
	require.Equal(t, http.StatusAccepted, rr.Code)
	s.Wait()
	assert.Equal(t, []int{12}, ctrl.started)

	rr = do(s, http.MethodPost, "/api/status/refresh", "", "")
	require.Equal(t, http.StatusAccepted, rr.Code)
	s.Wait()
	assert.Equal(t, 1, ctrl.refreshed)
}

func TestAbortResults(t *testing.T) {
	s, ctrl, _ := newTestServer(t, Config{})

	rr := do(s, http.MethodPost, "/api/missions/7/abort?hard=true", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"result":"OK"}`, rr.Body.String())

	rr = do(s, http.MethodPost, "/api/missions/8/abort", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"result":"NOK: Specified mission ID does not match"}`, rr.Body.String())

	ctrl.abortErr = errors.New("broker down")
	rr = do(s, http.MethodPost, "/api/vehicles/3/abort", "", "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.JSONEq(t, `{"result":"NOK: broker down"}`, rr.Body.String())

	rr = do(s, http.MethodPost, "/api/vehicles/x/abort", "", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = do(s, http.MethodPost, "/api/vehicles/3/abort?hard=maybe", "", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	assert.Equal(t, []string{"mission-hard", "mission", "vehicle"}, ctrl.aborts)
}

func TestCurrentMissionAndReports(t *testing.T) {
	s, _, store := newTestServer(t, Config{})
	rr := do(s, http.MethodGet, "/api/missions/current", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"mission_id":7}`, rr.Body.String())

	rr = do(s, http.MethodGet, "/api/missions/7/reports", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	require.NoError(t, store.StoreTaskReport(context.Background(), knowledge.TaskReport{MissionID: 7, VehicleID: 1, ActionID: 3, Code: 2, Status: "COMPLETED"}))
	rr = do(s, http.MethodGet, "/api/missions/7/reports", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var out []knowledge.TaskReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, 3, out[0].ActionID)
}

func TestPeriodicEnvironment(t *testing.T) {
	s, ctrl, _ := newTestServer(t, Config{})
	rr := do(s, http.MethodPost, "/api/environment/periodic", `{"enabled":true}`, "")
	require.Equal(t, http.StatusOK, rr.Code)
	rr = do(s, http.MethodPost, "/api/environment/periodic", `{"enabled":false}`, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []bool{true, false}, ctrl.periodic)
}

func TestTokenAuth(t *testing.T) {
	s, _, _ := newTestServer(t, Config{Token: "s3cret"})

	rr := do(s, http.MethodGet, "/api/ping", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Ping received on MTRR", rr.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(s, http.MethodGet, "/api/missions/current", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(s, http.MethodGet, "/api/missions/current", "", "wrong").Code)
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/api/missions/current", "", "s3cret").Code)
}
