package rest_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	incusapi "github.com/lxc/incus/v6/shared/api"
	"github.com/stretchr/testify/require"

	"github.com/veilnet/veild/api"
	"github.com/veilnet/veild/internal/reset"
	"github.com/veilnet/veild/internal/rest"
	"github.com/veilnet/veild/internal/services"
	"github.com/veilnet/veild/internal/ui"
)

type stubServices struct {
	block atomic.Bool
}

func (*stubServices) StopAll(_ context.Context, _ services.Mode) error { return nil }

func (s *stubServices) WaitUntilAllStopped(ctx context.Context, _ time.Duration) bool {
	if s.block.Load() {
		<-ctx.Done()

		return false
	}

	return true
}

type stubInstaller struct {
	fail atomic.Bool
}

func (*stubInstaller) Components() []string { return []string{"tor"} }
func (*stubInstaller) RemoveInstallationDirectories() error { return nil }
func (*stubInstaller) CreateLogsDirectory() error { return nil }

func (i *stubInstaller) ExtractComponent(_ context.Context, name string) (string, error) {
	if i.fail.Load() {
		return "", errors.New("archive is corrupted")
	}

	return "/opt/veil/" + name, nil
}

func (*stubInstaller) SetExecutablePermissions(_ string) error { return nil }
func (*stubInstaller) ResolveInstallationRoot() (string, error) { return "/opt/veil", nil }

type stubStatus struct{}

func (stubStatus) SetInstalled(_ bool) {}
func (stubStatus) Refresh(_ context.Context) error { return nil }
func (stubStatus) Get() api.SystemStatus { return api.SystemStatus{Version: "1.4.2", ModulesInstalled: true} }

type stubMonitor struct{}

func (stubMonitor) Services() []services.Service {
	return []services.Service{{Name: "tor", Unit: "tor.service"}, {Name: "i2pd", Unit: "i2pd.service"}}
}

func (stubMonitor) Statuses() map[string]services.Status {
	return map[string]services.Status{"tor": services.StatusStopped}
}

type goroutinePool struct{}

func (goroutinePool) Submit(_ string, fn func(context.Context)) error {
	go fn(context.Background())

	return nil
}

type testServer struct {
	*httptest.Server

	services  *stubServices
	installer *stubInstaller
	server    *rest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{services: &stubServices{}, installer: &stubInstaller{}}

	backend := rest.Backend{
		Runner:   reset.NewRunner(goroutinePool{}),
		Status:   stubStatus{},
		Services: stubMonitor{},
		NewContext: func(lang string) *ui.Context {
			return ui.NewContext("1.4.2", lang, nil)
		},
		NewSession: func(uictx *ui.Context, progress *ui.Progress) *reset.Session {
			return reset.New(reset.Dependencies{
				Services:  ts.services,
				Installer: ts.installer,
				Status:    stubStatus{},
			}, reset.Options{
				StopTimeout: time.Second,
				AppStore:    "veild",
				Context:     uictx,
				Progress:    progress,
			})
		},
	}

	server, err := rest.NewServer(backend, t.TempDir()+"/run/unix.socket")
	require.NoError(t, err)

	ts.server = server
	ts.Server = httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return ts
}

func (ts *testServer) do(t *testing.T, method string, path string, body string, target any) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	raw := incusapi.ResponseRaw{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))

	if target != nil && raw.Metadata != nil {
		body, err := json.Marshal(raw.Metadata)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, target))
	}

	return resp
}

func TestFactoryReset(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/1.0/system/:factory-reset", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	state := api.SystemResetState{}
	resp = ts.do(t, http.MethodPost, "/1.0/system/:factory-reset", "", &state)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NotEmpty(t, state.ID)
	require.Equal(t, "/1.0/operations/"+state.ID, resp.Header.Get("Location"))

	require.Eventually(t, func() bool {
		op := api.Operation{}
		ts.do(t, http.MethodGet, "/1.0/operations/"+state.ID, "", &op)

		return op.Done
	}, 5*time.Second, 10*time.Millisecond)

	current := api.SystemResetState{}
	resp = ts.do(t, http.MethodGet, "/1.0/system/:factory-reset", "", &current)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, state.ID, current.ID)
	require.Equal(t, "done", current.Phase)
	require.Empty(t, current.Error)

	// A successful reset shows no message.
	op := api.Operation{}
	ts.do(t, http.MethodGet, "/1.0/operations/"+state.ID, "", &op)
	require.Empty(t, op.Message)

	resp = ts.do(t, http.MethodDelete, "/1.0/operations/"+state.ID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/1.0/operations/"+state.ID, "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFactoryResetFailureMessage(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.installer.fail.Store(true)

	state := api.SystemResetState{}
	resp := ts.do(t, http.MethodPost, "/1.0/system/:factory-reset", `{"language": "es"}`, &state)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	op := api.Operation{}

	require.Eventually(t, func() bool {
		ts.do(t, http.MethodGet, "/1.0/operations/"+state.ID, "", &op)

		return op.Done
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, "¡Algo salió mal!", op.Message)

	current := api.SystemResetState{}
	ts.do(t, http.MethodGet, "/1.0/system/:factory-reset", "", &current)
	require.Equal(t, "failed", current.Phase)
	require.Contains(t, current.Error, "archive is corrupted")
}

func TestFactoryResetConflictAndInterrupt(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.services.block.Store(true)

	state := api.SystemResetState{}
	resp := ts.do(t, http.MethodPost, "/1.0/system/:factory-reset", "", &state)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/1.0/system/:factory-reset", "", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, "/1.0/system/:factory-reset", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		current := api.SystemResetState{}
		ts.do(t, http.MethodGet, "/1.0/system/:factory-reset", "", &current)

		return current.Phase == "aborted"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestFactoryResetBadRequest(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/1.0/system/:factory-reset", "{", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPut, "/1.0/system/:factory-reset", "", nil)
	require.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestServices(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	urls := []string{}
	resp := ts.do(t, http.MethodGet, "/1.0/services", "", &urls)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"/1.0/services/i2pd", "/1.0/services/tor"}, urls)

	svc := api.Service{}
	ts.do(t, http.MethodGet, "/1.0/services/tor", "", &svc)
	require.Equal(t, api.Service{Name: "tor", Unit: "tor.service", Status: "stopped"}, svc)

	ts.do(t, http.MethodGet, "/1.0/services/i2pd", "", &svc)
	require.Equal(t, "unknown", svc.Status)

	resp = ts.do(t, http.MethodGet, "/1.0/services/openvpn", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSystemStatus(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	st := api.SystemStatus{}
	resp := ts.do(t, http.MethodGet, "/1.0/system/status", "", &st)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("ETag"))
	require.Equal(t, "1.4.2", st.Version)
	require.True(t, st.ModulesInstalled)

	resp = ts.do(t, http.MethodGet, "/nope", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPruneOperations(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	state := api.SystemResetState{}
	ts.do(t, http.MethodPost, "/1.0/system/:factory-reset", "", &state)

	require.Eventually(t, func() bool {
		op := api.Operation{}
		ts.do(t, http.MethodGet, "/1.0/operations/"+state.ID, "", &op)

		return op.Done
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, ts.server.PruneOperations(context.Background(), time.Hour))

	resp := ts.do(t, http.MethodGet, "/1.0/operations/"+state.ID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, ts.server.PruneOperations(context.Background(), 0))

	resp = ts.do(t, http.MethodGet, "/1.0/operations/"+state.ID, "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIRoot(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	versions := []string{}
	ts.do(t, http.MethodGet, "/", "", &versions)
	require.Equal(t, []string{"/1.0"}, versions)

	root := struct {
		APIVersion  string         `json:"api_version"`
		Endpoints   []string       `json:"endpoints"`
		Environment map[string]any `json:"environment"`
	}{}

	resp := ts.do(t, http.MethodGet, "/1.0", "", &root)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "1.0", root.APIVersion)
	require.Contains(t, root.Endpoints, "/1.0/system/:factory-reset")
	require.Equal(t, "1.4.2", root.Environment["version"])
	require.Equal(t, false, root.Environment["resetting"])

	resp = ts.do(t, http.MethodPost, "/1.0", "", nil)
	require.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}
