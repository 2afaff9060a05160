package rest

import (
	"fmt"
	"net/http"

	"github.com/veilnet/veild/internal/rest/response"
)

// apiEndpoints lists the top-level resources of the API.
var apiEndpoints = []string{
	"/1.0/services",
	"/1.0/system/:factory-reset",
	"/1.0/system/status",
}

func (*Server) apiRoot(w http.ResponseWriter, r *http.Request) {
	// The catch-all route also lands here.
	if r.URL.Path != "/" {
		_ = response.NotFound(fmt.Errorf("unknown endpoint %q", r.URL.Path)).Render(w)

		return
	}

	_ = response.SyncResponse(true, []string{"/1.0"}).Render(w)
}

func (s *Server) apiRoot10(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		_ = response.NotImplemented(nil).Render(w)

		return
	}

	st := s.backend.Status.Get()

	resetting := false

	session := s.backend.Runner.Current()
	if session != nil && !session.Phase().Terminal() {
		resetting = true
	}

	_ = response.SyncResponse(true, map[string]any{
		"api_version": "1.0",
		"endpoints":   apiEndpoints,
		"environment": map[string]any{
			"version":           st.Version,
			"modules_installed": st.ModulesInstalled,
			"resetting":         resetting,
		},
	}).Render(w)
}
