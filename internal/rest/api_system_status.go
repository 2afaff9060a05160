package rest

import (
	"net/http"

	"github.com/veilnet/veild/internal/rest/response"
)

// swagger:operation GET /1.0/system/status system system_get_status
//
//	Get the system status
//
//	Returns whether the bundled components are installed, their versions and the state of the managed services.
//
//	---
//	produces:
//	  - application/json
//	responses:
//	  "200":
//	    description: System status
func (s *Server) apiSystemStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		_ = response.NotImplemented(nil).Render(w)

		return
	}

	st := s.backend.Status.Get()

	_ = response.SyncResponseETag(true, st, st).Render(w)
}
