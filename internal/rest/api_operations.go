package rest

import (
	"net/http"

	"github.com/veilnet/veild/internal/rest/response"
)

func (s *Server) apiOperation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	op, ok := s.operations.get(id)
	if !ok {
		_ = response.NotFound(nil).Render(w)

		return
	}

	switch r.Method {
	case http.MethodGet:
		_ = response.SyncResponse(true, op.toAPI()).Render(w)

	case http.MethodDelete:
		// The client is going away, tear down the surface it was watching.
		s.operations.remove(id)

		_ = response.EmptySyncResponse.Render(w)

	default:
		_ = response.NotImplemented(nil).Render(w)
	}
}
