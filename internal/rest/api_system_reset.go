package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/veilnet/veild/api"
	"github.com/veilnet/veild/internal/reset"
	"github.com/veilnet/veild/internal/rest/response"
)

// swagger:operation POST /1.0/system/:factory-reset system system_post_reset
//
//	Start a factory reset
//
//	Stops the managed services, reinstalls the bundled components and erases all settings.
//	The reset runs in the background, its progress is available at the returned operation.
//
//	---
//	produces:
//	  - application/json
//	parameters:
//	  - in: body
//	    name: configuration
//	    description: Reset data
//	    required: false
//	    schema:
//	      type: object
//	      example: {"language":"en"}
//	responses:
//	  "202":
//	    description: Reset started
//	  "400":
//	    $ref: "#/responses/BadRequest"
//	  "409":
//	    description: A factory reset is already in progress
func (s *Server) apiSystemFactoryReset(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.startFactoryReset(w, r)

	case http.MethodGet:
		session := s.backend.Runner.Current()
		if session == nil {
			_ = response.NotFound(errors.New("no factory reset was started")).Render(w)

			return
		}

		_ = response.SyncResponse(true, resetState(session)).Render(w)

	case http.MethodDelete:
		session := s.backend.Runner.Current()
		if session == nil {
			_ = response.NotFound(errors.New("no factory reset was started")).Render(w)

			return
		}

		session.Interrupt()

		_ = response.EmptySyncResponse.Render(w)

	default:
		_ = response.NotImplemented(nil).Render(w)
	}
}

func (s *Server) startFactoryReset(w http.ResponseWriter, r *http.Request) {
	resetData := &api.SystemReset{}

	// An empty body requests a reset with the default language.
	err := json.NewDecoder(r.Body).Decode(resetData)
	if err != nil && !errors.Is(err, io.EOF) {
		_ = response.BadRequest(err).Render(w)

		return
	}

	uictx := s.backend.NewContext(resetData.Language)

	// The operation holds the UI handles until the client deletes it or it's pruned.
	op := newOperation(uictx)
	session := s.backend.NewSession(uictx, op.progress)
	id := session.ID()

	s.operations.add(id, op)

	err = s.backend.Runner.Start(session)
	if err != nil {
		s.operations.remove(id)

		if errors.Is(err, reset.ErrResetInProgress) {
			_ = response.Conflict(err).Render(w)

			return
		}

		_ = response.InternalError(err).Render(w)

		return
	}

	_ = response.AcceptedResponse(resetState(session), "/1.0/operations/"+id).Render(w)
}

func resetState(session *reset.Session) api.SystemResetState {
	st := api.SystemResetState{
		ID:        session.ID(),
		Phase:     session.Phase().String(),
		Mode:      session.Mode().String(),
		Operation: "/1.0/operations/" + session.ID(),
		StartedAt: session.StartedAt(),
	}

	err := session.Err()
	if err != nil {
		st.Error = err.Error()
	}

	return st
}
