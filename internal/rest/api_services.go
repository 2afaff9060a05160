package rest

import (
	"net/http"
	"net/url"
	"slices"

	"github.com/veilnet/veild/api"
	"github.com/veilnet/veild/internal/rest/response"
	"github.com/veilnet/veild/internal/services"
)

func (s *Server) apiServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		_ = response.NotImplemented(nil).Render(w)

		return
	}

	// Get the list of services.
	names := []string{}
	for _, svc := range s.backend.Services.Services() {
		names = append(names, svc.Name)
	}

	slices.Sort(names)

	urls := []string{}

	for _, name := range names {
		serviceURL, _ := url.JoinPath("/1.0/services", name)
		urls = append(urls, serviceURL)
	}

	_ = response.SyncResponse(true, urls).Render(w)
}

func (s *Server) apiServicesEndpoint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		_ = response.NotImplemented(nil).Render(w)

		return
	}

	name := r.PathValue("name")

	idx := slices.IndexFunc(s.backend.Services.Services(), func(svc services.Service) bool {
		return svc.Name == name
	})
	if idx < 0 {
		_ = response.NotFound(nil).Render(w)

		return
	}

	svc := s.backend.Services.Services()[idx]

	st, ok := s.backend.Services.Statuses()[name]
	if !ok {
		st = services.StatusUnknown
	}

	_ = response.SyncResponse(true, api.Service{Name: svc.Name, Unit: svc.Unit, Status: string(st)}).Render(w)
}
