package http

import (
	"errors"
	"net/http"

	"servicecalls/internal/dashboard"
	applog "servicecalls/internal/log"
	"servicecalls/internal/services"
)

type createSessionResponse struct {
	ID    string          `json:"id"`
	Phase dashboard.Phase `json:"phase"`
}

type sessionResponse struct {
	ID string `json:"id"`
	dashboard.Snapshot
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, snap, err := s.sessions.Create(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Session create failed", applog.FieldError, err.Error())
		ErrorResponse(http.StatusServiceUnavailable, "dashboard sessions unavailable").Write(w, r)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/dashboard/sessions/"+id).
		Body(createSessionResponse{ID: id, Phase: snap.Phase}).
		Write(w, r)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, err := s.sessions.Snapshot(id)
	s.writeSnapshot(w, r, id, snap, err)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.PathValue("id")); err != nil {
		s.writeSessionError(w, r, dashboard.Snapshot{}, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w, r)
}

// handleReplaceFilters replaces the whole filter form.
func (s *Server) handleReplaceFilters(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	req, err := DecodeFilterRequest(w, r)
	if err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return
	}
	state, err := req.FilterState(s.location)
	if err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return
	}
	snap, err := s.sessions.Apply(id, state)
	s.writeSnapshot(w, r, id, snap, err)
}

// handlePatchFilters changes only the filters present in the body.
func (s *Server) handlePatchFilters(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	req, err := DecodeFilterRequest(w, r)
	if err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return
	}
	change, err := req.Patch(s.location)
	if err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return
	}
	snap, err := s.sessions.Update(id, change)
	s.writeSnapshot(w, r, id, snap, err)
}

func (s *Server) handleClearFilters(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, err := s.sessions.ClearFilters(id)
	s.writeSnapshot(w, r, id, snap, err)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	ds, err := s.sessions.Chart(r.PathValue("id"), r.PathValue("chart"))
	if err != nil {
		s.writeSessionError(w, r, dashboard.Snapshot{}, err)
		return
	}
	NewJSONResponse().Body(ds).Write(w, r)
}

func (s *Server) writeSnapshot(w http.ResponseWriter, r *http.Request, id string, snap dashboard.Snapshot, err error) {
	if err != nil {
		s.writeSessionError(w, r, snap, err)
		return
	}
	NewJSONResponse().Body(sessionResponse{ID: id, Snapshot: snap}).Write(w, r)
}

// writeSessionError maps service errors to status codes: unknown sessions
// and charts are 404, mutations while Loading are 409.
func (s *Server) writeSessionError(w http.ResponseWriter, r *http.Request, snap dashboard.Snapshot, err error) {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		NotFoundError("session not found").Write(w, r)
	case errors.Is(err, services.ErrUnknownChart):
		NotFoundError("unknown chart, expected main or sub1").Write(w, r)
	case errors.Is(err, dashboard.ErrNotReady):
		msg := "dashboard is still loading"
		if snap.Error != "" {
			msg = snap.Error
		}
		ConflictError(msg, string(dashboard.PhaseLoading)).Write(w, r)
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Dashboard request failed", applog.FieldError, err.Error())
		InternalServerError("internal error").Write(w, r)
	}
}
