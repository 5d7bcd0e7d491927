package httpapi

import (
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/pollkeeper/internal/server/models"
)

func (s *HTTPServer) handleCreatePoll(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePollRequest
	if err := parseJSONBody(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	poll, err := s.pollService.CreatePoll(r.Context(), UserIDFromContext(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, poll)
}

func (s *HTTPServer) handleGetPoll(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")

	poll, err := s.pollService.GetPoll(r.Context(), pollID, UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	var viewerID *string
	if id := UserIDFromContext(r.Context()); id != "" {
		viewerID = &id
	}
	s.pollService.RecordView(r.Context(), pollID, viewerID)

	writeJSON(w, http.StatusOK, poll)
}

func (s *HTTPServer) handleUpdatePoll(w http.ResponseWriter, r *http.Request) {
	var req models.UpdatePollRequest
	if err := parseJSONBody(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	poll, err := s.pollService.UpdatePoll(r.Context(), r.PathValue("id"), UserIDFromContext(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, poll)
}

func (s *HTTPServer) handleDeletePoll(w http.ResponseWriter, r *http.Request) {
	err := s.pollService.DeletePoll(r.Context(), r.PathValue("id"), UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleTogglePoll(w http.ResponseWriter, r *http.Request) {
	poll, err := s.pollService.TogglePollStatus(r.Context(), r.PathValue("id"), UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, poll)
}

func (s *HTTPServer) handleListMyPolls(w http.ResponseWriter, r *http.Request) {
	filter, page := listParams(r)

	polls, err := s.pollService.GetUserPolls(r.Context(), UserIDFromContext(r.Context()), filter, page)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, polls)
}

func (s *HTTPServer) handleListActivePolls(w http.ResponseWriter, r *http.Request) {
	filter, page := listParams(r)

	polls, err := s.pollService.GetActivePolls(r.Context(), filter, page)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, polls)
}

// listParams reads filter and pagination query parameters. Malformed
// numbers fall back to defaults, the service clamps the range.
func listParams(r *http.Request) (models.PollFilter, models.Page) {
	q := r.URL.Query()

	filter := models.PollFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
	}

	page := models.Page{}
	if n, err := strconv.Atoi(q.Get("page")); err == nil {
		page.Number = n
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil {
		page.Limit = n
	}
	return filter, page
}
