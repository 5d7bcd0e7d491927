package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/pollkeeper/internal/server/models"
)

type submitVoteRequest struct {
	OptionIDs []string `json:"option_ids"`
}

type exportResponse struct {
	URL string `json:"url"`
}

func (s *HTTPServer) handleSubmitVote(w http.ResponseWriter, r *http.Request) {
	var req submitVoteRequest
	if err := parseJSONBody(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	meta := models.VoteMeta{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}

	err := s.voteService.SubmitVote(r.Context(), r.PathValue("id"), UserIDFromContext(r.Context()), req.OptionIDs, meta)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

func (s *HTTPServer) handleGetUserVote(w http.ResponseWriter, r *http.Request) {
	vote, err := s.voteService.GetUserVote(r.Context(), r.PathValue("id"), UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, vote)
}

func (s *HTTPServer) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.voteService.GetStatistics(r.Context(), r.PathValue("id"), UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *HTTPServer) handleGetMyVotes(w http.ResponseWriter, r *http.Request) {
	history, err := s.voteService.GetVoterHistory(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, history)
}

func (s *HTTPServer) handleExportResults(w http.ResponseWriter, r *http.Request) {
	url, err := s.exportService.ExportResults(r.Context(), r.PathValue("id"), UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, exportResponse{URL: url})
}
