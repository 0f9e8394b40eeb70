package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
)

func (s *Server) handleHourlyJob(w http.ResponseWriter, r *http.Request) {
	result, err := s.jobs.RunHourly(r.Context())
	if err != nil {
		log.Printf("[API] hourly job: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDailyJob(w http.ResponseWriter, r *http.Request) {
	result, err := s.jobs.RunDaily(r.Context())
	if err != nil {
		log.Printf("[API] daily job: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type refreshRequest struct {
	EventID    *int64  `json:"event_id"`
	TEEventIDs []int64 `json:"te_event_ids"`
	DryRun     *bool   `json:"dry_run"`
}

// handleRefreshMetadata selects target ids with precedence: query-param
// event_id, then body event_id, then body te_event_ids, then all events.
// dry_run defaults to true; a refresh only writes when explicitly asked to.
func (s *Server) handleRefreshMetadata(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	var ids []int64
	if q := r.URL.Query().Get("event_id"); q != "" {
		id, err := strconv.ParseInt(q, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid event_id")
			return
		}
		ids = []int64{id}
	} else if req.EventID != nil {
		ids = []int64{*req.EventID}
	} else if len(req.TEEventIDs) > 0 {
		ids = req.TEEventIDs
	}

	dryRun := true
	if req.DryRun != nil {
		dryRun = *req.DryRun
	}

	summary, err := s.refresher.Refresh(r.Context(), ids, dryRun)
	if err != nil {
		log.Printf("[API] metadata refresh: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
