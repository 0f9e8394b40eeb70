package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	runs, err := s.repo.ListRuns(r.Context(), 1)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := map[string]interface{}{"status": "ok"}
	if len(runs) > 0 {
		status["last_run"] = runs[0]
	}
	writeJSON(w, http.StatusOK, status)
}

func parseEventID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

func parseLimit(r *http.Request, def, max int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= max {
			return n
		}
	}
	return def
}

// parseRange reads from/to query params (RFC3339); default is the trailing
// `days` window ending now.
func parseRange(r *http.Request, days int) (time.Time, time.Time) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -days)
	to := now.Add(time.Hour)
	if v := r.URL.Query().Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			from = t
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			to = t
		}
	}
	return from, to
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 500)
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	events, err := s.repo.ListEvents(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseEventID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	ev, err := s.repo.GetEvent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ev == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleHourlyPrices(w http.ResponseWriter, r *http.Request) {
	id, ok := parseEventID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	from, to := parseRange(r, 7)
	prices, err := s.repo.GetHourlyPrices(r.Context(), id, from, to, parseLimit(r, 1000, 5000))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"prices": prices})
}

func (s *Server) handleDailyPrices(w http.ResponseWriter, r *http.Request) {
	id, ok := parseEventID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	from, to := parseRange(r, 90)
	prices, err := s.repo.GetDailyPrices(r.Context(), id, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"prices": prices})
}

func (s *Server) handleCurrentPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseEventID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	price, err := s.repo.GetCurrentPrice(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if price == nil {
		writeError(w, http.StatusNotFound, "no price history")
		return
	}
	writeJSON(w, http.StatusOK, price)
}

func (s *Server) handle24hChange(w http.ResponseWriter, r *http.Request) {
	id, ok := parseEventID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	current, prior, err := s.repo.Get24hChange(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if current == nil {
		writeError(w, http.StatusNotFound, "no price history")
		return
	}

	resp := map[string]interface{}{"current": current}
	if prior != nil {
		resp["prior"] = prior
		if current.MinPrice != nil && prior.MinPrice != nil && *prior.MinPrice != 0 {
			resp["min_price_change_pct"] = round2((*current.MinPrice - *prior.MinPrice) / *prior.MinPrice * 100)
		}
		if current.AvgPrice != nil && prior.AvgPrice != nil && *prior.AvgPrice != 0 {
			resp["avg_price_change_pct"] = round2((*current.AvgPrice - *prior.AvgPrice) / *prior.AvgPrice * 100)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.repo.ListRuns(r.Context(), parseLimit(r, 24, 500))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	bucket, err := time.Parse(time.RFC3339, mux.Vars(r)["bucket"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hour bucket, want RFC3339")
		return
	}
	run, err := s.repo.GetRun(r.Context(), bucket)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	events, err := s.repo.GetRunEvents(r.Context(), bucket)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"run": run, "events": events})
}
