package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"chorebot/internal/calendar"
	"chorebot/internal/chore"
	"chorebot/internal/schedule"
	logx "chorebot/pkg/logx"
)

var errNotFound = errors.New("schedule item not found")

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Engine.Status())
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Engine.Rules().Rules())
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	sched := s.deps.Engine.Schedule()
	if sched == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (s *Server) handleScheduleForDate(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(s.deps.Engine.ForDate(date)))
}

func (s *Server) handleScheduleForPeriod(w http.ResponseWriter, r *http.Request) {
	start, end, err := periodParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(s.deps.Engine.ForPeriod(start, end)))
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	yearRaw, monthRaw := chi.URLParam(r, "year"), chi.URLParam(r, "month")
	year, err1 := strconv.Atoi(yearRaw)
	month, err2 := strconv.Atoi(monthRaw)
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, errors.New("year and month must be integers"))
		return
	}
	view, err := s.deps.Engine.Monthly(r.Context(), year, month)
	if err != nil {
		s.engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{
		Success: true,
		Data:    view.Items,
		Count:   len(view.Items),
		Period:  map[string]string{"year": yearRaw, "month": monthRaw},
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	start, end, err := periodParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	recs, err := s.deps.Engine.History(r.Context(), start, end)
	if err != nil {
		s.engineError(w, err)
		return
	}
	if recs == nil {
		recs = []chore.HistoryRecord{}
	}
	writeJSON(w, http.StatusOK, listResponse{
		Success: true,
		Data:    recs,
		Count:   len(recs),
		Period:  map[string]string{"startDate": start, "endDate": end},
	})
}

type doneRequest struct {
	IsDone   bool    `json:"isDone"`
	Assignee *string `json:"assignee,omitempty"`
}

func (s *Server) handleDone(w http.ResponseWriter, r *http.Request) {
	var req doneRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	o, ok := s.deps.Engine.UpdateDoneStatus(chi.URLParam(r, "id"), req.IsDone, req.Assignee)
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleDelay(w http.ResponseWriter, r *http.Request) {
	res, ok, err := s.deps.Engine.Delay(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.engineError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAddOneTime(w http.ResponseWriter, r *http.Request) {
	var req schedule.OneTime
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	o, err := s.deps.Engine.AddOneTime(req)
	if err != nil {
		s.engineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Engine.Delete(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, errNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.deps.Refresher == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("refresh not configured"))
		return
	}
	rep, err := s.deps.Refresher.Run(r.Context())
	if err != nil {
		s.log.Warn("manual refresh failed", logx.Err(err))
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "스케줄 새로고침 완료", "report": rep})
}

type sendRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Messenger == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("messenger disabled"))
		return
	}
	var req sendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, errors.New("message is required"))
		return
	}
	res := s.deps.Messenger.SendMessage(r.Context(), req.Message)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

// engineError maps engine sentinels to status codes.
func (s *Server) engineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, schedule.ErrNoSchedule), errors.Is(err, schedule.ErrNoEligibleDay):
		writeError(w, http.StatusConflict, err)
	default:
		s.log.Error("request failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, err)
	}
}

func dateParam(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	d, err := calendar.ParseDate(raw)
	if err != nil {
		return "", fmt.Errorf("%s must be YYYY-MM-DD, got %q", name, raw)
	}
	return calendar.FormatDate(d), nil
}

func periodParams(r *http.Request) (string, string, error) {
	start, err := dateParam(r, "start")
	if err != nil {
		return "", "", err
	}
	end, err := dateParam(r, "end")
	if err != nil {
		return "", "", err
	}
	return start, end, nil
}

func nonNil(items []chore.Occurrence) []chore.Occurrence {
	if items == nil {
		return []chore.Occurrence{}
	}
	return items
}
