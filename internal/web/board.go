package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"dispatch-cli/internal/events"
	"dispatch-cli/internal/model"
	"dispatch-cli/internal/mutate"
	"dispatch-cli/internal/store"
)

type boardResponse struct {
	Success    bool          `json:"success"`
	Date       string        `json:"date"`
	View       model.View    `json:"view"`
	WorkOrders model.Buckets `json:"work_orders"`
	Crews      []model.Crew  `json:"crews"`
	Summary    model.Summary `json:"summary"`
}

type assignRequest struct {
	WorkOrderID            string     `json:"work_order_id"`
	CrewID                 string     `json:"crew_id"`
	ScheduledStart         *time.Time `json:"scheduled_start"`
	EstimatedDurationHours float64    `json:"estimated_duration_hours"`
}

func errorBody(msg string) map[string]any {
	return map[string]any{"success": false, "error": msg}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps mutation errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var nf mutate.NotFoundError
	var inv mutate.InvalidError
	switch {
	case errors.As(err, &nf):
		status = http.StatusNotFound
	case errors.As(err, &inv):
		status = http.StatusBadRequest
	case errors.Is(err, mutate.ErrWorkOrderClosed), errors.Is(err, mutate.ErrWorkOrderStarted):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody(err.Error()))
}

// boardParams reads date and view, defaulting to today and day.
func (s *Server) boardParams(r *http.Request) (string, model.View, error) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		date = model.Today(s.cfg.Now().In(s.cfg.Location))
	}
	if _, err := model.ParseDate(date, s.cfg.Location); err != nil {
		return "", "", mutate.InvalidError{Field: "date", Reason: err.Error()}
	}
	view, err := model.ParseView(r.URL.Query().Get("view"))
	if err != nil {
		return "", "", mutate.InvalidError{Field: "view", Reason: err.Error()}
	}
	return date, view, nil
}

func (s *Server) snapshot(r *http.Request, date string, view model.View) (model.BoardSnapshot, error) {
	db, err := s.cfg.Store.Load(r.Context())
	if err != nil {
		return model.BoardSnapshot{}, err
	}
	return db.Snapshot(date, view, s.cfg.Location)
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	date, view, err := s.boardParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.snapshot(r, date, view)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, boardResponse{
		Success:    true,
		Date:       snap.Date,
		View:       snap.View,
		WorkOrders: nonNilBuckets(snap.WorkOrders),
		Crews:      nonNil(snap.Crews),
		Summary:    snap.Summary,
	})
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, mutate.InvalidError{Field: "body", Reason: err.Error()})
		return
	}
	in := mutate.AssignInput{
		WorkOrderID:   req.WorkOrderID,
		CrewID:        req.CrewID,
		DurationHours: req.EstimatedDurationHours,
	}
	if req.ScheduledStart != nil {
		in.Start = req.ScheduledStart.In(s.cfg.Location)
	}

	var res mutate.AssignResult
	err := s.cfg.Store.Update(r.Context(), func(db *store.DB) error {
		var err error
		res, err = mutate.AssignCrew(db, in)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("crew assigned", "work_order_id", in.WorkOrderID, "crew_id", in.CrewID, "changed", res.Changed, "conflicts", res.Conflicts)
	if res.Changed {
		s.publish(events.WorkOrderAssigned, map[string]any{
			"work_order_id": res.WorkOrder.ID,
			"crew_id":       res.WorkOrder.CrewID(),
			"conflicts":     res.Conflicts,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "conflicts": res.Conflicts})
}

func (s *Server) handleUnassign(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("workOrderId"))
	var res mutate.UnassignResult
	err := s.cfg.Store.Update(r.Context(), func(db *store.DB) error {
		var err error
		res, err = mutate.UnassignCrew(db, id)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("crew unassigned", "work_order_id", id, "changed", res.Changed)
	if res.Changed {
		s.publish(events.WorkOrderUpdated, map[string]any{"work_order_id": id, "status": res.WorkOrder.Status})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	date, _, err := s.boardParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var res mutate.OptimizeResult
	err = s.cfg.Store.Update(r.Context(), func(db *store.DB) error {
		var err error
		res, err = mutate.Optimize(db, date, s.cfg.Location)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("schedule optimized", "date", date, "assigned", res.Assigned, "total", res.Total, "crews", res.Crews)
	for _, id := range res.Changed {
		s.publish(events.WorkOrderAssigned, map[string]any{"work_order_id": id, "source": "optimize"})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": res.Message()})
}

func (s *Server) publish(t events.EventType, data map[string]any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.Warn("encoding event payload", "type", t, "error", err)
		raw = nil
	}
	s.bus.Publish(events.Event{Type: t, Timestamp: s.cfg.Now().UTC(), Data: raw})
}

func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}

func nonNilBuckets(b model.Buckets) model.Buckets {
	return model.Buckets{
		Unassigned: nonNil(b.Unassigned),
		Assigned:   nonNil(b.Assigned),
		InProgress: nonNil(b.InProgress),
		Completed:  nonNil(b.Completed),
	}
}
