package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"condo_collections/internal/app"
	"condo_collections/internal/domain/delinquency"
	"condo_collections/internal/domain/notification"
	"condo_collections/internal/infra/scheduler"
)

// Collections is the scheduler surface the API drives.
type Collections interface {
	Trigger(ctx context.Context) (*app.CycleSummary, error)
	Status() scheduler.Status
}

type CycleHistory interface {
	LatestCycle(ctx context.Context) (*delinquency.CycleRun, error)
}

type UnitReader interface {
	GetUnitSnapshot(ctx context.Context, unitID string) (*delinquency.UnitFinancialSnapshot, error)
	GetBalanceBreakdown(ctx context.Context, unitID string) ([]delinquency.ChargeLine, error)
}

type EventReader interface {
	ListEventsForUnit(ctx context.Context, unitID string) ([]delinquency.EscalationEvent, error)
}

type RecordReader interface {
	ListRecordsForUnit(ctx context.Context, unitID string) ([]*notification.Record, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the dependencies of every endpoint.
type Handler struct {
	collections Collections
	history     CycleHistory
	units       UnitReader
	events      EventReader
	records     RecordReader
	db          Pinger
	logger      *logrus.Entry
}

func NewHandler(collections Collections, history CycleHistory, units UnitReader, events EventReader, records RecordReader, db Pinger, baseLogger *logrus.Entry) *Handler {
	return &Handler{
		collections: collections,
		history:     history,
		units:       units,
		events:      events,
		records:     records,
		db:          db,
		logger:      baseLogger,
	}
}

// RunCollections runs a manual cycle and blocks until it completes. A client
// disconnect does not abort the cycle.
func (h *Handler) RunCollections(w http.ResponseWriter, r *http.Request) {
	summary, err := h.collections.Trigger(r.Context())
	if err != nil {
		if errors.Is(err, scheduler.ErrCycleAlreadyRunning) {
			writeError(w, http.StatusConflict, "collections cycle already running", nil)
			return
		}
		h.logger.WithError(err).Error("Manual collections cycle failed")
		writeError(w, http.StatusInternalServerError, "collections cycle failed", err)
		return
	}
	writeJSON(w, http.StatusOK, RunResponse{Summary: summary})
}

func (h *Handler) CollectionsStatus(w http.ResponseWriter, r *http.Request) {
	latest, err := h.history.LatestCycle(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read cycle history", err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Scheduler:   h.collections.Status(),
		LatestCycle: latest,
	})
}

func (h *Handler) UnitEscalations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	unitID := chi.URLParam(r, "unitID")

	snap, err := h.units.GetUnitSnapshot(ctx, unitID)
	if err != nil {
		if errors.Is(err, delinquency.ErrUnitNotFound) {
			writeError(w, http.StatusNotFound, "unit not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to read unit", err)
		return
	}

	charges, err := h.units.GetBalanceBreakdown(ctx, unitID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read balance breakdown", err)
		return
	}
	events, err := h.events.ListEventsForUnit(ctx, unitID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read escalation events", err)
		return
	}
	records, err := h.records.ListRecordsForUnit(ctx, unitID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read notices", err)
		return
	}
	if events == nil {
		events = []delinquency.EscalationEvent{}
	}

	writeJSON(w, http.StatusOK, UnitEscalationsResponse{
		Unit:    toUnitDTO(snap),
		Charges: toChargeDTOs(charges),
		Events:  events,
		Notices: toNoticeDTOs(records),
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unreachable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLogger logs one line per request through logrus.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}).Debug("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
