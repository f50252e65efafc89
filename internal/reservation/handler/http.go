package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/example/ridebook/internal/directory"
	"github.com/example/ridebook/internal/quote"
	"github.com/example/ridebook/internal/reservation/availability"
	"github.com/example/ridebook/internal/reservation/domain"
	"github.com/example/ridebook/internal/reservation/service"
)

// HTTP exposes the reservation endpoints. Boundary validation (inverted
// windows, negative prices, malformed ids) happens here, before the core is
// invoked.
type HTTP struct {
	svc    *service.Service
	engine *availability.Engine
	quotes *quote.Service
}

// NewHTTP constructs a handler.
func NewHTTP(svc *service.Service, engine *availability.Engine, quotes *quote.Service) *HTTP {
	return &HTTP{svc: svc, engine: engine, quotes: quotes}
}

// Router builds the chi router with all endpoints and middlewares.
func (h *HTTP) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Route("/reservations", func(r chi.Router) {
		r.Get("/available-drivers", h.availableDrivers)
		r.Get("/quote", h.quotePrice)
		r.Post("/", h.createReservation)
		r.Put("/{id}/status", h.updateStatus)
		r.Get("/user/{userId}", h.listByUser)
		r.Get("/driver/{driverId}", h.listByDriver)
		r.Get("/{id}", h.getByID)
	})
	return r
}

func (h *HTTP) availableDrivers(w http.ResponseWriter, r *http.Request) {
	windowStart, windowEnd, ok := windowFromQuery(w, r)
	if !ok {
		return
	}
	drivers, err := h.engine.AvailableDrivers(r.Context(), windowStart, windowEnd)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, drivers)
}

type createReservationRequest struct {
	UserID     string    `json:"userId"`
	DriverID   string    `json:"driverId"`
	Start      time.Time `json:"startDateTime"`
	End        time.Time `json:"endDateTime"`
	FromWhere  string    `json:"fromWhere"`
	ToWhere    string    `json:"toWhere"`
	PriceCents int64     `json:"priceCents"`
}

func (h *HTTP) createReservation(w http.ResponseWriter, r *http.Request) {
	var payload createReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		http.Error(w, "invalid userId", http.StatusBadRequest)
		return
	}
	driverID, err := uuid.Parse(payload.DriverID)
	if err != nil {
		http.Error(w, "invalid driverId", http.StatusBadRequest)
		return
	}
	if !payload.Start.Before(payload.End) {
		http.Error(w, domain.ErrInvalidWindow.Error(), http.StatusBadRequest)
		return
	}
	if payload.PriceCents < 0 {
		http.Error(w, domain.ErrNegativePrice.Error(), http.StatusBadRequest)
		return
	}

	view, err := h.svc.Create(r.Context(), r.Header.Get("Idempotency-Key"), service.CreateReservationRequest{
		UserID:     userID,
		DriverID:   driverID,
		Start:      payload.Start,
		End:        payload.End,
		FromWhere:  payload.FromWhere,
		ToWhere:    payload.ToWhere,
		PriceCents: payload.PriceCents,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *HTTP) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var payload updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	status, ok := domain.ParseStatus(payload.Status)
	if !ok {
		http.Error(w, "unknown status", http.StatusBadRequest)
		return
	}
	view, err := h.svc.UpdateStatus(r.Context(), id, status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *HTTP) getByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	view, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *HTTP) listByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		http.Error(w, "invalid userId", http.StatusBadRequest)
		return
	}
	views, err := h.svc.ListByUser(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *HTTP) listByDriver(w http.ResponseWriter, r *http.Request) {
	driverID, err := uuid.Parse(chi.URLParam(r, "driverId"))
	if err != nil {
		http.Error(w, "invalid driverId", http.StatusBadRequest)
		return
	}
	views, err := h.svc.ListByDriver(r.Context(), driverID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *HTTP) quotePrice(w http.ResponseWriter, r *http.Request) {
	driverID, err := uuid.Parse(r.URL.Query().Get("driverId"))
	if err != nil {
		http.Error(w, "invalid driverId", http.StatusBadRequest)
		return
	}
	windowStart, windowEnd, ok := windowFromQuery(w, r)
	if !ok {
		return
	}
	estimate, err := h.quotes.EstimatePrice(r.Context(), driverID, windowStart, windowEnd)
	if err != nil {
		if errors.Is(err, directory.ErrDriverUnknown) {
			http.Error(w, "unknown driver", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, estimate)
}

func windowFromQuery(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	windowStart, err := time.Parse(time.RFC3339, r.URL.Query().Get("startDateTime"))
	if err != nil {
		http.Error(w, "invalid startDateTime", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	windowEnd, err := time.Parse(time.RFC3339, r.URL.Query().Get("endDateTime"))
	if err != nil {
		http.Error(w, "invalid endDateTime", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	if !windowStart.Before(windowEnd) {
		http.Error(w, domain.ErrInvalidWindow.Error(), http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	return windowStart.UTC(), windowEnd.UTC(), true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrDriverBusy):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
