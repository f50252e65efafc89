package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/ridebook/internal/directory"
	"github.com/example/ridebook/internal/quote"
	"github.com/example/ridebook/internal/reservation/availability"
	"github.com/example/ridebook/internal/reservation/domain"
	"github.com/example/ridebook/internal/reservation/handler"
	"github.com/example/ridebook/internal/reservation/repository"
	"github.com/example/ridebook/internal/reservation/service"
)

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.ReservationEvent) error { return nil }

type fixture struct {
	router http.Handler
	repo   *repository.MemoryRepository
	dir    *directory.MemoryDirectory
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := repository.NewMemoryRepository()
	dir := directory.NewMemoryDirectory()
	svc := service.New(repo, dir, noopPublisher{}, domain.SystemClock{}, repository.NewMemoryIdempotencyRepo())
	h := handler.NewHTTP(svc, availability.New(repo, dir), quote.New(dir))
	return fixture{router: h.Router(), repo: repo, dir: dir}
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateReservationEndpoint(t *testing.T) {
	fx := newFixture(t)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rec := doJSON(t, fx.router, http.MethodPost, "/reservations", map[string]any{
		"userId":        uuid.NewString(),
		"driverId":      uuid.NewString(),
		"startDateTime": start.Format(time.RFC3339),
		"endDateTime":   start.Add(time.Hour).Format(time.RFC3339),
		"fromWhere":     "Airport",
		"toWhere":       "Hotel",
		"priceCents":    3000,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var view service.ReservationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, domain.StatusPending, view.Status)
	require.Equal(t, "N/A", view.DriverFirstName)

	stored, err := fx.repo.GetReservationByID(context.Background(), view.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3000), stored.PriceCents)
}

func TestCreateReservationRejectsBadInput(t *testing.T) {
	fx := newFixture(t)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	valid := map[string]any{
		"userId":        uuid.NewString(),
		"driverId":      uuid.NewString(),
		"startDateTime": start.Format(time.RFC3339),
		"endDateTime":   start.Add(time.Hour).Format(time.RFC3339),
		"priceCents":    1000,
	}

	negative := cloneBody(valid)
	negative["priceCents"] = -100
	rec := doJSON(t, fx.router, http.MethodPost, "/reservations", negative)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	inverted := cloneBody(valid)
	inverted["startDateTime"] = start.Add(time.Hour).Format(time.RFC3339)
	inverted["endDateTime"] = start.Format(time.RFC3339)
	rec = doJSON(t, fx.router, http.MethodPost, "/reservations", inverted)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	badID := cloneBody(valid)
	badID["driverId"] = "not-a-uuid"
	rec = doJSON(t, fx.router, http.MethodPost, "/reservations", badID)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// nothing was persisted by any rejected request
	list, err := fx.repo.ListByUser(context.Background(), uuid.MustParse(valid["userId"].(string)))
	require.NoError(t, err)
	require.Empty(t, list)
}

func cloneBody(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func TestUpdateStatusEndpoint(t *testing.T) {
	fx := newFixture(t)
	now := time.Now().UTC()
	seeded, err := fx.repo.CreateReservation(context.Background(), domain.Reservation{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		DriverID:  uuid.New(),
		Start:     now.Add(time.Hour),
		End:       now.Add(2 * time.Hour),
		Status:    domain.StatusPending,
		CreatedAt: now,
	})
	require.NoError(t, err)

	rec := doJSON(t, fx.router, http.MethodPut, "/reservations/"+seeded.ID.String()+"/status", map[string]string{"status": "APPROVED"})
	require.Equal(t, http.StatusOK, rec.Code)

	// approved reservations cannot be declined
	rec = doJSON(t, fx.router, http.MethodPut, "/reservations/"+seeded.ID.String()+"/status", map[string]string{"status": "DECLINED"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, fx.router, http.MethodPut, "/reservations/"+seeded.ID.String()+"/status", map[string]string{"status": "ARCHIVED"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, fx.router, http.MethodPut, "/reservations/"+uuid.NewString()+"/status", map[string]string{"status": "APPROVED"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateStatusConflictingDriver(t *testing.T) {
	fx := newFixture(t)
	now := time.Now().UTC()
	driverID := uuid.New()

	_, err := fx.repo.CreateReservation(context.Background(), domain.Reservation{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		DriverID: driverID,
		Start:    now.Add(time.Hour),
		End:      now.Add(2 * time.Hour),
		Status:   domain.StatusApproved,
	})
	require.NoError(t, err)
	pending, err := fx.repo.CreateReservation(context.Background(), domain.Reservation{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		DriverID: driverID,
		Start:    now.Add(time.Hour),
		End:      now.Add(3 * time.Hour),
		Status:   domain.StatusPending,
	})
	require.NoError(t, err)

	rec := doJSON(t, fx.router, http.MethodPut, "/reservations/"+pending.ID.String()+"/status", map[string]string{"status": "APPROVED"})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestAvailableDriversEndpoint(t *testing.T) {
	fx := newFixture(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	busy := uuid.New()
	free := uuid.New()
	fx.dir.UpsertDriver(context.Background(), directory.Driver{ID: busy})
	fx.dir.UpsertDriver(context.Background(), directory.Driver{ID: free, Profile: &directory.Profile{FirstName: "Nina", LastName: "Rahimi"}})

	_, err := fx.repo.CreateReservation(context.Background(), domain.Reservation{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		DriverID: busy,
		Start:    base,
		End:      base.Add(2 * time.Hour),
		Status:   domain.StatusApproved,
	})
	require.NoError(t, err)

	url := fmt.Sprintf("/reservations/available-drivers?startDateTime=%s&endDateTime=%s",
		base.Add(time.Hour).Format(time.RFC3339), base.Add(90*time.Minute).Format(time.RFC3339))
	rec := doJSON(t, fx.router, http.MethodGet, url, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var drivers []availability.AvailableDriver
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &drivers))
	require.Len(t, drivers, 1)
	require.Equal(t, free, drivers[0].DriverID)
	require.Equal(t, "Nina", drivers[0].FirstName)

	// inverted window
	url = fmt.Sprintf("/reservations/available-drivers?startDateTime=%s&endDateTime=%s",
		base.Add(time.Hour).Format(time.RFC3339), base.Format(time.RFC3339))
	rec = doJSON(t, fx.router, http.MethodGet, url, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// missing params
	rec = doJSON(t, fx.router, http.MethodGet, "/reservations/available-drivers", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuoteEndpoint(t *testing.T) {
	fx := newFixture(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	driverID := uuid.New()
	fx.dir.UpsertDriver(context.Background(), directory.Driver{
		ID: driverID,
		Vehicles: []directory.Vehicle{
			{ID: uuid.New(), PriceCents: 4000},
			{ID: uuid.New(), PriceCents: 2500},
		},
	})

	url := fmt.Sprintf("/reservations/quote?driverId=%s&startDateTime=%s&endDateTime=%s",
		driverID, base.Format(time.RFC3339), base.Add(90*time.Minute).Format(time.RFC3339))
	rec := doJSON(t, fx.router, http.MethodGet, url, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var estimate quote.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &estimate))
	require.Equal(t, int64(2), estimate.Hours)
	require.Equal(t, int64(2500), estimate.RateCents)
	require.Equal(t, int64(5000), estimate.PriceCents)

	url = fmt.Sprintf("/reservations/quote?driverId=%s&startDateTime=%s&endDateTime=%s",
		uuid.NewString(), base.Format(time.RFC3339), base.Add(time.Hour).Format(time.RFC3339))
	rec = doJSON(t, fx.router, http.MethodGet, url, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListEndpoints(t *testing.T) {
	fx := newFixture(t)
	now := time.Now().UTC()
	userID := uuid.New()
	driverID := uuid.New()

	seeded, err := fx.repo.CreateReservation(context.Background(), domain.Reservation{
		ID:       uuid.New(),
		UserID:   userID,
		DriverID: driverID,
		Start:    now.Add(time.Hour),
		End:      now.Add(2 * time.Hour),
		Status:   domain.StatusPending,
	})
	require.NoError(t, err)

	rec := doJSON(t, fx.router, http.MethodGet, "/reservations/user/"+userID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var views []service.ReservationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	require.Equal(t, seeded.ID, views[0].ID)

	rec = doJSON(t, fx.router, http.MethodGet, "/reservations/driver/"+driverID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, fx.router, http.MethodGet, "/reservations/"+seeded.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, fx.router, http.MethodGet, "/reservations/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, fx.router, http.MethodGet, "/reservations/user/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
