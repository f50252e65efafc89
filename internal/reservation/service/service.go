package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/ridebook/internal/directory"
	"github.com/example/ridebook/internal/reservation/domain"
)

// DefaultStaleAfter is how long a reservation may sit in PENDING before the
// sweep declines it.
const DefaultStaleAfter = 6 * time.Hour

// Service owns the reservation lifecycle: creation, status transitions and
// the stale-pending sweep. Availability is a separate read path; Create does
// not re-derive it, so two overlapping creates for one driver both succeed as
// PENDING. The conflict gate sits on the transition to APPROVED instead.
type Service struct {
	repo       domain.Repository
	dir        directory.Directory
	events     domain.EventPublisher
	clock      domain.Clock
	idempotent domain.IdempotencyRepository
	staleAfter time.Duration
}

// New constructs a Service with the required collaborators.
func New(repo domain.Repository, dir directory.Directory, events domain.EventPublisher, clock domain.Clock, idem domain.IdempotencyRepository) *Service {
	return &Service{repo: repo, dir: dir, events: events, clock: clock, idempotent: idem, staleAfter: DefaultStaleAfter}
}

// CreateReservationRequest contains the validated creation payload. Callers
// guarantee Start < End and PriceCents >= 0 before invoking Create.
type CreateReservationRequest struct {
	UserID     uuid.UUID
	DriverID   uuid.UUID
	Start      time.Time
	End        time.Time
	FromWhere  string
	ToWhere    string
	PriceCents int64
}

// ReservationView is the projection returned to the API layer, with driver
// display fields resolved through the directory.
type ReservationView struct {
	ID               uuid.UUID                `json:"id"`
	UserID           uuid.UUID                `json:"userId"`
	DriverID         uuid.UUID                `json:"driverId"`
	DriverFirstName  string                   `json:"driverFirstName"`
	DriverLastName   string                   `json:"driverLastName"`
	DriverPictureURL string                   `json:"driverPictureUrl"`
	Start            time.Time                `json:"startDateTime"`
	End              time.Time                `json:"endDateTime"`
	FromWhere        string                   `json:"fromWhere"`
	ToWhere          string                   `json:"toWhere"`
	PriceCents       int64                    `json:"priceCents"`
	Status           domain.ReservationStatus `json:"status"`
	CreatedAt        time.Time                `json:"createdAt"`
}

// Create persists a new PENDING reservation and returns its projection.
// A non-empty idempotency key replays the cached response for retried calls.
func (s *Service) Create(ctx context.Context, key string, req CreateReservationRequest) (ReservationView, error) {
	if key != "" && s.idempotent != nil {
		if cached, ok, err := s.idempotent.GetResponse(ctx, key); err == nil && ok {
			var view ReservationView
			if err := json.Unmarshal(cached, &view); err == nil {
				return view, nil
			}
		}
	}

	reservation := domain.Reservation{
		ID:         uuid.New(),
		UserID:     req.UserID,
		DriverID:   req.DriverID,
		Start:      req.Start.UTC(),
		End:        req.End.UTC(),
		FromWhere:  req.FromWhere,
		ToWhere:    req.ToWhere,
		PriceCents: req.PriceCents,
		Status:     domain.StatusPending,
		CreatedAt:  s.clock.Now(),
		Version:    1,
	}

	created, err := s.repo.CreateReservation(ctx, reservation)
	if err != nil {
		return ReservationView{}, fmt.Errorf("create reservation: %w", err)
	}

	_ = s.events.Publish(ctx, domain.ReservationEvent{
		ReservationID: created.ID,
		Type:          domain.EventReservationCreated,
		Payload: map[string]any{
			"user_id":   created.UserID.String(),
			"driver_id": created.DriverID.String(),
		},
	})

	view := s.project(ctx, created)
	if key != "" && s.idempotent != nil {
		if payload, err := json.Marshal(view); err == nil {
			_ = s.idempotent.PutResponse(ctx, key, payload)
		}
	}
	return view, nil
}

// UpdateStatus applies a status transition after validating it against the
// transition graph. Flipping to APPROVED additionally re-checks the driver's
// approved reservations for conflicts, which is what upholds the
// one-approved-reservation-per-instant invariant.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, next domain.ReservationStatus) (ReservationView, error) {
	reservation, err := s.repo.GetReservationByID(ctx, id)
	if err != nil {
		return ReservationView{}, err
	}

	if !reservation.Status.CanTransitionTo(next) {
		return ReservationView{}, domain.ErrInvalidTransition
	}

	if next == domain.StatusApproved && reservation.Status != domain.StatusApproved {
		conflicts, err := s.repo.ListApprovedOverlapping(ctx, reservation.Start, reservation.End)
		if err != nil {
			return ReservationView{}, fmt.Errorf("conflict check: %w", err)
		}
		for _, other := range conflicts {
			if other.DriverID == reservation.DriverID && other.ID != reservation.ID {
				return ReservationView{}, domain.ErrDriverBusy
			}
		}
	}

	previous := reservation.Status
	reservation.Status = next
	updated, err := s.repo.UpdateReservation(ctx, reservation)
	if err != nil {
		return ReservationView{}, err
	}

	_ = s.events.Publish(ctx, domain.ReservationEvent{
		ReservationID: updated.ID,
		Type:          domain.EventStatusChanged,
		Payload: map[string]any{
			"from": string(previous),
			"to":   string(next),
		},
	})

	return s.project(ctx, updated), nil
}

// GetByID retrieves one reservation projection.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (ReservationView, error) {
	reservation, err := s.repo.GetReservationByID(ctx, id)
	if err != nil {
		return ReservationView{}, err
	}
	return s.project(ctx, reservation), nil
}

// ListByUser returns every reservation for the user, any status.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]ReservationView, error) {
	reservations, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.projectAll(ctx, reservations), nil
}

// ListByDriver returns every reservation for the driver, any status.
func (s *Service) ListByDriver(ctx context.Context, driverID uuid.UUID) ([]ReservationView, error) {
	reservations, err := s.repo.ListByDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	return s.projectAll(ctx, reservations), nil
}

// AutoDeclinePending declines every PENDING reservation older than the stale
// window and reports how many rows it flipped. Running it again immediately is
// a no-op; a failed pass is retried by the next sweep tick.
func (s *Service) AutoDeclinePending(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.staleAfter)
	stale, err := s.repo.ListStalePending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale pending: %w", err)
	}

	declined := 0
	for _, reservation := range stale {
		reservation.Status = domain.StatusDeclined
		if _, err := s.repo.UpdateReservation(ctx, reservation); err != nil {
			return declined, fmt.Errorf("decline reservation %s: %w", reservation.ID, err)
		}
		declined++
		_ = s.events.Publish(ctx, domain.ReservationEvent{
			ReservationID: reservation.ID,
			Type:          domain.EventReservationDeclined,
			Payload:       map[string]any{"created_at": reservation.CreatedAt},
		})
	}
	return declined, nil
}

func (s *Service) projectAll(ctx context.Context, reservations []domain.Reservation) []ReservationView {
	views := make([]ReservationView, 0, len(reservations))
	for _, r := range reservations {
		views = append(views, s.project(ctx, r))
	}
	return views
}

const profilePlaceholder = "N/A"

func (s *Service) project(ctx context.Context, r domain.Reservation) ReservationView {
	view := ReservationView{
		ID:               r.ID,
		UserID:           r.UserID,
		DriverID:         r.DriverID,
		DriverFirstName:  profilePlaceholder,
		DriverLastName:   profilePlaceholder,
		DriverPictureURL: profilePlaceholder,
		Start:            r.Start,
		End:              r.End,
		FromWhere:        r.FromWhere,
		ToWhere:          r.ToWhere,
		PriceCents:       r.PriceCents,
		Status:           r.Status,
		CreatedAt:        r.CreatedAt,
	}
	if s.dir == nil {
		return view
	}
	driver, err := s.dir.GetDriver(ctx, r.DriverID)
	if err != nil || driver.Profile == nil {
		return view
	}
	view.DriverFirstName = driver.Profile.FirstName
	view.DriverLastName = driver.Profile.LastName
	view.DriverPictureURL = driver.Profile.PictureURL
	return view
}
