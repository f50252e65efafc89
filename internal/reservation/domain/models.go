package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "PENDING"
	StatusApproved  ReservationStatus = "APPROVED"
	StatusCompleted ReservationStatus = "COMPLETED"
	StatusDeclined  ReservationStatus = "DECLINED"
	StatusCanceled  ReservationStatus = "CANCELED"
)

var ErrNotFound = errors.New("reservation not found")
var ErrInvalidTransition = errors.New("invalid reservation status transition")
var ErrDriverBusy = errors.New("driver has a conflicting approved reservation")
var ErrInvalidWindow = errors.New("startDateTime must precede endDateTime")
var ErrNegativePrice = errors.New("priceCents must be non-negative")

// ParseStatus validates a wire value against the closed status set.
func ParseStatus(s string) (ReservationStatus, bool) {
	switch ReservationStatus(s) {
	case StatusPending, StatusApproved, StatusCompleted, StatusDeclined, StatusCanceled:
		return ReservationStatus(s), true
	default:
		return "", false
	}
}

var allowedTransitions = map[ReservationStatus][]ReservationStatus{
	StatusPending:  {StatusApproved, StatusDeclined, StatusCanceled},
	StatusApproved: {StatusCompleted, StatusCanceled},
}

func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	if s == next {
		return true
	}
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s ReservationStatus) Terminal() bool {
	return len(allowedTransitions[s]) == 0
}

type Reservation struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	DriverID   uuid.UUID
	Start      time.Time
	End        time.Time
	FromWhere  string
	ToWhere    string
	PriceCents int64

	Status    ReservationStatus
	CreatedAt time.Time
	Version   int64
}

// Overlaps implements the inclusive-boundary conflict rule: two windows
// conflict unless one strictly precedes the other. A reservation ending at
// 11:00 still blocks a window starting at 11:00.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !aEnd.Before(bStart)
}

// OverlapsWindow applies the conflict rule to the reservation's own window.
func (r Reservation) OverlapsWindow(windowStart, windowEnd time.Time) bool {
	return Overlaps(r.Start, r.End, windowStart, windowEnd)
}

type ReservationEventType string

const (
	EventReservationCreated  ReservationEventType = "ReservationCreated"
	EventStatusChanged       ReservationEventType = "ReservationStatusChanged"
	EventReservationDeclined ReservationEventType = "ReservationAutoDeclined"
)

type ReservationEvent struct {
	ID            int64
	ReservationID uuid.UUID
	Type          ReservationEventType
	Payload       map[string]any
	CreatedAt     time.Time
}

type Repository interface {
	CreateReservation(ctx context.Context, r Reservation) (Reservation, error)
	GetReservationByID(ctx context.Context, id uuid.UUID) (Reservation, error)
	UpdateReservation(ctx context.Context, r Reservation) (Reservation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Reservation, error)
	ListByDriver(ctx context.Context, driverID uuid.UUID) ([]Reservation, error)
	// ListApprovedOverlapping returns approved reservations whose window
	// conflicts with [windowStart, windowEnd] under the inclusive rule.
	ListApprovedOverlapping(ctx context.Context, windowStart, windowEnd time.Time) ([]Reservation, error)
	// ListStalePending returns pending reservations created at or before cutoff.
	ListStalePending(ctx context.Context, cutoff time.Time) ([]Reservation, error)
}

type IdempotencyRepository interface {
	GetResponse(ctx context.Context, key string) ([]byte, bool, error)
	PutResponse(ctx context.Context, key string, payload []byte) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event ReservationEvent) error
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
