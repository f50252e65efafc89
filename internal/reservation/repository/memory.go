package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/ridebook/internal/reservation/domain"
)

// MemoryRepository provides an in-memory implementation suitable for tests
// and local demos.
type MemoryRepository struct {
	mu           sync.RWMutex
	reservations map[uuid.UUID]domain.Reservation
}

// NewMemoryRepository constructs an empty memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{reservations: make(map[uuid.UUID]domain.Reservation)}
}

// CreateReservation stores the reservation and returns it.
func (m *MemoryRepository) CreateReservation(_ context.Context, r domain.Reservation) (domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations[r.ID] = r
	return r, nil
}

// GetReservationByID retrieves a reservation.
func (m *MemoryRepository) GetReservationByID(_ context.Context, id uuid.UUID) (domain.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reservations[id]
	if !ok {
		return domain.Reservation{}, domain.ErrNotFound
	}
	return r, nil
}

// UpdateReservation replaces the stored reservation, bumping the version.
func (m *MemoryRepository) UpdateReservation(_ context.Context, r domain.Reservation) (domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.reservations[r.ID]
	if !ok {
		return domain.Reservation{}, domain.ErrNotFound
	}
	r.Version = existing.Version + 1
	m.reservations[r.ID] = r
	return r, nil
}

// ListByUser returns all reservations for the user, any status.
func (m *MemoryRepository) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Reservation, 0)
	for _, r := range m.reservations {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListByDriver returns all reservations for the driver, any status.
func (m *MemoryRepository) ListByDriver(_ context.Context, driverID uuid.UUID) ([]domain.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Reservation, 0)
	for _, r := range m.reservations {
		if r.DriverID == driverID {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListApprovedOverlapping scans approved reservations conflicting with the
// window under the inclusive-boundary rule.
func (m *MemoryRepository) ListApprovedOverlapping(_ context.Context, windowStart, windowEnd time.Time) ([]domain.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Reservation, 0)
	for _, r := range m.reservations {
		if r.Status == domain.StatusApproved && r.OverlapsWindow(windowStart, windowEnd) {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListStalePending returns pending reservations created at or before cutoff.
func (m *MemoryRepository) ListStalePending(_ context.Context, cutoff time.Time) ([]domain.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Reservation, 0)
	for _, r := range m.reservations {
		if r.Status == domain.StatusPending && !r.CreatedAt.After(cutoff) {
			out = append(out, r)
		}
	}
	return out, nil
}
