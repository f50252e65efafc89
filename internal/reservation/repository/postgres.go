package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/ridebook/internal/reservation/domain"
)

const reservationColumns = `id, user_id, driver_id, start_time, end_time, from_where, to_where, price_cents, status, created_at, version`

// PostgresRepository persists reservations in a reservations table managed by
// the bundled migrations.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateReservation inserts the reservation row.
func (p *PostgresRepository) CreateReservation(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
	const query = `INSERT INTO reservations (` + reservationColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := p.db.ExecContext(ctx, query,
		r.ID, r.UserID, r.DriverID, r.Start, r.End, r.FromWhere, r.ToWhere, r.PriceCents, string(r.Status), r.CreatedAt, r.Version)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("insert reservation: %w", err)
	}
	return r, nil
}

// GetReservationByID retrieves one row.
func (p *PostgresRepository) GetReservationByID(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	r, err := scanReservation(p.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Reservation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("select reservation: %w", err)
	}
	return r, nil
}

// UpdateReservation persists the status and bumps the row version.
func (p *PostgresRepository) UpdateReservation(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
	const query = `UPDATE reservations SET status = $2, version = version + 1 WHERE id = $1 RETURNING version`
	var version int64
	err := p.db.QueryRowContext(ctx, query, r.ID, string(r.Status)).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Reservation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("update reservation: %w", err)
	}
	r.Version = version
	return r, nil
}

// ListByUser returns all reservations for the user, any status.
func (p *PostgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations WHERE user_id = $1 ORDER BY created_at`
	return p.queryReservations(ctx, query, userID)
}

// ListByDriver returns all reservations for the driver, any status.
func (p *PostgresRepository) ListByDriver(ctx context.Context, driverID uuid.UUID) ([]domain.Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations WHERE driver_id = $1 ORDER BY created_at`
	return p.queryReservations(ctx, query, driverID)
}

// ListApprovedOverlapping selects approved rows conflicting with the window.
// The predicate mirrors domain.Overlaps: both boundaries inclusive.
func (p *PostgresRepository) ListApprovedOverlapping(ctx context.Context, windowStart, windowEnd time.Time) ([]domain.Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations
WHERE status = 'APPROVED' AND start_time <= $2 AND end_time >= $1`
	return p.queryReservations(ctx, query, windowStart, windowEnd)
}

// ListStalePending selects pending rows created at or before cutoff.
func (p *PostgresRepository) ListStalePending(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations
WHERE status = 'PENDING' AND created_at <= $1 ORDER BY created_at`
	return p.queryReservations(ctx, query, cutoff)
}

func (p *PostgresRepository) queryReservations(ctx context.Context, query string, args ...any) ([]domain.Reservation, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select reservations: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Reservation, 0)
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservations: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (domain.Reservation, error) {
	var r domain.Reservation
	var status string
	if err := row.Scan(&r.ID, &r.UserID, &r.DriverID, &r.Start, &r.End, &r.FromWhere, &r.ToWhere, &r.PriceCents, &status, &r.CreatedAt, &r.Version); err != nil {
		return domain.Reservation{}, err
	}
	r.Status = domain.ReservationStatus(status)
	r.Start = r.Start.UTC()
	r.End = r.End.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}
