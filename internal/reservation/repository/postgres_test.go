package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/example/ridebook/internal/reservation/domain"
	"github.com/example/ridebook/internal/reservation/repository"
)

func newPostgresRepo(t *testing.T, ctx context.Context) (*repository.PostgresRepository, *sql.DB) {
	t.Helper()
	pg, err := postgrescontainer.RunContainer(ctx, testcontainers.WithImage("postgres:16"), postgrescontainer.WithDatabase("ridebook"), postgrescontainer.WithUsername("postgres"), postgrescontainer.WithPassword("postgres"), testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections")))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, pg.Terminate(ctx))
	})

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	require.NoError(t, db.PingContext(ctx))
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, repository.Migrate(db))
	return repository.NewPostgresRepository(db), db
}

func TestPostgresRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo, _ := newPostgresRepo(t, ctx)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := repo.GetReservationByID(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)

	seeded := domain.Reservation{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		DriverID:   uuid.New(),
		Start:      base,
		End:        base.Add(time.Hour),
		FromWhere:  "Airport",
		ToWhere:    "Hotel",
		PriceCents: 4500,
		Status:     domain.StatusPending,
		CreatedAt:  base.Add(-7 * time.Hour),
		Version:    1,
	}
	_, err = repo.CreateReservation(ctx, seeded)
	require.NoError(t, err)

	fetched, err := repo.GetReservationByID(ctx, seeded.ID)
	require.NoError(t, err)
	require.Equal(t, seeded.UserID, fetched.UserID)
	require.True(t, fetched.Start.Equal(seeded.Start))
	require.Equal(t, int64(4500), fetched.PriceCents)

	stale, err := repo.ListStalePending(ctx, base.Add(-6*time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)

	fetched.Status = domain.StatusApproved
	updated, err := repo.UpdateReservation(ctx, fetched)
	require.NoError(t, err)
	require.Equal(t, int64(2), updated.Version)

	// window touching the end boundary still conflicts
	overlapping, err := repo.ListApprovedOverlapping(ctx, base.Add(time.Hour), base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, overlapping, 1)

	overlapping, err = repo.ListApprovedOverlapping(ctx, base.Add(time.Hour).Add(time.Second), base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Empty(t, overlapping)

	byUser, err := repo.ListByUser(ctx, seeded.UserID)
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	byDriver, err := repo.ListByDriver(ctx, seeded.DriverID)
	require.NoError(t, err)
	require.Len(t, byDriver, 1)

	_, err = repo.UpdateReservation(ctx, domain.Reservation{ID: uuid.New(), Status: domain.StatusCanceled})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOutboxPublisherInsertsRow(t *testing.T) {
	ctx := context.Background()
	_, db := newPostgresRepo(t, ctx)

	publisher := repository.NewOutboxPublisher(db, "reservation.events")
	require.NoError(t, publisher.Publish(ctx, domain.ReservationEvent{
		ReservationID: uuid.New(),
		Type:          domain.EventReservationCreated,
		Payload:       map[string]any{"driver_id": uuid.NewString()},
	}))

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT count(*) FROM outbox WHERE published = false AND topic = 'reservation.events'`).Scan(&count))
	require.Equal(t, 1, count)
}
