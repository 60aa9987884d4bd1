package orders

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type repoSuite struct {
	suite.Suite

	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
	repo      *Repo
}

func TestRepoSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	suite.Run(t, new(repoSuite))
}

func (s *repoSuite) SetupSuite() {
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithInitScripts(filepath.Join("..", "..", "migrations", "schema.sql")),
		postgres.WithDatabase("fulfillment"),
		postgres.WithUsername("app"),
		postgres.WithPassword("secret"),
		postgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = ctr

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.pool, err = pgxpool.New(ctx, connStr)
	s.Require().NoError(err)

	s.repo = &Repo{DB: s.pool}
}

func (s *repoSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		s.NoError(s.container.Terminate(context.Background()))
	}
}

func (s *repoSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), `DELETE FROM orders`)
	s.Require().NoError(err)
}

func (s *repoSuite) TestCreateAndGet() {
	t := s.T()
	ctx := t.Context()

	o := pendingOrder(time.Now().UTC())
	require.NoError(t, s.repo.Create(ctx, o))

	got, err := s.repo.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, o.ID, got.ID)
	require.Equal(t, StatusPending, got.Status)
	require.Equal(t, o.Units, got.Units)
	require.True(t, o.TotalPrice.Equal(got.TotalPrice), "want %s, got %s", o.TotalPrice, got.TotalPrice)
	require.Nil(t, got.WarehouseID)
	require.Nil(t, got.ConfirmedAt)

	_, err = s.repo.Get(ctx, "b7fa2cb2-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, ErrNotFound)
}

func (s *repoSuite) TestConfirmIsGuarded() {
	t := s.T()
	ctx := t.Context()

	o := pendingOrder(time.Now().UTC())
	require.NoError(t, s.repo.Create(ctx, o))

	at := time.Now().UTC()
	require.NoError(t, s.repo.Confirm(ctx, o.ID, 2, "Bogota", at))

	got, err := s.repo.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, got.Status)
	require.NotNil(t, got.WarehouseID)
	require.EqualValues(t, 2, *got.WarehouseID)
	require.NotNil(t, got.ConfirmedAt)

	// A second confirm loses against the guard.
	require.ErrorIs(t, s.repo.Confirm(ctx, o.ID, 1, "Cali", at), ErrInvalidTransition)
	require.ErrorIs(t, s.repo.Reject(ctx, o.ID), ErrInvalidTransition)
}

func (s *repoSuite) TestTransitionLifecycle() {
	t := s.T()
	ctx := t.Context()

	o := pendingOrder(time.Now().UTC())
	require.NoError(t, s.repo.Create(ctx, o))
	require.NoError(t, s.repo.Confirm(ctx, o.ID, 2, "Bogota", time.Now().UTC()))

	at := time.Now().UTC()
	require.ErrorIs(t, s.repo.Transition(ctx, o.ID, StatusDelivered, at), ErrInvalidTransition)
	require.NoError(t, s.repo.Transition(ctx, o.ID, StatusInTransit, at))
	require.NoError(t, s.repo.Transition(ctx, o.ID, StatusDelivered, at))

	got, err := s.repo.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, got.Status)
	require.NotNil(t, got.DeliveredAt)
}

func (s *repoSuite) TestSweepStalePending() {
	t := s.T()
	ctx := t.Context()

	stale := pendingOrder(time.Now().UTC().Add(-time.Hour))
	fresh := pendingOrder(time.Now().UTC())
	require.NoError(t, s.repo.Create(ctx, stale))
	require.NoError(t, s.repo.Create(ctx, fresh))

	n, err := s.repo.SweepStalePending(ctx, 10*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := s.repo.Get(ctx, stale.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, got.Status)

	got, err = s.repo.Get(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.Status)
}

func (s *repoSuite) TestList() {
	t := s.T()
	ctx := t.Context()

	first := pendingOrder(time.Now().UTC().Add(-time.Minute))
	second := pendingOrder(time.Now().UTC())
	require.NoError(t, s.repo.Create(ctx, first))
	require.NoError(t, s.repo.Create(ctx, second))

	out, err := s.repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, second.ID, out[0].ID, "newest first")
}
