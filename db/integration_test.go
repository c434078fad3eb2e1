//go:build integration

// Runs the SQL repositories and the Mongo audit trail against real servers:
//
//	PG_DSN=postgres://... MONGO_URI=mongodb://... go test -tags integration ./db/
package db_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"eventhub/config"
	"eventhub/db"
	"eventhub/logging"
	"eventhub/models"
	"eventhub/services"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	ctx := context.Background()
	sqldb, err := db.Open(ctx, config.Config{PostgresDSN: dsn, PGMaxOpenConns: 20, PGMaxIdleConns: 10})
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	require.NoError(t, db.Migrate(ctx, sqldb))
	_, err = sqldb.Exec(`TRUNCATE registrations, events, users RESTART IDENTITY`)
	require.NoError(t, err)
	return sqldb
}

type repos struct {
	users  models.UserRepository
	events models.EventRepository
	regs   models.RegistrationRepository
}

func newRepos(sqldb *sql.DB) repos {
	return repos{
		users:  models.NewSQLUserRepository(sqldb),
		events: models.NewSQLEventRepository(sqldb),
		regs:   models.NewSQLRegistrationRepository(sqldb),
	}
}

func (r repos) user(t *testing.T, email string) models.User {
	t.Helper()
	u := models.User{Name: email, Email: email, PasswordHash: "x"}
	require.NoError(t, r.users.Create(context.Background(), &u))
	return u
}

func (r repos) event(t *testing.T, capacity int) models.Event {
	t.Helper()
	e := models.Event{Title: "Go meetup", Location: "Budapest", Date: time.Now().Add(48 * time.Hour), MaxAttendees: capacity}
	require.NoError(t, r.events.Create(context.Background(), &e))
	return e
}

func TestSQL_ConcurrentRegistrationsRespectCapacity(t *testing.T) {
	r := newRepos(openDB(t))
	ctx := context.Background()
	svc := services.NewRegistrationService(r.events, r.users, r.regs, nil, logging.Discard())

	const capacity, callers = 5, 30
	ev := r.event(t, capacity)

	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := range callers {
		u := r.user(t, fmt.Sprintf("u%d@events.hu", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(ctx, services.Principal{UserID: u.ID}, ev.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		require.True(t, errors.Is(err, services.ErrEventFull) || errors.Is(err, services.ErrConflict), err)
	}
	require.Equal(t, capacity, ok)

	n, err := r.regs.CountActive(ctx, ev.ID)
	require.NoError(t, err)
	require.Equal(t, capacity, n)
}

func TestSQL_UniqueConstraintAndSoftDelete(t *testing.T) {
	r := newRepos(openDB(t))
	ctx := context.Background()
	u := r.user(t, "alice@events.hu")
	ev := r.event(t, 10)

	insert := func() error {
		return r.regs.WithEventLock(ctx, ev.ID, func(ctx context.Context, tx models.RegistrationTx) error {
			return tx.Insert(ctx, &models.Registration{UserID: u.ID, Status: models.StatusPending, RegisteredAt: time.Now()})
		})
	}
	require.NoError(t, insert())
	require.ErrorIs(t, insert(), models.ErrDuplicate)

	dup := models.User{Name: "A", Email: "ALICE@events.hu", PasswordHash: "x"}
	require.ErrorIs(t, r.users.Create(ctx, &dup), models.ErrDuplicate)

	require.NoError(t, r.events.SoftDelete(ctx, ev.ID, time.Now()))
	_, err := r.events.GetByID(ctx, ev.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
	require.ErrorIs(t, r.regs.WithEventLock(ctx, ev.ID, func(context.Context, models.RegistrationTx) error { return nil }), models.ErrNotFound)

	regs, err := r.regs.ListForEvent(ctx, ev.ID, "")
	require.NoError(t, err)
	require.Len(t, regs, 1)

	require.NoError(t, r.regs.Delete(ctx, u.ID, ev.ID))
	require.ErrorIs(t, r.regs.Delete(ctx, u.ID, ev.ID), models.ErrNotFound)
}

func TestSQL_UpdateEventUnderLock(t *testing.T) {
	r := newRepos(openDB(t))
	ctx := context.Background()
	svc := services.NewEventService(r.events, r.regs)
	admin := services.Principal{UserID: 1, IsAdmin: true}
	ev := r.event(t, 3)

	updated, err := svc.Update(ctx, admin, ev.ID, services.EventInput{
		Title: "Renamed", Date: ev.Date, Location: ev.Location, MaxAttendees: 7,
	})
	require.NoError(t, err)
	require.Equal(t, 7, updated.MaxAttendees)

	got, err := r.events.GetByID(ctx, ev.ID)
	require.NoError(t, err)
	require.Equal(t, "Renamed", got.Title)
}

func TestMongo_AuditTrail(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cli.Disconnect(context.Background()) })

	col := cli.Database("eventhub_test").Collection(fmt.Sprintf("audit_%d", time.Now().UnixNano()))
	t.Cleanup(func() { _ = col.Drop(context.Background()) })
	require.NoError(t, models.EnsureAuditIndexes(ctx, col))

	audit := models.NewMongoAuditRepository(col)
	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, audit.Record(ctx, models.AuditEntry{EventID: 1, UserID: 2, ActorID: 2, Action: models.AuditRegistered, Status: models.StatusPending, At: at}))
	require.NoError(t, audit.Record(ctx, models.AuditEntry{EventID: 1, UserID: 2, ActorID: 9, Action: models.AuditStatusSet, Status: models.StatusAccepted, At: at.Add(time.Second)}))
	require.NoError(t, audit.Record(ctx, models.AuditEntry{EventID: 5, UserID: 2, ActorID: 2, Action: models.AuditRegistered, At: at}))

	trail, err := audit.ListForEvent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	require.Equal(t, models.AuditRegistered, trail[0].Action)
	require.Equal(t, models.AuditStatusSet, trail[1].Action)
	require.Equal(t, int64(9), trail[1].ActorID)
}
