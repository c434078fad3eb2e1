package services_test

import (
	"context"
	"testing"
	"time"

	"eventhub/logging"
	"eventhub/models"
	"eventhub/models/mocks"
	"eventhub/services"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	ctx    context.Context
	store  *mocks.Store
	regs   *services.RegistrationService
	events *services.EventService
	users  *services.UserService

	admin services.Principal
	alice services.Principal
	bob   services.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := mocks.NewStore()
	clock := func() time.Time { return testNow }

	f := &fixture{
		ctx:   context.Background(),
		store: store,
		regs: services.NewRegistrationService(store.EventRepo(), store.UserRepo(), store.RegRepo(), store.AuditRepo(), logging.Discard()).
			WithClock(clock),
		events: services.NewEventService(store.EventRepo(), store.RegRepo()).WithClock(clock),
		users:  services.NewUserService(store.UserRepo()),
	}

	admin := store.PutUser(models.User{Name: "Admin", Email: "admin@events.hu", IsAdmin: true})
	alice := store.PutUser(models.User{Name: "Alice", Email: "alice@events.hu"})
	bob := store.PutUser(models.User{Name: "Bob", Email: "bob@events.hu"})
	f.admin = services.Principal{UserID: admin.ID, IsAdmin: true}
	f.alice = services.Principal{UserID: alice.ID}
	f.bob = services.Principal{UserID: bob.ID}
	return f
}

// event stores an upcoming event with the given capacity.
func (f *fixture) event(capacity int) models.Event {
	return f.store.PutEvent(models.Event{
		Title:        "Go meetup",
		Location:     "Budapest",
		Date:         testNow.Add(7 * 24 * time.Hour),
		MaxAttendees: capacity,
	})
}

// user stores another regular user.
func (f *fixture) user(name string) services.Principal {
	u := f.store.PutUser(models.User{Name: name, Email: name + "@events.hu"})
	return services.Principal{UserID: u.ID}
}
