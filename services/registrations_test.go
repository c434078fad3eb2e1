package services_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"eventhub/models"
	"eventhub/services"
)

func TestRegister_CreatesPending(t *testing.T) {
	f := newFixture(t)
	ev := f.event(10)

	reg, err := f.regs.Register(f.ctx, f.alice, ev.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, reg.Status)
	require.Equal(t, f.alice.UserID, reg.UserID)
	require.Equal(t, ev.ID, reg.EventID)
	require.Equal(t, testNow, reg.RegisteredAt)
	require.Equal(t, 1, f.store.ActiveCount(ev.ID))
}

func TestRegister_Twice_Duplicate(t *testing.T) {
	f := newFixture(t)
	ev := f.event(10)

	_, err := f.regs.Register(f.ctx, f.alice, ev.ID)
	require.NoError(t, err)
	_, err = f.regs.Register(f.ctx, f.alice, ev.ID)
	require.ErrorIs(t, err, services.ErrDuplicateRegistration)
	require.Len(t, f.store.Regs, 1)
}

func TestRegister_MissingEvent_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.regs.Register(f.ctx, f.alice, 999)
	require.ErrorIs(t, err, services.ErrNotFound)
}

func TestRegister_DeletedEvent_NotFound(t *testing.T) {
	f := newFixture(t)
	ev := f.event(10)
	require.NoError(t, f.events.Delete(f.ctx, f.admin, ev.ID))

	_, err := f.regs.Register(f.ctx, f.alice, ev.ID)
	require.ErrorIs(t, err, services.ErrNotFound)
}

func TestRegister_PastEvent_Validation(t *testing.T) {
	f := newFixture(t)
	ev := f.store.PutEvent(models.Event{Title: "Old", Location: "X", Date: testNow.Add(-time.Hour), MaxAttendees: 5})

	_, err := f.regs.Register(f.ctx, f.alice, ev.ID)
	require.ErrorIs(t, err, services.ErrValidation)
	require.Empty(t, f.store.Regs)
}

func TestRegister_Full(t *testing.T) {
	f := newFixture(t)
	ev := f.event(1)

	_, err := f.regs.Register(f.ctx, f.alice, ev.ID)
	require.NoError(t, err)
	_, err = f.regs.Register(f.ctx, f.bob, ev.ID)
	require.ErrorIs(t, err, services.ErrEventFull)
	require.Equal(t, 1, f.store.ActiveCount(ev.ID))
}

func TestRegister_RejectedFreesSeat(t *testing.T) {
	f := newFixture(t)
	ev := f.event(1)

	reg, err := f.regs.Register(f.ctx, f.alice, ev.ID)
	require.NoError(t, err)
	_, err = f.regs.SetStatus(f.ctx, f.admin, ev.ID, reg.ID, models.StatusRejected)
	require.NoError(t, err)

	_, err = f.regs.Register(f.ctx, f.bob, ev.ID)
	require.NoError(t, err)
}

func TestRegister_ConcurrentNeverExceedsCapacity(t *testing.T) {
	f := newFixture(t)
	const capacity, callers = 5, 40
	ev := f.event(capacity)

	principals := make([]services.Principal, callers)
	for i := range principals {
		principals[i] = f.user(fmt.Sprintf("u%d", i))
	}

	var (
		wg                sync.WaitGroup
		mu                sync.Mutex
		ok, full, unknown int
	)
	for _, p := range principals {
		wg.Add(1)
		go func(p services.Principal) {
			defer wg.Done()
			_, err := f.regs.Register(f.ctx, p, ev.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, services.ErrEventFull):
				full++
			default:
				unknown++
			}
		}(p)
	}
	wg.Wait()

	require.Equal(t, capacity, ok)
	require.Equal(t, callers-capacity, full)
	require.Zero(t, unknown)
	require.Equal(t, capacity, f.store.ActiveCount(ev.ID))
}

func TestRegister_ConcurrentSameUserOneRow(t *testing.T) {
	f := newFixture(t)
	ev := f.event(100)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.regs.Register(f.ctx, f.alice, ev.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, services.ErrDuplicateRegistration)
	}
	require.Equal(t, 1, succeeded)
	require.Len(t, f.store.Regs, 1)
}

func TestRegister_RetriesOneConflict(t *testing.T) {
	f := newFixture(t)
	ev := f.event(10)
	f.store.FailTx = 1

	_, err := f.regs.Register(f.ctx, f.alice, ev.ID)
	require.NoError(t, err)
	require.Zero(t, f.store.FailTx)
}

func TestRegister_TwoConflicts_Conflict(t *testing.T) {
	f := newFixture(t)
	ev := f.event(10)
	f.store.FailTx = 2

	_, err := f.regs.Register(f.ctx, f.alice, ev.ID)
	require.ErrorIs(t, err, services.ErrConflict)
	require.Empty(t, f.store.Regs)
}

func TestUnregister_ThenRegisterAgain(t *testing.T) {
	f := newFixture(t)
	ev := f.event(10)

	_, err := f.regs.Register(f.ctx, f.alice, ev.ID)
	require.NoError(t, err)
	require.NoError(t, f.regs.Unregister(f.ctx, f.alice, ev.ID))
	require.Empty(t, f.store.Regs)

	_, err = f.regs.Register(f.ctx, f.alice, ev.ID)
	require.NoError(t, err)
}

func TestUnregister_NotRegistered(t *testing.T) {
	f := newFixture(t)
	ev := f.event(10)

	err := f.regs.Unregister(f.ctx, f.alice, ev.ID)
	require.ErrorIs(t, err, services.ErrNotRegistered)
}

func TestUnregister_MissingEvent(t *testing.T) {
	f := newFixture(t)
	err := f.regs.Unregister(f.ctx, f.alice, 12345)
	require.ErrorIs(t, err, services.ErrNotFound)
}

func TestAdminRegister(t *testing.T) {
	f := newFixture(t)
	ev := f.event(10)

	reg, err := f.regs.AdminRegister(f.ctx, f.admin, ev.ID, f.bob.UserID)
	require.NoError(t, err)
	require.Equal(t, f.bob.UserID, reg.UserID)
	require.Equal(t, models.StatusPending, reg.Status)

	_, err = f.regs.AdminRegister(f.ctx, f.admin, ev.ID, 999)
	require.ErrorIs(t, err, services.ErrNotFound)

	_, err = f.regs.AdminRegister(f.ctx, f.alice, ev.ID, f.alice.UserID)
	require.ErrorIs(t, err, services.ErrForbidden)
}

func TestAdminRemoveUser(t *testing.T) {
	f := newFixture(t)
	ev := f.event(10)

	_, err := f.regs.Register(f.ctx, f.bob, ev.ID)
	require.NoError(t, err)

	require.ErrorIs(t, f.regs.AdminRemoveUser(f.ctx, f.alice, ev.ID, f.bob.UserID), services.ErrForbidden)
	require.NoError(t, f.regs.AdminRemoveUser(f.ctx, f.admin, ev.ID, f.bob.UserID))

	mine, err := f.regs.ListMine(f.ctx, f.bob)
	require.NoError(t, err)
	require.Empty(t, mine)

	require.ErrorIs(t, f.regs.AdminRemoveUser(f.ctx, f.admin, ev.ID, f.bob.UserID), services.ErrNotRegistered)
}

func TestSetStatus_Transitions(t *testing.T) {
	cases := []struct {
		name    string
		from    models.Status
		to      models.Status
		wantErr error
	}{
		{"pending to accepted", models.StatusPending, models.StatusAccepted, nil},
		{"pending to rejected", models.StatusPending, models.StatusRejected, nil},
		{"accepted to pending", models.StatusAccepted, models.StatusPending, services.ErrInvalidTransition},
		{"accepted to rejected", models.StatusAccepted, models.StatusRejected, services.ErrInvalidTransition},
		{"rejected to accepted", models.StatusRejected, models.StatusAccepted, services.ErrInvalidTransition},
		{"pending to pending", models.StatusPending, models.StatusPending, services.ErrInvalidTransition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ev := f.event(10)
			reg, err := f.regs.Seed(f.ctx, ev.ID, f.alice.UserID, tc.from, testNow)
			require.NoError(t, err)

			got, err := f.regs.SetStatus(f.ctx, f.admin, ev.ID, reg.ID, tc.to)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				require.Equal(t, tc.from, f.store.Regs[reg.ID].Status)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.to, got.Status)
			require.Equal(t, tc.to, f.store.Regs[reg.ID].Status)
		})
	}
}

func TestSetStatus_Errors(t *testing.T) {
	f := newFixture(t)
	ev := f.event(10)
	other := f.event(10)
	reg, err := f.regs.Register(f.ctx, f.alice, ev.ID)
	require.NoError(t, err)

	_, err = f.regs.SetStatus(f.ctx, f.alice, ev.ID, reg.ID, models.StatusAccepted)
	require.ErrorIs(t, err, services.ErrForbidden)

	_, err = f.regs.SetStatus(f.ctx, f.admin, ev.ID, reg.ID, "maybe")
	require.ErrorIs(t, err, services.ErrValidation)

	_, err = f.regs.SetStatus(f.ctx, f.admin, ev.ID, 999, models.StatusAccepted)
	require.ErrorIs(t, err, services.ErrNotFound)

	// a registration is addressed through its own event
	_, err = f.regs.SetStatus(f.ctx, f.admin, other.ID, reg.ID, models.StatusAccepted)
	require.ErrorIs(t, err, services.ErrNotFound)

	got, err := f.regs.SetStatus(f.ctx, f.admin, ev.ID, reg.ID, "ACCEPTED")
	require.NoError(t, err)
	require.Equal(t, models.StatusAccepted, got.Status)
}

func TestReopen(t *testing.T) {
	f := newFixture(t)
	ev := f.event(10)
	reg, err := f.regs.Register(f.ctx, f.alice, ev.ID)
	require.NoError(t, err)

	_, err = f.regs.Reopen(f.ctx, f.admin, ev.ID, reg.ID)
	require.ErrorIs(t, err, services.ErrInvalidTransition)

	_, err = f.regs.SetStatus(f.ctx, f.admin, ev.ID, reg.ID, models.StatusAccepted)
	require.NoError(t, err)

	_, err = f.regs.Reopen(f.ctx, f.bob, ev.ID, reg.ID)
	require.ErrorIs(t, err, services.ErrForbidden)

	got, err := f.regs.Reopen(f.ctx, f.admin, ev.ID, reg.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, got.Status)
}

func TestReopen_RejectedRechecksCapacity(t *testing.T) {
	f := newFixture(t)
	ev := f.event(1)

	first, err := f.regs.Register(f.ctx, f.alice, ev.ID)
	require.NoError(t, err)
	_, err = f.regs.SetStatus(f.ctx, f.admin, ev.ID, first.ID, models.StatusRejected)
	require.NoError(t, err)

	// bob takes the freed seat
	_, err = f.regs.Register(f.ctx, f.bob, ev.ID)
	require.NoError(t, err)

	_, err = f.regs.Reopen(f.ctx, f.admin, ev.ID, first.ID)
	require.ErrorIs(t, err, services.ErrEventFull)
	require.Equal(t, models.StatusRejected, f.store.Regs[first.ID].Status)
	require.Equal(t, 1, f.store.ActiveCount(ev.ID))
}

func TestListForEvent(t *testing.T) {
	f := newFixture(t)
	ev := f.event(10)
	a, err := f.regs.Register(f.ctx, f.alice, ev.ID)
	require.NoError(t, err)
	_, err = f.regs.Register(f.ctx, f.bob, ev.ID)
	require.NoError(t, err)
	_, err = f.regs.SetStatus(f.ctx, f.admin, ev.ID, a.ID, models.StatusAccepted)
	require.NoError(t, err)

	all, err := f.regs.ListForEvent(f.ctx, f.admin, ev.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	accepted, err := f.regs.ListForEvent(f.ctx, f.admin, ev.ID, "Accepted")
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	require.Equal(t, f.alice.UserID, accepted[0].UserID)

	_, err = f.regs.ListForEvent(f.ctx, f.admin, ev.ID, "nope")
	require.ErrorIs(t, err, services.ErrValidation)

	_, err = f.regs.ListForEvent(f.ctx, f.alice, ev.ID, "")
	require.ErrorIs(t, err, services.ErrForbidden)
}

func TestListForEvent_SurvivesSoftDelete(t *testing.T) {
	f := newFixture(t)
	ev := f.event(10)
	_, err := f.regs.Register(f.ctx, f.alice, ev.ID)
	require.NoError(t, err)

	require.NoError(t, f.events.Delete(f.ctx, f.admin, ev.ID))
	listed, err := f.events.List(f.ctx)
	require.NoError(t, err)
	require.Empty(t, listed)

	regs, err := f.regs.ListForEvent(f.ctx, f.admin, ev.ID, "")
	require.NoError(t, err)
	require.Len(t, regs, 1)

	trail, err := f.regs.AuditTrail(f.ctx, f.admin, ev.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
}

func TestListForEvent_UnknownEvent(t *testing.T) {
	f := newFixture(t)

	_, err := f.regs.ListForEvent(f.ctx, f.admin, 999, "")
	require.ErrorIs(t, err, services.ErrNotFound)
	_, err = f.regs.AuditTrail(f.ctx, f.admin, 999)
	require.ErrorIs(t, err, services.ErrNotFound)

	// non-admins are refused before the lookup
	_, err = f.regs.ListForEvent(f.ctx, f.alice, 999, "")
	require.ErrorIs(t, err, services.ErrForbidden)
}

func TestAuditTrail(t *testing.T) {
	f := newFixture(t)
	ev := f.event(10)

	reg, err := f.regs.Register(f.ctx, f.alice, ev.ID)
	require.NoError(t, err)
	_, err = f.regs.SetStatus(f.ctx, f.admin, ev.ID, reg.ID, models.StatusAccepted)
	require.NoError(t, err)
	_, err = f.regs.Reopen(f.ctx, f.admin, ev.ID, reg.ID)
	require.NoError(t, err)
	require.NoError(t, f.regs.Unregister(f.ctx, f.alice, ev.ID))

	_, err = f.regs.AuditTrail(f.ctx, f.alice, ev.ID)
	require.ErrorIs(t, err, services.ErrForbidden)

	trail, err := f.regs.AuditTrail(f.ctx, f.admin, ev.ID)
	require.NoError(t, err)
	require.Len(t, trail, 4)

	actions := make([]models.AuditAction, len(trail))
	for i, e := range trail {
		actions[i] = e.Action
	}
	require.Equal(t, []models.AuditAction{
		models.AuditRegistered, models.AuditStatusSet, models.AuditReopened, models.AuditUnregistered,
	}, actions)
	require.Equal(t, f.admin.UserID, trail[1].ActorID)
	require.Equal(t, models.StatusAccepted, trail[1].Status)
}

func TestAuditFailureDoesNotFailRegistration(t *testing.T) {
	f := newFixture(t)
	ev := f.event(10)
	f.store.AuditErr = errors.New("mongo down")

	_, err := f.regs.Register(f.ctx, f.alice, ev.ID)
	require.NoError(t, err)
	require.Len(t, f.store.Regs, 1)
	require.Empty(t, f.store.Audit)
}
