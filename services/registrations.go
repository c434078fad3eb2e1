package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eventhub/models"
)

// txAttempts bounds the locked registration transaction: one try plus one
// retry on a serialization conflict.
const txAttempts = 2

// RegistrationService owns every registration invariant: one row per
// (user, event), capacity, and the status table.
type RegistrationService struct {
	events models.EventRepository
	users  models.UserRepository
	regs   models.RegistrationRepository
	audit  models.AuditRepository
	log    *slog.Logger
	now    func() time.Time
}

func NewRegistrationService(
	events models.EventRepository,
	users models.UserRepository,
	regs models.RegistrationRepository,
	audit models.AuditRepository,
	log *slog.Logger,
) *RegistrationService {
	if audit == nil {
		audit = models.NopAuditRepository{}
	}
	return &RegistrationService{events: events, users: users, regs: regs, audit: audit, log: log, now: time.Now}
}

// WithClock replaces the time source; used by tests and the seeder.
func (s *RegistrationService) WithClock(now func() time.Time) *RegistrationService {
	s.now = now
	return s
}

// Register signs the caller up for eventID with status pending.
func (s *RegistrationService) Register(ctx context.Context, p Principal, eventID int64) (models.Registration, error) {
	reg, err := s.create(ctx, eventID, p.UserID, models.StatusPending, s.now(), true)
	if err != nil {
		return models.Registration{}, err
	}
	s.record(ctx, reg, p.UserID, models.AuditRegistered)
	return reg, nil
}

// AdminRegister signs userID up for eventID on an admin's behalf.
func (s *RegistrationService) AdminRegister(ctx context.Context, p Principal, eventID, userID int64) (models.Registration, error) {
	if err := p.RequireAdmin(); err != nil {
		return models.Registration{}, err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return models.Registration{}, notFound(err, "user", userID)
	}
	reg, err := s.create(ctx, eventID, userID, models.StatusPending, s.now(), true)
	if err != nil {
		return models.Registration{}, err
	}
	s.record(ctx, reg, p.UserID, models.AuditRegistered)
	return reg, nil
}

// Seed inserts a registration with an explicit status and time through the
// same locked path, so fixtures obey uniqueness and capacity too.
func (s *RegistrationService) Seed(ctx context.Context, eventID, userID int64, status models.Status, at time.Time) (models.Registration, error) {
	return s.create(ctx, eventID, userID, status, at, false)
}

// create inserts under the event lock. upcomingOnly rejects events whose
// date has passed.
func (s *RegistrationService) create(ctx context.Context, eventID, userID int64, status models.Status, at time.Time, upcomingOnly bool) (models.Registration, error) {
	var reg models.Registration
	err := s.locked(ctx, eventID, func(ctx context.Context, tx models.RegistrationTx) error {
		ev := tx.Event()
		if upcomingOnly && ev.Date.Before(s.now()) {
			return validationf("event %d has already taken place", ev.ID)
		}

		if _, err := tx.FindByUser(ctx, userID); err == nil {
			return ErrDuplicateRegistration
		} else if !errors.Is(err, models.ErrNotFound) {
			return err
		}

		if status.Active() {
			n, err := tx.CountActive(ctx)
			if err != nil {
				return err
			}
			if n >= ev.MaxAttendees {
				return ErrEventFull
			}
		}

		reg = models.Registration{UserID: userID, Status: status, RegisteredAt: at}
		return tx.Insert(ctx, &reg)
	})
	if errors.Is(err, models.ErrDuplicate) {
		return models.Registration{}, ErrDuplicateRegistration
	}
	if err != nil {
		return models.Registration{}, err
	}
	return reg, nil
}

// Unregister removes the caller's own registration.
func (s *RegistrationService) Unregister(ctx context.Context, p Principal, eventID int64) error {
	if err := s.remove(ctx, eventID, p.UserID); err != nil {
		return err
	}
	s.record(ctx, models.Registration{EventID: eventID, UserID: p.UserID}, p.UserID, models.AuditUnregistered)
	return nil
}

// AdminRemoveUser removes userID's registration on an admin's behalf.
func (s *RegistrationService) AdminRemoveUser(ctx context.Context, p Principal, eventID, userID int64) error {
	if err := p.RequireAdmin(); err != nil {
		return err
	}
	if err := s.remove(ctx, eventID, userID); err != nil {
		return err
	}
	s.record(ctx, models.Registration{EventID: eventID, UserID: userID}, p.UserID, models.AuditRemoved)
	return nil
}

func (s *RegistrationService) remove(ctx context.Context, eventID, userID int64) error {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return notFound(err, "event", eventID)
	}
	err := s.regs.Delete(ctx, userID, eventID)
	if errors.Is(err, models.ErrNotFound) {
		return ErrNotRegistered
	}
	return err
}

// SetStatus moves a pending registration to accepted or rejected.
func (s *RegistrationService) SetStatus(ctx context.Context, p Principal, eventID, registrationID int64, status models.Status) (models.Registration, error) {
	if err := p.RequireAdmin(); err != nil {
		return models.Registration{}, err
	}
	parsed, ok := models.ParseStatus(string(status))
	if !ok {
		return models.Registration{}, validationf("unknown status %q", status)
	}
	status = parsed

	var reg models.Registration
	err := s.locked(ctx, eventID, func(ctx context.Context, tx models.RegistrationTx) error {
		cur, err := tx.Get(ctx, registrationID)
		if err != nil {
			return notFound(err, "registration", registrationID)
		}
		if !cur.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, status)
		}
		at := s.now()
		if err := tx.UpdateStatus(ctx, cur.ID, status, at); err != nil {
			return err
		}
		cur.Status, cur.UpdatedAt = status, at
		reg = cur
		return nil
	})
	if err != nil {
		return models.Registration{}, err
	}
	s.record(ctx, reg, p.UserID, models.AuditStatusSet)
	return reg, nil
}

// Reopen sends an accepted or rejected registration back to pending. A
// rejected row becomes active again, so capacity is re-checked.
func (s *RegistrationService) Reopen(ctx context.Context, p Principal, eventID, registrationID int64) (models.Registration, error) {
	if err := p.RequireAdmin(); err != nil {
		return models.Registration{}, err
	}

	var reg models.Registration
	err := s.locked(ctx, eventID, func(ctx context.Context, tx models.RegistrationTx) error {
		cur, err := tx.Get(ctx, registrationID)
		if err != nil {
			return notFound(err, "registration", registrationID)
		}
		if !cur.Status.CanReopen() {
			return fmt.Errorf("%w: %s cannot be reopened", ErrInvalidTransition, cur.Status)
		}
		if !cur.Status.Active() {
			n, err := tx.CountActive(ctx)
			if err != nil {
				return err
			}
			if n >= tx.Event().MaxAttendees {
				return ErrEventFull
			}
		}
		at := s.now()
		if err := tx.UpdateStatus(ctx, cur.ID, models.StatusPending, at); err != nil {
			return err
		}
		cur.Status, cur.UpdatedAt = models.StatusPending, at
		reg = cur
		return nil
	})
	if err != nil {
		return models.Registration{}, err
	}
	s.record(ctx, reg, p.UserID, models.AuditReopened)
	return reg, nil
}

// ListForEvent returns an event's registrations, optionally by status. Rows
// of soft-deleted events stay readable.
func (s *RegistrationService) ListForEvent(ctx context.Context, p Principal, eventID int64, status models.Status) ([]models.Registration, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	if status != "" {
		parsed, ok := models.ParseStatus(string(status))
		if !ok {
			return nil, validationf("unknown status %q", status)
		}
		status = parsed
	}
	if err := s.requireEventEver(ctx, eventID); err != nil {
		return nil, err
	}
	return s.regs.ListForEvent(ctx, eventID, status)
}

func (s *RegistrationService) ListMine(ctx context.Context, p Principal) ([]models.Registration, error) {
	return s.regs.ListForUser(ctx, p.UserID)
}

func (s *RegistrationService) AuditTrail(ctx context.Context, p Principal, eventID int64) ([]models.AuditEntry, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	if err := s.requireEventEver(ctx, eventID); err != nil {
		return nil, err
	}
	return s.audit.ListForEvent(ctx, eventID)
}

// requireEventEver fails with ErrNotFound for ids that were never created.
// Soft-deleted events pass.
func (s *RegistrationService) requireEventEver(ctx context.Context, eventID int64) error {
	ok, err := s.events.Exists(ctx, eventID)
	if err != nil {
		return err
	}
	if !ok {
		return notFound(models.ErrNotFound, "event", eventID)
	}
	return nil
}

// locked runs fn under the event lock, retrying once on a transaction
// conflict before giving up with ErrConflict.
func (s *RegistrationService) locked(ctx context.Context, eventID int64, fn func(ctx context.Context, tx models.RegistrationTx) error) error {
	var err error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		err = s.regs.WithEventLock(ctx, eventID, fn)
		if !errors.Is(err, models.ErrTxConflict) {
			break
		}
		s.log.Warn("registration transaction conflict", "event_id", eventID, "attempt", attempt)
	}
	switch {
	case errors.Is(err, models.ErrTxConflict):
		return ErrConflict
	case errors.Is(err, models.ErrNotFound):
		// fn wraps its own misses; a bare storage miss is the event row.
		return notFound(err, "event", eventID)
	}
	return err
}

// record appends to the audit trail. The registration change is already
// committed, so a failed write is logged rather than returned.
func (s *RegistrationService) record(ctx context.Context, r models.Registration, actorID int64, action models.AuditAction) {
	entry := models.AuditEntry{
		EventID: r.EventID,
		UserID:  r.UserID,
		ActorID: actorID,
		Action:  action,
		Status:  r.Status,
		At:      s.now(),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.log.Error("could not write audit entry",
			"event_id", r.EventID, "user_id", r.UserID, "action", action, "error", err)
	}
}
