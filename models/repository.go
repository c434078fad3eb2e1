package models

import (
	"context"
	"errors"
	"time"
)

// Storage-level errors. Services translate these into domain errors.
var (
	ErrNotFound   = errors.New("record not found")
	ErrDuplicate  = errors.New("unique constraint violated")
	ErrTxConflict = errors.New("transaction conflict")
)

// ===== Users =====
type User struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	PasswordHash string     `json:"-"`
	IsAdmin      bool       `json:"isAdmin"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
}

// UserRepository never returns soft-deleted users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, u *User) error
	SoftDelete(ctx context.Context, id int64, at time.Time) error
}

// ===== Events =====
type Event struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Date         time.Time  `json:"date"`
	Location     string     `json:"location"`
	Description  string     `json:"description"`
	MaxAttendees int        `json:"maxAttendees"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
}

// EventFilter narrows an event listing. Zero fields are ignored.
// Title and Location match case-insensitive substrings; From and To are
// inclusive bounds on Date, Before is exclusive.
type EventFilter struct {
	Title    string
	Location string
	From     *time.Time
	To       *time.Time
	Before   *time.Time
}

// Match reports whether e passes the filter. Used by in-memory stores.
func (f EventFilter) Match(e Event) bool {
	if f.Title != "" && !containsFold(e.Title, f.Title) {
		return false
	}
	if f.Location != "" && !containsFold(e.Location, f.Location) {
		return false
	}
	if f.From != nil && e.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Date.After(*f.To) {
		return false
	}
	if f.Before != nil && !e.Date.Before(*f.Before) {
		return false
	}
	return true
}

// EventRepository never returns soft-deleted events, except through Exists.
// List orders by date. Field updates go through RegistrationTx.UpdateEvent
// under the event lock.
type EventRepository interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id int64) (Event, error)
	// Exists reports whether the event was ever created, deleted or not.
	Exists(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, f EventFilter) ([]Event, error)
	SoftDelete(ctx context.Context, id int64, at time.Time) error
}

// ===== Registrations =====
type Registration struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"userId"`
	EventID      int64     `json:"eventId"`
	Status       Status    `json:"status"`
	RegisteredAt time.Time `json:"registeredAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// RegistrationTx is the view of one event's registrations while its row is
// locked. Every method runs inside the same transaction.
type RegistrationTx interface {
	// Event is the locked event row.
	Event() Event
	// CountActive counts registrations that are not rejected.
	CountActive(ctx context.Context) (int, error)
	FindByUser(ctx context.Context, userID int64) (Registration, error)
	Get(ctx context.Context, id int64) (Registration, error)
	Insert(ctx context.Context, r *Registration) error
	UpdateStatus(ctx context.Context, id int64, status Status, at time.Time) error
	// UpdateEvent rewrites the locked event row, e.g. to change capacity.
	UpdateEvent(ctx context.Context, e *Event) error
}

type RegistrationRepository interface {
	// WithEventLock runs fn with the event row locked against concurrent
	// writers. fn's error rolls the transaction back and is returned as-is.
	// ErrNotFound means the event does not exist or is deleted.
	WithEventLock(ctx context.Context, eventID int64, fn func(ctx context.Context, tx RegistrationTx) error) error
	ListForEvent(ctx context.Context, eventID int64, status Status) ([]Registration, error)
	ListForUser(ctx context.Context, userID int64) ([]Registration, error)
	CountActive(ctx context.Context, eventID int64) (int, error)
	Delete(ctx context.Context, userID, eventID int64) error
}

// ===== Audit =====
type AuditAction string

const (
	AuditRegistered   AuditAction = "registered"
	AuditUnregistered AuditAction = "unregistered"
	AuditRemoved      AuditAction = "removed"
	AuditStatusSet    AuditAction = "status_changed"
	AuditReopened     AuditAction = "reopened"
)

// AuditEntry records one registration lifecycle change. Entries outlive the
// registration rows they describe.
type AuditEntry struct {
	EventID int64       `json:"eventId" bson:"event_id"`
	UserID  int64       `json:"userId" bson:"user_id"`
	ActorID int64       `json:"actorId" bson:"actor_id"`
	Action  AuditAction `json:"action" bson:"action"`
	Status  Status      `json:"status,omitempty" bson:"status,omitempty"`
	At      time.Time   `json:"at" bson:"at"`
}

type AuditRepository interface {
	Record(ctx context.Context, e AuditEntry) error
	ListForEvent(ctx context.Context, eventID int64) ([]AuditEntry, error)
}
