package services

import (
	"context"
	"errors"
	"time"

	"eventhub/models"
)

// EventInput carries the writable fields of an event.
type EventInput struct {
	Title        string
	Date         time.Time
	Location     string
	Description  string
	MaxAttendees int
}

func (in EventInput) validate() error {
	switch {
	case models.IsBlank(in.Title):
		return validationf("title is required")
	case models.IsBlank(in.Location):
		return validationf("location is required")
	case in.Date.IsZero():
		return validationf("date is required")
	case in.MaxAttendees < 1:
		return validationf("maxAttendees must be at least 1")
	}
	return nil
}

// FilterCriteria is any combination of title, location and an inclusive date range.
type FilterCriteria struct {
	Title    string
	Location string
	From     *time.Time
	To       *time.Time
}

type EventService struct {
	events models.EventRepository
	regs   models.RegistrationRepository
	now    func() time.Time
}

func NewEventService(events models.EventRepository, regs models.RegistrationRepository) *EventService {
	return &EventService{events: events, regs: regs, now: time.Now}
}

func (s *EventService) WithClock(now func() time.Time) *EventService {
	s.now = now
	return s
}

func (s *EventService) List(ctx context.Context) ([]models.Event, error) {
	return s.events.List(ctx, models.EventFilter{})
}

// Upcoming lists events dated now or later.
func (s *EventService) Upcoming(ctx context.Context) ([]models.Event, error) {
	now := s.now()
	return s.events.List(ctx, models.EventFilter{From: &now})
}

// Past lists events dated strictly before now.
func (s *EventService) Past(ctx context.Context) ([]models.Event, error) {
	now := s.now()
	return s.events.List(ctx, models.EventFilter{Before: &now})
}

func (s *EventService) Filter(ctx context.Context, c FilterCriteria) ([]models.Event, error) {
	if c.From != nil && c.To != nil && c.To.Before(*c.From) {
		return nil, validationf("to must not be before from")
	}
	return s.events.List(ctx, models.EventFilter{
		Title:    c.Title,
		Location: c.Location,
		From:     c.From,
		To:       c.To,
	})
}

// EventDetail is an event with its current occupancy.
type EventDetail struct {
	models.Event
	ActiveRegistrations int `json:"activeRegistrations"`
	SeatsLeft           int `json:"seatsLeft"`
}

func (s *EventService) Get(ctx context.Context, id int64) (EventDetail, error) {
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return EventDetail{}, notFound(err, "event", id)
	}
	n, err := s.regs.CountActive(ctx, id)
	if err != nil {
		return EventDetail{}, err
	}
	return EventDetail{Event: e, ActiveRegistrations: n, SeatsLeft: max(e.MaxAttendees-n, 0)}, nil
}

func (s *EventService) Create(ctx context.Context, p Principal, in EventInput) (models.Event, error) {
	if err := p.RequireAdmin(); err != nil {
		return models.Event{}, err
	}
	if err := in.validate(); err != nil {
		return models.Event{}, err
	}
	e := models.Event{
		Title:        in.Title,
		Date:         in.Date,
		Location:     in.Location,
		Description:  in.Description,
		MaxAttendees: in.MaxAttendees,
	}
	if err := s.events.Create(ctx, &e); err != nil {
		return models.Event{}, err
	}
	return e, nil
}

// Update replaces the event's fields. Capacity may not drop below the number
// of active registrations already held.
func (s *EventService) Update(ctx context.Context, p Principal, id int64, in EventInput) (models.Event, error) {
	if err := p.RequireAdmin(); err != nil {
		return models.Event{}, err
	}
	if err := in.validate(); err != nil {
		return models.Event{}, err
	}

	var updated models.Event
	err := s.regs.WithEventLock(ctx, id, func(ctx context.Context, tx models.RegistrationTx) error {
		active, err := tx.CountActive(ctx)
		if err != nil {
			return err
		}
		if in.MaxAttendees < active {
			return validationf("maxAttendees %d is below the %d active registrations", in.MaxAttendees, active)
		}
		updated = tx.Event()
		updated.Title = in.Title
		updated.Date = in.Date
		updated.Location = in.Location
		updated.Description = in.Description
		updated.MaxAttendees = in.MaxAttendees
		return tx.UpdateEvent(ctx, &updated)
	})
	if errors.Is(err, models.ErrNotFound) {
		return models.Event{}, notFound(err, "event", id)
	}
	if errors.Is(err, models.ErrTxConflict) {
		return models.Event{}, ErrConflict
	}
	if err != nil {
		return models.Event{}, err
	}
	return updated, nil
}

// Delete soft-deletes the event; its registrations are kept.
func (s *EventService) Delete(ctx context.Context, p Principal, id int64) error {
	if err := p.RequireAdmin(); err != nil {
		return err
	}
	if err := s.events.SoftDelete(ctx, id, s.now()); err != nil {
		return notFound(err, "event", id)
	}
	return nil
}
