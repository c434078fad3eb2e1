// Package seed fills an empty database with demo users, events and
// registrations.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"eventhub/models"
	"eventhub/services"
	"eventhub/utils"
)

// Fixed accounts. The seed is skipped when AdminEmail already exists.
const (
	AdminEmail    = "admin@events.hu"
	AdminPassword = "admin123"
	TestEmail     = "test@events.hu"
	TestPassword  = "test123"
	// DefaultPassword is shared by the generated users.
	DefaultPassword = "jelszo123"

	RandomUsers  = 10
	RandomEvents = 10
)

var (
	firstNames = []string{"Anna", "Bence", "Csilla", "Dániel", "Eszter", "Gábor", "Hanna", "István", "Judit", "Levente", "Márton", "Nóra", "Péter", "Réka", "Zsófia"}
	lastNames  = []string{"Nagy", "Kovács", "Tóth", "Szabó", "Horváth", "Varga", "Kiss", "Molnár", "Németh", "Farkas"}

	eventTypes = []string{
		"Tech konferencia", "Marketing workshop", "Üzleti találkozó", "Művészeti kiállítás",
		"Tudományos előadás", "Közösségi esemény", "Sportverseny", "Zenei fesztivál",
		"Képzési nap", "Hálózatépítő esemény",
	}
	topics = []string{
		"Innovatív technológiák", "Digitális marketing trendek", "Vállalkozásfejlesztés",
		"Művészet és kreativitás", "Tudományos kutatások", "Közösségi fejlődés",
		"Fenntarthatóság", "Személyes fejlődés",
	}
	locations = []string{
		"Budapest, BME Q épület", "Budapest, Corvinus Egyetem", "Online (Zoom)", "Szeged, SZTE",
		"Debrecen, Egyetem", "Pécs, PTE", "Győr, Széchenyi Egyetem", "Miskolc, Műszaki Egyetem",
		"Veszprém, Pannon Egyetem", "Budapest, Magvető Café",
	}
	statuses = []models.Status{models.StatusPending, models.StatusAccepted, models.StatusRejected}

	// ASCII folding for generated email addresses
	asciiFold = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ö", "o", "ő", "o", "ú", "u", "ü", "u", "ű", "u")
)

type Seeder struct {
	users  models.UserRepository
	events models.EventRepository
	regs   *services.RegistrationService
	rng    *rand.Rand
	now    func() time.Time
	log    *slog.Logger
}

func New(users models.UserRepository, events models.EventRepository, regs *services.RegistrationService, log *slog.Logger) *Seeder {
	return &Seeder{
		users:  users,
		events: events,
		regs:   regs,
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:    time.Now,
		log:    log,
	}
}

// WithRand makes the generated data reproducible.
func (s *Seeder) WithRand(r *rand.Rand) *Seeder {
	s.rng = r
	return s
}

// Run seeds an empty database. It is a no-op when the admin account exists.
func (s *Seeder) Run(ctx context.Context) error {
	_, err := s.users.GetByEmail(ctx, AdminEmail)
	if err == nil {
		s.log.Info("admin user already exists, skipping seed")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("checking for admin user: %w", err)
	}

	users, err := s.seedUsers(ctx)
	if err != nil {
		return err
	}
	events, err := s.seedEvents(ctx)
	if err != nil {
		return err
	}
	n, err := s.seedRegistrations(ctx, users, events)
	if err != nil {
		return err
	}

	s.log.Info("seeded demo data", "users", len(users), "events", len(events), "registrations", n)
	return nil
}

func (s *Seeder) seedUsers(ctx context.Context) ([]models.User, error) {
	defaultHash, err := utils.HashPassword(DefaultPassword)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	fixed := []struct {
		name, email, password string
		admin                 bool
	}{
		{"Admin", AdminEmail, AdminPassword, true},
		{"Test", TestEmail, TestPassword, false},
	}

	var out []models.User
	for _, f := range fixed {
		hash, err := utils.HashPassword(f.password)
		if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
		u := models.User{Name: f.name, Email: f.email, Phone: s.phone(), PasswordHash: hash, IsAdmin: f.admin}
		if err := s.users.Create(ctx, &u); err != nil {
			return nil, fmt.Errorf("creating user %s: %w", f.email, err)
		}
		out = append(out, u)
	}

	for len(out) < len(fixed)+RandomUsers {
		first := pick(s.rng, firstNames)
		last := pick(s.rng, lastNames)
		u := models.User{
			Name:         first + " " + last,
			Email:        fmt.Sprintf("%s.%s%d@events.hu", asciiFold.Replace(strings.ToLower(first)), asciiFold.Replace(strings.ToLower(last)), 10+s.rng.IntN(90)),
			Phone:        s.phone(),
			PasswordHash: defaultHash,
		}
		err := s.users.Create(ctx, &u)
		if errors.Is(err, models.ErrDuplicate) {
			continue // name collision, draw again
		}
		if err != nil {
			return nil, fmt.Errorf("creating user %s: %w", u.Email, err)
		}
		out = append(out, u)
	}
	return out, nil
}

// phone formats a number as +36 ## ### ####.
func (s *Seeder) phone() string {
	return fmt.Sprintf("+36 %02d %03d %04d", s.rng.IntN(100), s.rng.IntN(1000), s.rng.IntN(10000))
}

func (s *Seeder) seedEvents(ctx context.Context) ([]models.Event, error) {
	now := s.now()
	day := 24 * time.Hour
	events := []models.Event{
		{Title: "Tech Conference", Description: "Éves technológiai konferencia innovatív témákkal.", Date: now.Add(30 * day), Location: "Budapest, BME Q épület", MaxAttendees: 100},
		{Title: "Marketing Workshop", Description: "Gyakorlati marketing workshop digitális trendekkel.", Date: now.Add(15 * day), Location: "Online (Zoom)", MaxAttendees: 50},
		{Title: "Webfejlesztés Alapjai", Description: "Kezdőknek szóló webfejlesztési tréning.", Date: now.Add(-10 * day), Location: "Debrecen, Egyetem", MaxAttendees: 40},
	}

	// random dates between one month ago and six months ahead
	start := now.AddDate(0, -1, 0)
	span := now.AddDate(0, 6, 0).Sub(start)
	for range RandomEvents {
		events = append(events, models.Event{
			Title:        pick(s.rng, eventTypes),
			Description:  pick(s.rng, topics),
			Location:     pick(s.rng, locations),
			Date:         start.Add(time.Duration(s.rng.Int64N(int64(span)))).Truncate(time.Minute),
			MaxAttendees: 10 + s.rng.IntN(191),
		})
	}

	for i := range events {
		if err := s.events.Create(ctx, &events[i]); err != nil {
			return nil, fmt.Errorf("creating event %q: %w", events[i].Title, err)
		}
	}
	return events, nil
}

func (s *Seeder) seedRegistrations(ctx context.Context, users []models.User, events []models.Event) (int, error) {
	now := s.now()
	day := 24 * time.Hour
	fixed := []struct {
		user, event int
		status      models.Status
		ago         time.Duration
	}{
		{1, 0, models.StatusAccepted, 5 * day},
		{1, 1, models.StatusPending, 3 * day},
		{2, 1, models.StatusAccepted, 7 * day},
		{3, 2, models.StatusRejected, 10 * day},
	}

	n := 0
	for _, f := range fixed {
		if _, err := s.regs.Seed(ctx, events[f.event].ID, users[f.user].ID, f.status, now.Add(-f.ago)); err != nil {
			return n, fmt.Errorf("seeding registration: %w", err)
		}
		n++
	}

	// one to three random events per user; existing pairs and full events are skipped
	for _, u := range users {
		perm := s.rng.Perm(len(events))
		for _, idx := range perm[:1+s.rng.IntN(3)] {
			at := now.Add(-time.Duration(s.rng.IntN(16)) * day)
			_, err := s.regs.Seed(ctx, events[idx].ID, u.ID, pick(s.rng, statuses), at)
			switch {
			case err == nil:
				n++
			case errors.Is(err, services.ErrDuplicateRegistration), errors.Is(err, services.ErrEventFull):
			default:
				return n, fmt.Errorf("seeding registration: %w", err)
			}
		}
	}
	return n, nil
}

func pick[T any](r *rand.Rand, xs []T) T {
	return xs[r.IntN(len(xs))]
}
