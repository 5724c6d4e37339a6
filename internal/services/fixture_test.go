package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"telehealth-server/internal/events"
	"telehealth-server/internal/metrics"
	"telehealth-server/internal/models"
	"telehealth-server/internal/repository"
	"telehealth-server/internal/video"
	"telehealth-server/pkg/logging"
)

var monday = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fakeGateway struct {
	mu         sync.Mutex
	sessionErr error
	tokenErr   error
	sessions   int
	tokens     []video.TokenOptions
}

func (g *fakeGateway) CreateSession(context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions++
	if g.sessionErr != nil {
		return "", g.sessionErr
	}
	return fmt.Sprintf("session-%d", g.sessions), nil
}

func (g *fakeGateway) GenerateToken(sessionID string, opts video.TokenOptions) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.tokenErr != nil {
		return "", g.tokenErr
	}
	g.tokens = append(g.tokens, opts)
	return fmt.Sprintf("token-%s-%d", sessionID, len(g.tokens)), nil
}

func (g *fakeGateway) setSessionErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessionErr = err
}

func (g *fakeGateway) sessionCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessions
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	repo      *repository.MemoryRepository
	gateway   *fakeGateway
	publisher *recordingPublisher
	clock     *fakeClock
	deps      Deps
	svc       *Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      repository.NewMemoryRepository(),
		gateway:   &fakeGateway{},
		publisher: &recordingPublisher{},
		clock:     &fakeClock{t: monday},
	}
	f.deps = Deps{
		Repo:    f.repo,
		Video:   f.gateway,
		Events:  f.publisher,
		Metrics: metrics.NewBookingMetrics(prometheus.NewRegistry()),
		Logger:  logging.Discard(),
		Now:     f.clock.Now,
	}
	f.svc = New(f.deps)
	return f
}

func (f *fixture) user(t *testing.T, externalID string, role models.Role, credits int64) *models.User {
	t.Helper()
	u := &models.User{
		ExternalID:         externalID,
		Name:               "User " + externalID,
		Email:              externalID + "@example.com",
		Role:               role,
		VerificationStatus: models.VerificationVerified,
		Credits:            credits,
	}
	require.NoError(t, f.repo.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) credits(t *testing.T, id string) int64 {
	t.Helper()
	u, err := f.repo.FindUserByID(context.Background(), id)
	require.NoError(t, err)
	return u.Credits
}

func at(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

func (f *fixture) book(t *testing.T, patientExt, doctorID string, start time.Time) *models.Appointment {
	t.Helper()
	appt, err := f.svc.Booking.BookAppointment(context.Background(), patientExt, BookingRequest{
		DoctorID:  doctorID,
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
	})
	require.NoError(t, err)
	return appt
}
