// Package services holds the booking, ledger and payout rules. Handlers
// resolve nothing themselves: every operation takes the caller's external
// identity and maps it to a user here.
package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"telehealth-server/internal/apperr"
	"telehealth-server/internal/cache"
	"telehealth-server/internal/events"
	"telehealth-server/internal/metrics"
	"telehealth-server/internal/models"
	"telehealth-server/internal/repository"
	"telehealth-server/internal/video"
	"telehealth-server/pkg/logging"
)

var tracer = otel.Tracer("telehealth-server/internal/services")

// Deps are the collaborators shared by all services. Only Repo is required.
type Deps struct {
	Repo     repository.Repository
	Video    video.Gateway
	Tokens   cache.TokenCache
	Events   events.Publisher
	Metrics  *metrics.BookingMetrics
	Logger   *logging.Logger
	Location *time.Location
	Now      func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Repo == nil {
		panic("services: repository required")
	}
	if d.Video == nil {
		d.Video = video.Disabled{}
	}
	if d.Tokens == nil {
		d.Tokens = cache.Noop{}
	}
	if d.Events == nil {
		d.Events = events.Noop{}
	}
	if d.Logger == nil {
		d.Logger = logging.Default()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Services bundles every service built from one set of Deps.
type Services struct {
	Booking      *BookingService
	Availability *AvailabilityService
	Directory    *DirectoryService
	Ledger       *LedgerService
	Payout       *PayoutService
}

// New wires all services.
func New(deps Deps) *Services {
	deps = deps.withDefaults()
	return &Services{
		Booking:      NewBookingService(deps),
		Availability: NewAvailabilityService(deps),
		Directory:    NewDirectoryService(deps),
		Ledger:       NewLedgerService(deps),
		Payout:       NewPayoutService(deps),
	}
}

// resolveCaller maps an identity-provider subject to a user.
func resolveCaller(ctx context.Context, repo repository.Repository, externalID string) (*models.User, error) {
	if externalID == "" {
		return nil, apperr.New(apperr.KindUnauthorized, "unauthorized")
	}
	user, err := repo.FindUserByExternalID(ctx, externalID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func requireRole(user *models.User, role models.Role, message string) error {
	if user.Role != role {
		return apperr.New(apperr.KindUnauthorized, message)
	}
	return nil
}

// ledgerError keeps domain errors and reports anything else from the
// storage layer as a ledger failure.
func ledgerError(message string, err error) error {
	if apperr.KindOf(err) != apperr.KindInternal {
		return err
	}
	return apperr.Wrap(apperr.KindLedgerFailure, message, err)
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, apperr.MessageOf(err))
	return err
}

// publish sends an event without failing the caller.
func publish(ctx context.Context, deps Deps, eventType string, data any) {
	ev := events.NewEvent(eventType, data, deps.Now())
	if err := deps.Events.Publish(ctx, ev); err != nil {
		deps.Logger.Warn("event publish failed", "type", eventType, "event_id", ev.ID, "error", err)
	}
}
