package services

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"

	"telehealth-server/internal/apperr"
	"telehealth-server/internal/events"
	"telehealth-server/internal/metrics"
	"telehealth-server/internal/models"
)

// PayoutService records doctors' requests to cash out credits. Disbursement
// happens elsewhere.
type PayoutService struct {
	deps     Deps
	validate *validator.Validate
}

func NewPayoutService(deps Deps) *PayoutService {
	return &PayoutService{deps: deps.withDefaults(), validate: validator.New()}
}

// RequestPayout creates a PROCESSING payout for the calling doctor's whole
// balance and reserves those credits.
func (s *PayoutService) RequestPayout(ctx context.Context, callerID, destination string) (*models.Payout, error) {
	ctx, span := tracer.Start(ctx, "payout.request")
	defer span.End()

	payout, err := s.requestPayout(ctx, callerID, strings.TrimSpace(destination))
	if err != nil {
		outcome := metrics.OutcomeRejected
		if k := apperr.KindOf(err); k == apperr.KindInternal || k == apperr.KindLedgerFailure {
			outcome = metrics.OutcomeError
		}
		s.deps.Metrics.ObservePayout(outcome, string(apperr.KindOf(err)))
		return nil, fail(span, err)
	}
	s.deps.Metrics.ObservePayout(metrics.OutcomeSuccess, "")
	span.SetAttributes(
		attribute.String("payout.id", payout.ID),
		attribute.Int64("payout.credits", payout.Credits),
	)
	return payout, nil
}

func (s *PayoutService) requestPayout(ctx context.Context, callerID, destination string) (*models.Payout, error) {
	doctor, err := resolveCaller(ctx, s.deps.Repo, callerID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(doctor, models.RoleDoctor, "only doctors can request payouts"); err != nil {
		return nil, err
	}
	if err := s.validate.Var(destination, "required,email"); err != nil {
		return nil, apperr.New(apperr.KindValidation, "a valid PayPal email is required")
	}

	payout, err := s.deps.Repo.RequestPayout(ctx, doctor.ID, destination)
	if err != nil {
		return nil, ledgerError("failed to create payout request", err)
	}

	s.deps.Logger.Info("payout requested",
		"payout_id", payout.ID,
		"doctor_id", doctor.ID,
		"credits", payout.Credits,
		"net_amount", payout.NetAmount.StringFixed(2),
	)
	publish(ctx, s.deps, events.PayoutRequested, map[string]any{
		"payoutId":    payout.ID,
		"doctorId":    doctor.ID,
		"credits":     payout.Credits,
		"amount":      payout.Amount.StringFixed(2),
		"platformFee": payout.PlatformFee.StringFixed(2),
		"netAmount":   payout.NetAmount.StringFixed(2),
	})
	return payout, nil
}

// ListPayouts returns the calling doctor's payouts, newest first.
func (s *PayoutService) ListPayouts(ctx context.Context, callerID string) ([]models.Payout, error) {
	doctor, err := resolveCaller(ctx, s.deps.Repo, callerID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(doctor, models.RoleDoctor, "only doctors have payouts"); err != nil {
		return nil, err
	}
	return s.deps.Repo.ListPayouts(ctx, doctor.ID)
}
