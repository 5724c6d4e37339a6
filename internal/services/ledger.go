package services

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"telehealth-server/internal/models"
	"telehealth-server/internal/repository"
)

// EarningsSummary is a doctor's credit position, in credits and in money.
type EarningsSummary struct {
	TotalEarned       int64           `json:"totalEarned"`
	TotalPayout       int64           `json:"totalPayout"`
	AvailableCredits  int64           `json:"availableCredits"`
	TotalEarnings     decimal.Decimal `json:"totalEarnings"`
	TotalPayoutAmount decimal.Decimal `json:"totalPayoutAmount"`
	AvailableEarnings decimal.Decimal `json:"availableEarnings"`
}

// Balance is a user's credit balance with its ledger history.
type Balance struct {
	Credits      int64                      `json:"credits"`
	Transactions []models.CreditTransaction `json:"transactions"`
}

// LedgerService moves credits and reports balances.
type LedgerService struct {
	deps Deps
}

func NewLedgerService(deps Deps) *LedgerService {
	return &LedgerService{deps: deps.withDefaults()}
}

// Transfer moves t.Amount credits from one user to another. Both balances
// and both ledger rows change together or not at all.
func (s *LedgerService) Transfer(ctx context.Context, t repository.TransferRequest) error {
	ctx, span := tracer.Start(ctx, "ledger.transfer")
	defer span.End()
	span.SetAttributes(
		attribute.String("ledger.from", t.FromUserID),
		attribute.String("ledger.to", t.ToUserID),
		attribute.Int64("ledger.amount", t.Amount),
	)

	if err := s.deps.Repo.Transfer(ctx, t); err != nil {
		return fail(span, ledgerError("credit transfer failed", err))
	}
	s.deps.Logger.Info("credits transferred",
		"from", t.FromUserID, "to", t.ToUserID, "amount", t.Amount, "type", t.Type)
	return nil
}

// EarningsSummary reports the calling doctor's earned, paid out and
// available credits.
func (s *LedgerService) EarningsSummary(ctx context.Context, callerID string) (*EarningsSummary, error) {
	ctx, span := tracer.Start(ctx, "ledger.earnings_summary")
	defer span.End()

	doctor, err := resolveCaller(ctx, s.deps.Repo, callerID)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := requireRole(doctor, models.RoleDoctor, "only doctors have earnings"); err != nil {
		return nil, fail(span, err)
	}

	earned, err := s.deps.Repo.SumEarnedCredits(ctx, doctor.ID)
	if err != nil {
		return nil, fail(span, err)
	}
	paid, err := s.deps.Repo.SumPayoutCredits(ctx, doctor.ID)
	if err != nil {
		return nil, fail(span, err)
	}

	return &EarningsSummary{
		TotalEarned:       earned,
		TotalPayout:       paid,
		AvailableCredits:  doctor.Credits,
		TotalEarnings:     models.DoctorEarnings(earned),
		TotalPayoutAmount: models.DoctorEarnings(paid),
		AvailableEarnings: models.DoctorEarnings(doctor.Credits),
	}, nil
}

// Balance returns the caller's balance and ledger rows, newest first.
func (s *LedgerService) Balance(ctx context.Context, callerID string) (*Balance, error) {
	user, err := resolveCaller(ctx, s.deps.Repo, callerID)
	if err != nil {
		return nil, err
	}
	txs, err := s.deps.Repo.ListTransactions(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &Balance{Credits: user.Credits, Transactions: txs}, nil
}
