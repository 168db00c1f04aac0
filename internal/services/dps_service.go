package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// DPSService validates and executes automatic-savings transfers. The
// actual write is delegated to the store, which must apply both legs and
// the DPSTransfer record atomically. The caller is responsible for
// serializing executions per source account.
type DPSService struct {
	store  Store
	events EventPublisher
}

// NewDPSService creates a DPS service. events may be nil; executions then
// simply go unannounced.
func NewDPSService(store Store, events EventPublisher) *DPSService {
	return &DPSService{store: store, events: events}
}

// ResolveDPSAmount decides how much one automatic-savings execution moves.
//
// Fixed configuration takes the configured amount; the caller-supplied
// value is ignored. Variable configuration takes the supplied value, which
// must be positive. Either way the result may not exceed the source
// account's balance: a shortfall is a named rejection, never a clamp.
func ResolveDPSAmount(account core.Account, requested, balance decimal.Decimal) (decimal.Decimal, error) {
	var amount decimal.Decimal
	switch account.DPSAmountType {
	case core.DPSAmountFixed:
		if !account.DPSFixedAmount.IsPositive() {
			return decimal.Zero, core.ErrDPSFixedAmountInvalid
		}
		amount = account.DPSFixedAmount
	case core.DPSAmountVariable:
		if !requested.IsPositive() {
			return decimal.Zero, core.ErrInvalidAmount
		}
		amount = requested
	default:
		return decimal.Zero, core.ErrDPSAmountTypeInvalid
	}
	if amount.GreaterThan(balance) {
		return decimal.Zero, core.ErrInsufficientFunds
	}
	return amount, nil
}

// Execute runs one automatic-savings transfer out of the given account.
//
// Configuration and account state are re-checked here, at execution time,
// never trusted from scheduling time: both accounts must still be active
// and the source must still have DPS enabled and well configured. The
// requested amount only matters for variable-amount accounts.
func (s *DPSService) Execute(ctx context.Context, fromAccountID string, requested decimal.Decimal) (core.DPSTransfer, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return core.DPSTransfer{}, fmt.Errorf("list accounts: %w", err)
	}
	postings, err := s.store.ListPostings(ctx, "", time.Time{})
	if err != nil {
		return core.DPSTransfer{}, fmt.Errorf("list postings: %w", err)
	}
	ledger := NewLedger(accounts, postings)

	from, ok := ledger.Account(fromAccountID)
	if !ok {
		return core.DPSTransfer{}, core.ErrNoSuchAccount
	}
	if !from.DPSEnabled {
		return core.DPSTransfer{}, core.ErrDPSDisabled
	}
	if err := from.ValidateDPS(); err != nil {
		return core.DPSTransfer{}, err
	}
	to, ok := ledger.Account(from.DPSSavingsAccountID)
	if !ok {
		return core.DPSTransfer{}, core.ErrNoSuchAccount
	}
	if !from.Active || !to.Active {
		return core.DPSTransfer{}, core.ErrInactiveAccount
	}

	now := time.Now().UTC()

	fromBalance, err := ledger.BalanceAsOf(from.ID, now)
	if err != nil {
		return core.DPSTransfer{}, fmt.Errorf("resolve source balance: %w", err)
	}
	amount, err := ResolveDPSAmount(from, requested, fromBalance)
	if err != nil {
		return core.DPSTransfer{}, err
	}
	toBalance, err := ledger.BalanceAsOf(to.ID, now)
	if err != nil {
		return core.DPSTransfer{}, fmt.Errorf("resolve destination balance: %w", err)
	}

	exec := core.DPSExecution{
		GroupID:       uuid.NewString(),
		Date:          now,
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		Amount:        amount,
		FromBalance:   fromBalance.Sub(amount),
		ToBalance:     toBalance.Add(amount),
		FromNote:      fmt.Sprintf("DPS transfer to %s", to.Name),
		ToNote:        fmt.Sprintf("DPS transfer from %s", from.Name),
	}

	rec, err := s.store.ExecuteDPSTransfer(ctx, exec)
	if err != nil {
		return core.DPSTransfer{}, fmt.Errorf("execute dps transfer: %w", err)
	}

	slog.InfoContext(ctx, "DPS transfer executed",
		"id", rec.ID,
		"from_account", rec.FromAccountID,
		"to_account", rec.ToAccountID,
		"amount", rec.Amount.String())

	if err := s.publishExecuted(ctx, rec); err != nil {
		// The transfer is committed; a lost event only delays the audit trail.
		slog.ErrorContext(ctx, "Failed to publish transfer-executed event",
			"id", rec.ID, "error", err)
	}

	return rec, nil
}

func (s *DPSService) publishExecuted(ctx context.Context, rec core.DPSTransfer) error {
	if s.events == nil {
		slog.WarnContext(ctx, "Event publisher not available, skipping transfer-executed event")
		return nil
	}
	return s.events.PublishTransferExecuted(ctx, rec)
}
