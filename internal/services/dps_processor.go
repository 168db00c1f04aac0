package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// DPSProcessor periodically executes fixed-amount automatic-savings
// transfers for every eligible account. Variable-amount accounts are never
// processed here: their amount comes from a caller, not from a schedule.
//
// Accounts are processed one at a time, which also satisfies the
// at-most-one-in-flight-execution-per-account requirement for this
// process. Running more than one processor against the same store is not
// supported.
type DPSProcessor struct {
	store Store
	dps   *DPSService
}

func NewDPSProcessor(store Store, dps *DPSService) *DPSProcessor {
	return &DPSProcessor{store: store, dps: dps}
}

// ProcessDueTransfers executes the fixed-amount DPS transfer for every
// active, well-configured account that has not been served yet today.
// Misconfigured or short-funded accounts are skipped with a log line and
// do not stop the run. Returns the number of executed transfers.
func (p *DPSProcessor) ProcessDueTransfers(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil || p.dps == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	accounts, err := p.store.ListAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list accounts: %w", err)
	}
	history, err := p.store.ListDPSTransfers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list dps transfers: %w", err)
	}

	lastRun := lastExecutionByAccount(history)

	processed := 0
	for _, account := range accounts {
		if !account.Active || !account.DPSEnabled || account.DPSAmountType != core.DPSAmountFixed {
			continue
		}
		if err := account.ValidateDPS(); err != nil {
			slog.WarnContext(ctx, "Skipping misconfigured DPS account",
				"account_id", account.ID, "error", err)
			continue
		}
		if !isDueToday(lastRun[account.ID], now) {
			continue
		}

		rec, err := p.dps.Execute(ctx, account.ID, decimal.Zero)
		if err != nil {
			if errors.Is(err, core.ErrInsufficientFunds) || errors.Is(err, core.ErrInactiveAccount) {
				slog.WarnContext(ctx, "DPS transfer not executable right now",
					"account_id", account.ID, "error", err)
			} else {
				slog.ErrorContext(ctx, "DPS transfer failed",
					"account_id", account.ID, "error", err)
			}
			continue
		}

		processed++
		slog.InfoContext(ctx, "Scheduled DPS transfer executed",
			"account_id", account.ID,
			"transfer_id", rec.ID,
			"amount", rec.Amount.String())
	}

	slog.InfoContext(ctx, "DPS processing complete",
		"processed", processed,
		"total_accounts", len(accounts))

	return processed, nil
}

// isDueToday reports whether the account has not been served on the
// current calendar day.
func isDueToday(lastExecution, now time.Time) bool {
	if lastExecution.IsZero() {
		return true
	}
	return lastExecution.Format("2006-01-02") != now.Format("2006-01-02")
}

func lastExecutionByAccount(history []core.DPSTransfer) map[string]time.Time {
	last := make(map[string]time.Time)
	for _, rec := range history {
		if rec.Date.After(last[rec.FromAccountID]) {
			last[rec.FromAccountID] = rec.Date
		}
	}
	return last
}
