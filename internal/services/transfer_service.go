// Package services implements the transfer reconciliation engine: pairing
// of tagged postings into two-sided transfer groups, balance replay over
// the append-only posting log, the unified transfer view, and the
// automatic-savings (DPS) execution rules.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// TransferService answers read queries over the posting log, the account
// registry and the DPS registry. It holds no state of its own: every call
// reads fresh and derives everything in memory, so results always reflect
// the store at the moment of the call.
type TransferService struct {
	store LedgerReader
}

func NewTransferService(store LedgerReader) *TransferService {
	return &TransferService{store: store}
}

// ListTransfers returns the unified, filtered, date-descending transfer
// collection together with the pairing report. Dangling legs and malformed
// buckets are excluded from the views but surfaced in the report and in
// the logs: they indicate an upstream write-path atomicity failure.
func (s *TransferService) ListTransfers(ctx context.Context, filters ListFilters) ([]core.TransferView, PairingReport, error) {
	accounts, postings, dps, err := s.read(ctx)
	if err != nil {
		return nil, PairingReport{}, err
	}

	ledger := NewLedger(accounts, postings)
	groups, report := PairTransfers(postings, accounts)
	views := UnifyTransfers(ledger, groups, dps, filters)

	if !report.Clean() {
		slog.WarnContext(ctx, "Pairing pass found inconsistent transfer data",
			"dangling_legs", report.DanglingCount(),
			"malformed_groups", len(report.Malformed),
			"same_currency_mismatches", len(report.SameCurrencyMismatches))
	}

	return views, report, nil
}

// BalanceAsOf reports the balance of an account right after the last
// posting dated at or before the given time, built from a fresh read of
// the log. An unknown account yields a zero balance and
// core.ErrNoSuchAccount.
func (s *TransferService) BalanceAsOf(ctx context.Context, accountID string, at time.Time) (decimal.Decimal, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list accounts: %w", err)
	}
	postings, err := s.store.ListPostings(ctx, accountID, time.Time{})
	if err != nil {
		return decimal.Zero, fmt.Errorf("list postings: %w", err)
	}
	return NewLedger(accounts, postings).BalanceAsOf(accountID, at)
}

func (s *TransferService) read(ctx context.Context) ([]core.Account, []core.Posting, []core.DPSTransfer, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list accounts: %w", err)
	}
	postings, err := s.store.ListPostings(ctx, "", time.Time{})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list postings: %w", err)
	}
	dps, err := s.store.ListDPSTransfers(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list dps transfers: %w", err)
	}
	return accounts, postings, dps, nil
}
