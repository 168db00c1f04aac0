package services

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBalanceAsOfReplay(t *testing.T) {
	// initial 50, credits 20 and 10, debit 5, no snapshots
	accounts := []core.Account{{ID: "a", Currency: "USD", InitialBalance: dec("50"), Active: true}}
	postings := []core.Posting{
		{ID: "p1", AccountID: "a", Amount: dec("20"), Date: date(2025, 1, 2), Type: core.Credit},
		{ID: "p2", AccountID: "a", Amount: dec("10"), Date: date(2025, 1, 3), Type: core.Credit},
		{ID: "p3", AccountID: "a", Amount: dec("5"), Date: date(2025, 1, 4), Type: core.Debit},
	}
	ledger := NewLedger(accounts, postings)

	got, err := ledger.BalanceAsOf("a", date(2025, 1, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(dec("75")) {
		t.Fatalf("got %s, want 75", got)
	}

	// only postings at or before the timestamp count
	got, err = ledger.BalanceAsOf("a", date(2025, 1, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(dec("70")) {
		t.Fatalf("as of jan 2: got %s, want 70", got)
	}
}

func TestBalanceAsOfSnapshotPath(t *testing.T) {
	snap := dec("123.45")
	accounts := []core.Account{{ID: "a", Currency: "USD", InitialBalance: dec("50"), Active: true}}
	postings := []core.Posting{
		{ID: "p1", AccountID: "a", Amount: dec("20"), Date: date(2025, 1, 2), Type: core.Credit},
		{ID: "p2", AccountID: "a", Amount: dec("10"), Date: date(2025, 1, 3), Type: core.Credit, PostBalance: &snap},
	}
	ledger := NewLedger(accounts, postings)

	got, err := ledger.BalanceAsOf("a", date(2025, 1, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(snap) {
		t.Fatalf("expected snapshot %s, got %s", snap, got)
	}

	// snapshot on a non-latest posting does not shortcut the replay
	got, err = ledger.BalanceAsOf("a", date(2025, 1, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(dec("70")) {
		t.Fatalf("got %s, want replayed 70", got)
	}
}

func TestBalanceAsOfIdempotent(t *testing.T) {
	accounts := []core.Account{{ID: "a", InitialBalance: dec("10"), Active: true}}
	postings := []core.Posting{
		{ID: "p1", AccountID: "a", Amount: dec("3"), Date: date(2025, 2, 1), Type: core.Debit},
	}
	ledger := NewLedger(accounts, postings)
	at := date(2025, 2, 2)

	first, err := ledger.BalanceAsOf("a", at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ledger.BalanceAsOf("a", at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("idempotence violated: %s vs %s", first, second)
	}
}

func TestBalanceAsOfSnapshotReplayAgreement(t *testing.T) {
	// The snapshot written with each posting must equal a full replay up
	// to that posting's date. A mismatch is a write-time bug upstream.
	snapshots := []string{"70", "80", "75"}
	accounts := []core.Account{{ID: "a", InitialBalance: dec("50"), Active: true}}
	base := []core.Posting{
		{ID: "p1", AccountID: "a", Amount: dec("20"), Date: date(2025, 1, 2), Type: core.Credit},
		{ID: "p2", AccountID: "a", Amount: dec("10"), Date: date(2025, 1, 3), Type: core.Credit},
		{ID: "p3", AccountID: "a", Amount: dec("5"), Date: date(2025, 1, 4), Type: core.Debit},
	}

	withSnapshots := make([]core.Posting, len(base))
	copy(withSnapshots, base)
	for i := range withSnapshots {
		pb := dec(snapshots[i])
		withSnapshots[i].PostBalance = &pb
	}

	bare := NewLedger(accounts, base)
	stored := NewLedger(accounts, withSnapshots)
	for i, p := range base {
		replayed, err := bare.BalanceAsOf("a", p.Date)
		if err != nil {
			t.Fatalf("replay %d: %v", i, err)
		}
		snapped, err := stored.BalanceAsOf("a", p.Date)
		if err != nil {
			t.Fatalf("snapshot %d: %v", i, err)
		}
		if !replayed.Equal(snapped) {
			t.Fatalf("posting %d: replay %s disagrees with snapshot %s", i, replayed, snapped)
		}
	}
}

func TestBalanceAsOfUnknownAccount(t *testing.T) {
	ledger := NewLedger(nil, nil)
	got, err := ledger.BalanceAsOf("ghost", date(2025, 1, 1))
	if !errors.Is(err, core.ErrNoSuchAccount) {
		t.Fatalf("expected ErrNoSuchAccount, got %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("expected zero balance, got %s", got)
	}
}
