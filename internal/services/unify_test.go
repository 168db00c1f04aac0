package services

import (
	"testing"
	"time"

	"saldo/internal/core"
)

func unifyFixture() (*Ledger, []core.TransferGroup, []core.DPSTransfer) {
	accounts := []core.Account{
		{ID: "usd", Name: "Checking", Currency: "USD", InitialBalance: dec("100"), Active: true},
		{ID: "eur", Name: "Savings EUR", Currency: "EUR", InitialBalance: dec("0"), Active: true},
		{ID: "sav", Name: "DPS Savings", Currency: "USD", InitialBalance: dec("10"), Active: true},
	}
	postings := []core.Posting{
		{ID: "p1", AccountID: "usd", Amount: dec("100"), Date: date(2025, 1, 1), Type: core.Debit, Tags: []string{"transfer", "tx1"}},
		{ID: "p2", AccountID: "eur", Amount: dec("92"), Date: date(2025, 1, 1), Type: core.Credit, Tags: []string{"transfer", "tx1"}},
		{ID: "p3", AccountID: "usd", Amount: dec("50"), Date: date(2025, 1, 5), Type: core.Credit},
		{ID: "p4", AccountID: "sav", Amount: dec("25"), Date: date(2025, 1, 10), Type: core.Credit, Tags: []string{core.TagDPS, "d1"}},
	}
	ledger := NewLedger(accounts, postings)
	groups, _ := PairTransfers(postings, accounts)
	dps := []core.DPSTransfer{
		{ID: "d1", Date: date(2025, 1, 10), FromAccountID: "usd", ToAccountID: "sav", Amount: dec("25")},
	}
	return ledger, groups, dps
}

func TestUnifyTransfersMergesAndSorts(t *testing.T) {
	ledger, groups, dps := unifyFixture()

	views := UnifyTransfers(ledger, groups, dps, ListFilters{})
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}

	// date descending: DPS (jan 10) before the paired transfer (jan 1)
	if views[0].Kind != core.AutomaticSavings || views[1].Kind != core.CrossCurrency {
		t.Fatalf("order/kinds wrong: %q then %q", views[0].Kind, views[1].Kind)
	}

	savings := views[0]
	if !savings.FromAmount.Equal(dec("25")) || !savings.ToAmount.Equal(dec("25")) {
		t.Fatalf("dps amounts: %s -> %s", savings.FromAmount, savings.ToAmount)
	}
	if !savings.ExchangeRate.Equal(dec("1")) {
		t.Fatalf("dps rate: got %s", savings.ExchangeRate)
	}
	if savings.FromCurrency != "USD" || savings.ToCurrency != "USD" {
		t.Fatalf("dps currencies: %s -> %s", savings.FromCurrency, savings.ToCurrency)
	}

	paired := views[1]
	if paired.FromAccountName != "Checking" || paired.ToAccountName != "Savings EUR" {
		t.Fatalf("names: %q -> %q", paired.FromAccountName, paired.ToAccountName)
	}
	if !paired.ExchangeRate.Equal(dec("0.92")) {
		t.Fatalf("rate: got %s", paired.ExchangeRate)
	}
}

func TestUnifyTransfersBalanceResolution(t *testing.T) {
	ledger, groups, dps := unifyFixture()

	views := UnifyTransfers(ledger, groups, dps, ListFilters{})

	// Paired legs carry no snapshot here, so both fall back to replay:
	// usd as of jan 1: 100 - 100 = 0; eur as of jan 1: 0 + 92 = 92.
	paired := views[1]
	if !paired.FromBalance.Equal(dec("0")) {
		t.Fatalf("from balance: got %s, want 0", paired.FromBalance)
	}
	if !paired.ToBalance.Equal(dec("92")) {
		t.Fatalf("to balance: got %s, want 92", paired.ToBalance)
	}

	// DPS records always take the replay path. sav as of jan 10: 10 + 25.
	savings := views[0]
	if !savings.ToBalance.Equal(dec("35")) {
		t.Fatalf("dps to balance: got %s, want 35", savings.ToBalance)
	}
}

func TestUnifyTransfersSnapshotFirst(t *testing.T) {
	ledger, groups, dps := unifyFixture()

	snap := dec("41.50")
	groups[0].FromBalance = &snap

	views := UnifyTransfers(ledger, groups, dps, ListFilters{})
	paired := views[1]
	if !paired.FromBalance.Equal(snap) {
		t.Fatalf("expected stored snapshot %s, got %s", snap, paired.FromBalance)
	}
}

func TestUnifyTransfersFilters(t *testing.T) {
	ledger, groups, dps := unifyFixture()

	cases := []struct {
		name    string
		filters ListFilters
		wantIDs []string
	}{
		{"kind", ListFilters{Kind: core.AutomaticSavings}, []string{"d1"}},
		{"since", ListFilters{Since: date(2025, 1, 5)}, []string{"d1"}},
		{"search account name", ListFilters{Search: "savings eur"}, []string{"p1_p2"}},
		{"search amount", ListFilters{Search: "25"}, []string{"d1"}},
		{"no match", ListFilters{Search: "brokerage"}, nil},
	}
	for _, tc := range cases {
		views := UnifyTransfers(ledger, groups, dps, tc.filters)
		if len(views) != len(tc.wantIDs) {
			t.Fatalf("%s: got %d views, want %d", tc.name, len(views), len(tc.wantIDs))
		}
		for i, id := range tc.wantIDs {
			if views[i].ID != id {
				t.Fatalf("%s: view %d is %q, want %q", tc.name, i, views[i].ID, id)
			}
		}
	}
}

func TestUnifyTransfersUnknownAccountDegrades(t *testing.T) {
	// A DPS record pointing at an unknown account still renders, with a
	// zero balance and the raw id in place of a name.
	ledger := NewLedger(nil, nil)
	dps := []core.DPSTransfer{
		{ID: "d9", Date: date(2025, 3, 1), FromAccountID: "ghost", ToAccountID: "ghost2", Amount: dec("5")},
	}
	views := UnifyTransfers(ledger, nil, dps, ListFilters{})
	if len(views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(views))
	}
	if views[0].FromAccountName != "ghost" {
		t.Fatalf("expected raw id as name, got %q", views[0].FromAccountName)
	}
	if !views[0].FromBalance.IsZero() {
		t.Fatalf("expected zero balance for unknown account, got %s", views[0].FromBalance)
	}
}

func TestUnifyTransfersStableTieOrder(t *testing.T) {
	accounts := []core.Account{{ID: "a", Name: "A", Currency: "USD", Active: true}}
	ledger := NewLedger(accounts, nil)
	at := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	dps := []core.DPSTransfer{
		{ID: "first", Date: at, FromAccountID: "a", ToAccountID: "a", Amount: dec("1")},
		{ID: "second", Date: at, FromAccountID: "a", ToAccountID: "a", Amount: dec("2")},
	}
	views := UnifyTransfers(ledger, nil, dps, ListFilters{})
	if views[0].ID != "first" || views[1].ID != "second" {
		t.Fatalf("tie order not stable: %q, %q", views[0].ID, views[1].ID)
	}
}
