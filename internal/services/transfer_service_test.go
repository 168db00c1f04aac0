package services

import (
	"context"
	"testing"
	"time"

	"saldo/internal/core"
	"saldo/internal/storage/memory"
)

func TestTransferServiceListTransfers(t *testing.T) {
	store := memory.New()
	store.Seed(
		[]core.Account{
			{ID: "usd", Name: "Checking", Currency: "USD", InitialBalance: dec("100"), Active: true},
			{ID: "eur", Name: "Savings EUR", Currency: "EUR", Active: true},
		},
		[]core.Posting{
			{ID: "p1", AccountID: "usd", Amount: dec("100"), Date: date(2025, 1, 1), Type: core.Debit, Tags: []string{"transfer", "tx1"}},
			{ID: "p2", AccountID: "eur", Amount: dec("92"), Date: date(2025, 1, 1), Type: core.Credit, Tags: []string{"transfer", "tx1"}},
			// dangling: credit never landed
			{ID: "p3", AccountID: "usd", Amount: dec("10"), Date: date(2025, 1, 2), Type: core.Debit, Tags: []string{"transfer", "tx2"}},
		},
		[]core.DPSTransfer{
			{ID: "d1", Date: date(2025, 1, 3), FromAccountID: "usd", ToAccountID: "eur", Amount: dec("5")},
		},
	)

	svc := NewTransferService(store)
	views, report, err := svc.ListTransfers(context.Background(), ListFilters{})
	if err != nil {
		t.Fatalf("list transfers: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 views (pair + dps), got %d", len(views))
	}
	for _, v := range views {
		if v.ID == "p3" {
			t.Fatalf("dangling leg leaked into the view")
		}
	}
	if report.DanglingCount() != 1 {
		t.Fatalf("expected 1 dangling leg in report, got %d", report.DanglingCount())
	}
	if report.Dangling[0].GroupID != "tx2" {
		t.Fatalf("wrong dangling group: %q", report.Dangling[0].GroupID)
	}
}

func TestTransferServiceBalanceAsOf(t *testing.T) {
	store := memory.New()
	store.Seed(
		[]core.Account{{ID: "a", Currency: "USD", InitialBalance: dec("50"), Active: true}},
		[]core.Posting{
			{ID: "p1", AccountID: "a", Amount: dec("20"), Date: date(2025, 1, 2), Type: core.Credit},
			{ID: "p2", AccountID: "a", Amount: dec("10"), Date: date(2025, 1, 3), Type: core.Credit},
			{ID: "p3", AccountID: "a", Amount: dec("5"), Date: date(2025, 1, 4), Type: core.Debit},
		},
		nil,
	)

	svc := NewTransferService(store)
	got, err := svc.BalanceAsOf(context.Background(), "a", time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !got.Equal(dec("75")) {
		t.Fatalf("got %s, want 75", got)
	}
}
