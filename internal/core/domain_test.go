package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestPostingTransferGroupID(t *testing.T) {
	cases := []struct {
		tags []string
		id   string
		ok   bool
	}{
		{[]string{"transfer", "tx1"}, "tx1", true},
		{[]string{"groceries", "transfer", "tx2"}, "tx2", true},
		{[]string{"transfer"}, "", false},
		{[]string{"transfer", ""}, "", false},
		{[]string{"dps"}, "", false},
		{nil, "", false},
	}
	for i, tc := range cases {
		id, ok := (Posting{Tags: tc.tags}).TransferGroupID()
		if ok != tc.ok || id != tc.id {
			t.Fatalf("case %d: got (%q, %v), want (%q, %v)", i, id, ok, tc.id, tc.ok)
		}
	}
}

func TestPostingValidate(t *testing.T) {
	good := Posting{
		AccountID: "acc-1",
		Amount:    decimal.NewFromInt(10),
		Date:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Type:      Credit,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Posting{
		{AccountID: "", Amount: decimal.NewFromInt(1), Date: good.Date, Type: Credit},
		{AccountID: "a", Amount: decimal.NewFromInt(1), Date: good.Date, Type: "income"},
		{AccountID: "a", Amount: decimal.NewFromInt(1), Type: Debit}, // zero date
		{AccountID: "a", Amount: decimal.Zero, Date: good.Date, Type: Debit},
		{AccountID: "a", Amount: decimal.NewFromInt(-5), Date: good.Date, Type: Debit},
	}
	for i, p := range bads {
		if err := p.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestPostingEffectiveTime(t *testing.T) {
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	at := time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC)

	p := Posting{Date: date, TransferTime: at}
	if got := p.EffectiveTime(); !got.Equal(at) {
		t.Fatalf("expected transfer time, got %v", got)
	}
	p.TransferTime = time.Time{}
	if got := p.EffectiveTime(); !got.Equal(date) {
		t.Fatalf("expected date fallback, got %v", got)
	}
}

func TestAccountValidateDPS(t *testing.T) {
	base := Account{
		ID:                  "acc-1",
		Currency:            "USD",
		Active:              true,
		DPSEnabled:          true,
		DPSAmountType:       DPSAmountFixed,
		DPSFixedAmount:      decimal.NewFromInt(50),
		DPSSavingsAccountID: "acc-2",
	}
	if err := base.ValidateDPS(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	disabled := base
	disabled.DPSEnabled = false
	disabled.DPSSavingsAccountID = ""
	if err := disabled.ValidateDPS(); err != nil {
		t.Fatalf("dps-disabled account must always pass, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Account)
		want   error
	}{
		{"unlinked", func(a *Account) { a.DPSSavingsAccountID = "" }, ErrDPSNotLinked},
		{"self-linked", func(a *Account) { a.DPSSavingsAccountID = a.ID }, ErrDPSNotLinked},
		{"zero fixed amount", func(a *Account) { a.DPSFixedAmount = decimal.Zero }, ErrDPSFixedAmountInvalid},
		{"negative fixed amount", func(a *Account) { a.DPSFixedAmount = decimal.NewFromInt(-1) }, ErrDPSFixedAmountInvalid},
		{"bad amount type", func(a *Account) { a.DPSAmountType = "percent" }, ErrDPSAmountTypeInvalid},
	}
	for _, tc := range cases {
		acc := base
		tc.mutate(&acc)
		if err := acc.ValidateDPS(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}
