package services

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// Ledger is an immutable point-in-time read of the account registry and
// the posting log. Every query on it is a pure function of its contents,
// so the same ledger always yields the same answers regardless of call
// order.
type Ledger struct {
	accounts map[string]core.Account
	byAcct   map[string][]core.Posting // date ascending, insertion order preserved on ties
}

// NewLedger indexes the given registry and log. The inputs are treated as
// read-only; callers must not mutate them afterwards.
func NewLedger(accounts []core.Account, postings []core.Posting) *Ledger {
	l := &Ledger{
		accounts: make(map[string]core.Account, len(accounts)),
		byAcct:   make(map[string][]core.Posting),
	}
	for _, a := range accounts {
		l.accounts[a.ID] = a
	}
	for _, p := range postings {
		l.byAcct[p.AccountID] = append(l.byAcct[p.AccountID], p)
	}
	for id := range l.byAcct {
		ps := l.byAcct[id]
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].Date.Before(ps[j].Date) })
	}
	return l
}

// Account looks up an account by id.
func (l *Ledger) Account(id string) (core.Account, bool) {
	a, ok := l.accounts[id]
	return a, ok
}

// AccountName returns the registry name for an account, or the raw id when
// the registry has no such entry.
func (l *Ledger) AccountName(id string) string {
	if a, ok := l.accounts[id]; ok {
		return a.Name
	}
	return id
}

// BalanceAsOf returns the balance of an account immediately after the last
// posting dated at or before the given time.
//
// When the latest such posting carries a persisted post-balance snapshot,
// that value is returned directly. Otherwise the balance is replayed from
// the account's initial balance: credits add, debits subtract, in date
// order.
//
// An unknown account yields a zero balance together with
// core.ErrNoSuchAccount; a referential gap in a log this module does not
// own must degrade, not fail the whole query.
func (l *Ledger) BalanceAsOf(accountID string, at time.Time) (decimal.Decimal, error) {
	account, ok := l.accounts[accountID]
	if !ok {
		return decimal.Zero, core.ErrNoSuchAccount
	}

	var window []core.Posting
	for _, p := range l.byAcct[accountID] {
		if p.Date.After(at) {
			break
		}
		window = append(window, p)
	}

	// Snapshot path: trust the balance persisted with the latest posting.
	if n := len(window); n > 0 {
		if pb := window[n-1].PostBalance; pb != nil {
			return *pb, nil
		}
	}

	// Replay path: fold the log from the initial balance.
	balance := account.InitialBalance
	for _, p := range window {
		switch p.Type {
		case core.Credit:
			balance = balance.Add(p.Amount)
		case core.Debit:
			balance = balance.Sub(p.Amount)
		}
	}
	return balance, nil
}
