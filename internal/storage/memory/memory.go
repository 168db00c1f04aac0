// Package memory provides an in-process store used by tests and by the
// memory backend of the API server. It implements the same read and write
// boundaries as the SQLite repository.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"saldo/internal/core"
)

type Store struct {
	mu       sync.Mutex
	accounts []core.Account
	postings []core.Posting
	dps      []core.DPSTransfer
	seq      int
}

func New() *Store {
	return &Store{}
}

// Seed replaces the store contents. Meant for test setup and demo data.
func (s *Store) Seed(accounts []core.Account, postings []core.Posting, dps []core.DPSTransfer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = append([]core.Account(nil), accounts...)
	s.postings = append([]core.Posting(nil), postings...)
	s.dps = append([]core.DPSTransfer(nil), dps...)
}

// AddAccount registers one account.
func (s *Store) AddAccount(a core.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = append(s.accounts, a)
}

// AppendPosting appends one posting to the log.
func (s *Store) AppendPosting(p core.Posting) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		s.seq++
		p.ID = fmt.Sprintf("mem:%d", s.seq)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.postings = append(s.postings, p)
	return nil
}

func (s *Store) ListAccounts(_ context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Account(nil), s.accounts...), nil
}

func (s *Store) ListPostings(_ context.Context, accountID string, since time.Time) ([]core.Posting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Posting
	for _, p := range s.postings {
		if accountID != "" && p.AccountID != accountID {
			continue
		}
		if !since.IsZero() && p.Date.Before(since) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) ListDPSTransfers(_ context.Context) ([]core.DPSTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.DPSTransfer(nil), s.dps...), nil
}

// ExecuteDPSTransfer applies both legs and the DPS record as one unit
// under the store lock.
func (s *Store) ExecuteDPSTransfer(_ context.Context, exec core.DPSExecution) (core.DPSTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	fromBalance := exec.FromBalance
	toBalance := exec.ToBalance

	s.seq++
	s.postings = append(s.postings, core.Posting{
		ID:           fmt.Sprintf("mem:%d", s.seq),
		AccountID:    exec.FromAccountID,
		Amount:       exec.Amount,
		Date:         exec.Date,
		Type:         core.Debit,
		Tags:         []string{core.TagDPS, exec.GroupID},
		Note:         exec.FromNote,
		CreatedAt:    now,
		PostBalance:  &fromBalance,
		TransferTime: exec.Date,
	})
	s.seq++
	s.postings = append(s.postings, core.Posting{
		ID:           fmt.Sprintf("mem:%d", s.seq),
		AccountID:    exec.ToAccountID,
		Amount:       exec.Amount,
		Date:         exec.Date,
		Type:         core.Credit,
		Tags:         []string{core.TagDPS, exec.GroupID},
		Note:         exec.ToNote,
		CreatedAt:    now,
		PostBalance:  &toBalance,
		TransferTime: exec.Date,
	})

	rec := core.DPSTransfer{
		ID:            exec.GroupID,
		Date:          exec.Date,
		FromAccountID: exec.FromAccountID,
		ToAccountID:   exec.ToAccountID,
		Amount:        exec.Amount,
		CreatedAt:     now,
	}
	s.dps = append(s.dps, rec)
	return rec, nil
}
