package services

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// ListFilters narrows the unified transfer collection. Zero values match
// everything.
type ListFilters struct {
	// Search matches case-insensitively against account names and the
	// source amount's decimal representation.
	Search string

	// Kind keeps only transfers of one kind when set.
	Kind core.TransferKind

	// Since keeps only transfers dated at or after the given time.
	Since time.Time
}

// UnifyTransfers merges paired transfer groups and automatic-savings
// records into one filtered, date-descending collection.
//
// Each leg's post-transfer balance comes from the originating posting's
// persisted snapshot when the pairing pass carried one through; otherwise
// it is resolved against the ledger. DPS records never carry their own
// snapshot, so they always take the ledger path. A balance that cannot be
// resolved because the account is unknown degrades to zero.
func UnifyTransfers(ledger *Ledger, groups []core.TransferGroup, dps []core.DPSTransfer, filters ListFilters) []core.TransferView {
	views := make([]core.TransferView, 0, len(groups)+len(dps))

	for _, g := range groups {
		views = append(views, core.TransferView{
			ID:              g.ID,
			Kind:            g.Kind,
			Date:            g.Date,
			TransferTime:    g.TransferTime,
			FromAccountID:   g.FromAccountID,
			FromAccountName: ledger.AccountName(g.FromAccountID),
			ToAccountID:     g.ToAccountID,
			ToAccountName:   ledger.AccountName(g.ToAccountID),
			FromAmount:      g.FromAmount,
			ToAmount:        g.ToAmount,
			FromCurrency:    g.FromCurrency,
			ToCurrency:      g.ToCurrency,
			ExchangeRate:    g.ExchangeRate,
			Note:            g.Note,
			FromBalance:     resolveBalance(ledger, g.FromBalance, g.FromAccountID, g.Date),
			ToBalance:       resolveBalance(ledger, g.ToBalance, g.ToAccountID, g.Date),
		})
	}

	for _, d := range dps {
		fromCurrency := ""
		toCurrency := ""
		if a, ok := ledger.Account(d.FromAccountID); ok {
			fromCurrency = a.Currency
		}
		if a, ok := ledger.Account(d.ToAccountID); ok {
			toCurrency = a.Currency
		}
		views = append(views, core.TransferView{
			ID:              d.ID,
			Kind:            core.AutomaticSavings,
			Date:            d.Date,
			TransferTime:    d.Date,
			FromAccountID:   d.FromAccountID,
			FromAccountName: ledger.AccountName(d.FromAccountID),
			ToAccountID:     d.ToAccountID,
			ToAccountName:   ledger.AccountName(d.ToAccountID),
			FromAmount:      d.Amount,
			ToAmount:        d.Amount,
			FromCurrency:    fromCurrency,
			ToCurrency:      toCurrency,
			ExchangeRate:    decimal.NewFromInt(1),
			FromBalance:     resolveBalance(ledger, nil, d.FromAccountID, d.Date),
			ToBalance:       resolveBalance(ledger, nil, d.ToAccountID, d.Date),
		})
	}

	views = applyFilters(views, filters)

	// Stable date-descending sort; ties keep insertion order.
	sort.SliceStable(views, func(i, j int) bool { return views[i].Date.After(views[j].Date) })

	return views
}

func resolveBalance(ledger *Ledger, snapshot *decimal.Decimal, accountID string, at time.Time) decimal.Decimal {
	if snapshot != nil {
		return *snapshot
	}
	balance, err := ledger.BalanceAsOf(accountID, at)
	if err != nil {
		return decimal.Zero
	}
	return balance
}

func applyFilters(views []core.TransferView, filters ListFilters) []core.TransferView {
	if filters.Search == "" && filters.Kind == "" && filters.Since.IsZero() {
		return views
	}

	search := strings.ToLower(strings.TrimSpace(filters.Search))
	kept := views[:0]
	for _, v := range views {
		if filters.Kind != "" && v.Kind != filters.Kind {
			continue
		}
		if !filters.Since.IsZero() && v.Date.Before(filters.Since) {
			continue
		}
		if search != "" && !matchesSearch(v, search) {
			continue
		}
		kept = append(kept, v)
	}
	return kept
}

func matchesSearch(v core.TransferView, search string) bool {
	return strings.Contains(strings.ToLower(v.FromAccountName), search) ||
		strings.Contains(strings.ToLower(v.ToAccountName), search) ||
		strings.Contains(v.FromAmount.String(), search) ||
		strings.Contains(strings.ToLower(v.Note), search)
}
