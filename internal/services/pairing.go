package services

import (
	"time"

	"saldo/internal/core"
)

// DanglingLeg is a transfer-tagged posting whose opposite leg never made it
// into the log. It points at an upstream atomicity failure in whatever
// wrote the pair, so it is reported rather than silently forgotten.
type DanglingLeg struct {
	GroupID   string
	PostingID string
	AccountID string
	Type      core.PostingType
	Date      time.Time
}

// PairingReport collects everything the pairing pass had to exclude or
// found suspicious. It is diagnostic output for operational auditing; none
// of it stops a query.
type PairingReport struct {
	// Dangling lists transfer-group ids with exactly one matching posting.
	Dangling []DanglingLeg

	// Malformed lists group ids with two same-signed legs or more than two
	// legs. Like dangling legs they are dropped from the output.
	Malformed []string

	// SameCurrencyMismatches lists emitted groups whose two legs share a
	// currency but disagree on amount. The group is still returned; the
	// divergence is flagged, not corrected.
	SameCurrencyMismatches []string
}

// DanglingCount returns the number of unmatched transfer legs.
func (r PairingReport) DanglingCount() int {
	return len(r.Dangling)
}

// Clean reports whether the pairing pass saw a fully consistent log.
func (r PairingReport) Clean() bool {
	return len(r.Dangling) == 0 && len(r.Malformed) == 0 && len(r.SameCurrencyMismatches) == 0
}

// PairTransfers groups transfer-tagged postings by their transfer-group
// identifier and emits a TransferGroup for every bucket with exactly one
// debit and one credit. Postings without the transfer label are ignored.
//
// The result order is deterministic: groups appear in first-seen order of
// their identifier within the input. Buckets that cannot form a valid pair
// are excluded from the output and recorded in the report.
func PairTransfers(postings []core.Posting, accounts []core.Account) ([]core.TransferGroup, PairingReport) {
	currencies := make(map[string]core.Account, len(accounts))
	for _, a := range accounts {
		currencies[a.ID] = a
	}

	buckets := make(map[string][]core.Posting)
	var order []string
	for _, p := range postings {
		groupID, ok := p.TransferGroupID()
		if !ok {
			continue
		}
		if _, seen := buckets[groupID]; !seen {
			order = append(order, groupID)
		}
		buckets[groupID] = append(buckets[groupID], p)
	}

	var groups []core.TransferGroup
	var report PairingReport
	for _, groupID := range order {
		legs := buckets[groupID]
		if len(legs) == 1 {
			leg := legs[0]
			report.Dangling = append(report.Dangling, DanglingLeg{
				GroupID:   groupID,
				PostingID: leg.ID,
				AccountID: leg.AccountID,
				Type:      leg.Type,
				Date:      leg.Date,
			})
			continue
		}
		if len(legs) > 2 {
			report.Malformed = append(report.Malformed, groupID)
			continue
		}

		var debit, credit *core.Posting
		for i := range legs {
			switch legs[i].Type {
			case core.Debit:
				debit = &legs[i]
			case core.Credit:
				credit = &legs[i]
			}
		}
		if debit == nil || credit == nil {
			report.Malformed = append(report.Malformed, groupID)
			continue
		}

		fromAcct := currencies[debit.AccountID]
		toAcct := currencies[credit.AccountID]

		group := core.TransferGroup{
			ID:            debit.ID + "_" + credit.ID,
			GroupID:       groupID,
			Date:          debit.Date,
			CreatedAt:     debit.CreatedAt,
			FromAccountID: debit.AccountID,
			ToAccountID:   credit.AccountID,
			FromAmount:    debit.Amount,
			ToAmount:      credit.Amount,
			FromCurrency:  fromAcct.Currency,
			ToCurrency:    toAcct.Currency,
			ExchangeRate:  credit.Amount.Div(debit.Amount),
			Note:          firstNonEmpty(debit.Note, credit.Note),
			TransferTime:  debit.EffectiveTime(),
			FromBalance:   debit.PostBalance,
			ToBalance:     credit.PostBalance,
		}
		if fromAcct.Currency != toAcct.Currency {
			group.Kind = core.CrossCurrency
		} else {
			group.Kind = core.SameCurrency
			if !debit.Amount.Equal(credit.Amount) {
				report.SameCurrencyMismatches = append(report.SameCurrencyMismatches, groupID)
			}
		}
		groups = append(groups, group)
	}

	return groups, report
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
