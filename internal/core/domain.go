package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Credit PostingType = "credit"
	Debit  PostingType = "debit"
)

const (
	// TagTransfer marks a posting as one leg of a two-sided transfer.
	// The tag immediately following it is the transfer-group identifier.
	TagTransfer = "transfer"

	// TagDPS marks postings written by the automatic-savings path. These
	// are intentionally not pairable: the dps_transfers table is the
	// authoritative record for that kind of movement.
	TagDPS = "dps"
)

const (
	CrossCurrency    TransferKind = "cross_currency"
	SameCurrency     TransferKind = "same_currency"
	AutomaticSavings TransferKind = "automatic_savings"
)

const (
	DPSAmountFixed    DPSAmountType = "fixed"
	DPSAmountVariable DPSAmountType = "variable"
)

type (
	PostingType   string
	TransferKind  string
	DPSAmountType string

	// Posting is a single-sided entry against one account. Postings are
	// immutable once written; the log is append-only.
	Posting struct {
		ID           string
		AccountID    string
		Amount       decimal.Decimal
		Date         time.Time
		Type         PostingType
		Tags         []string
		Note         string
		CreatedAt    time.Time
		PostBalance  *decimal.Decimal // account balance right after this posting, when persisted
		TransferTime time.Time        // zero when the posting is not part of a transfer
	}

	// Account is a row from the account registry, read-only to this module.
	Account struct {
		ID                  string
		Name                string
		Currency            string
		InitialBalance      decimal.Decimal
		Active              bool
		DPSEnabled          bool
		DPSAmountType       DPSAmountType
		DPSFixedAmount      decimal.Decimal
		DPSSavingsAccountID string
	}

	// TransferGroup is the two-sided movement synthesized from exactly one
	// debit and one credit posting sharing a transfer-group identifier. It
	// is derived on every read and never persisted.
	TransferGroup struct {
		ID            string
		GroupID       string
		Date          time.Time
		CreatedAt     time.Time
		FromAccountID string
		ToAccountID   string
		FromAmount    decimal.Decimal
		ToAmount      decimal.Decimal
		FromCurrency  string
		ToCurrency    string
		ExchangeRate  decimal.Decimal
		Kind          TransferKind
		Note          string
		TransferTime  time.Time
		FromBalance   *decimal.Decimal // snapshot carried by the debit leg, if any
		ToBalance     *decimal.Decimal // snapshot carried by the credit leg, if any
	}

	// DPSTransfer is a first-class automatic-savings record: one row per
	// transfer, authored atomically together with its two postings.
	DPSTransfer struct {
		ID            string
		Date          time.Time
		FromAccountID string
		ToAccountID   string
		Amount        decimal.Decimal
		CreatedAt     time.Time
	}

	// DPSExecution fully describes one validated automatic-savings
	// execution: both legs, the resolved amount and the post-balance
	// snapshots. The persistence layer must apply it as a single atomic
	// unit (debit posting, credit posting, one DPSTransfer row).
	DPSExecution struct {
		GroupID       string
		Date          time.Time
		FromAccountID string
		ToAccountID   string
		Amount        decimal.Decimal
		FromBalance   decimal.Decimal
		ToBalance     decimal.Decimal
		FromNote      string
		ToNote        string
	}

	// TransferView is the unified shape served to consumers. Kind is the
	// discriminant: cross_currency and same_currency come from paired
	// postings, automatic_savings from dps_transfers.
	TransferView struct {
		ID              string
		Kind            TransferKind
		Date            time.Time
		TransferTime    time.Time
		FromAccountID   string
		FromAccountName string
		ToAccountID     string
		ToAccountName   string
		FromAmount      decimal.Decimal
		ToAmount        decimal.Decimal
		FromCurrency    string
		ToCurrency      string
		ExchangeRate    decimal.Decimal
		Note            string
		FromBalance     decimal.Decimal // source balance right after the transfer
		ToBalance       decimal.Decimal // destination balance right after the transfer
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidPosting    = errors.New("invalid posting")
	ErrNoSuchAccount     = errors.New("no such account")
	ErrInactiveAccount   = errors.New("account is inactive")
	ErrSameAccount       = errors.New("source and destination accounts must differ")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// DPS configuration conditions. Callers must be able to tell "this
	// account is misconfigured" apart from "can't execute right now".
	ErrDPSDisabled           = errors.New("dps is not enabled on this account")
	ErrDPSNotLinked          = errors.New("dps savings account is not linked")
	ErrDPSFixedAmountInvalid = errors.New("dps fixed amount must be positive")
	ErrDPSAmountTypeInvalid  = errors.New("dps amount type must be fixed or variable")
)

// TransferGroupID returns the transfer-group identifier carried by the
// posting's tags. A posting is a transfer leg only when the reserved
// transfer label is present and followed by an identifier.
func (p Posting) TransferGroupID() (string, bool) {
	for i, tag := range p.Tags {
		if tag == TagTransfer {
			if i+1 < len(p.Tags) && p.Tags[i+1] != "" {
				return p.Tags[i+1], true
			}
			return "", false
		}
	}
	return "", false
}

func (p Posting) Validate() error {
	if strings.TrimSpace(p.AccountID) == "" {
		return ErrInvalidPosting
	}
	if p.Type != Credit && p.Type != Debit {
		return ErrInvalidPosting
	}
	if p.Date.IsZero() {
		return ErrInvalidPosting
	}
	if !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// EffectiveTime returns the persisted transfer time of a posting, falling
// back to the event date when none was recorded.
func (p Posting) EffectiveTime() time.Time {
	if !p.TransferTime.IsZero() {
		return p.TransferTime
	}
	return p.Date
}

// ValidateDPS checks the automatic-savings configuration of an account.
// Accounts without DPS always pass.
func (a Account) ValidateDPS() error {
	if !a.DPSEnabled {
		return nil
	}
	if strings.TrimSpace(a.DPSSavingsAccountID) == "" {
		return ErrDPSNotLinked
	}
	if a.DPSSavingsAccountID == a.ID {
		return ErrDPSNotLinked
	}
	switch a.DPSAmountType {
	case DPSAmountFixed:
		if !a.DPSFixedAmount.IsPositive() {
			return ErrDPSFixedAmountInvalid
		}
	case DPSAmountVariable:
		// amount supplied by the caller at execution time
	default:
		return ErrDPSAmountTypeInvalid
	}
	return nil
}
