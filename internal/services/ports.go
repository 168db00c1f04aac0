package services

import (
	"context"
	"time"

	"saldo/internal/core"
)

// LedgerReader is the read boundary onto the transaction store and the
// account and DPS registries. Implementations must return consistent
// point-in-time data per call; the services never cache across calls.
type LedgerReader interface {
	// ListAccounts returns the full account registry.
	ListAccounts(ctx context.Context) ([]core.Account, error)

	// ListPostings returns postings ordered by date ascending. An empty
	// accountID matches every account; a zero since matches the whole log.
	ListPostings(ctx context.Context, accountID string, since time.Time) ([]core.Posting, error)

	// ListDPSTransfers returns every automatic-savings record.
	ListDPSTransfers(ctx context.Context) ([]core.DPSTransfer, error)
}

// DPSExecutor is the write path for automatic-savings executions. The
// implementation owns atomicity: both postings and the DPSTransfer row
// must land together or not at all.
type DPSExecutor interface {
	ExecuteDPSTransfer(ctx context.Context, exec core.DPSExecution) (core.DPSTransfer, error)
}

// Store combines the read and write boundaries of the persistence layer.
type Store interface {
	LedgerReader
	DPSExecutor
}

// EventPublisher notifies downstream consumers of an executed transfer.
type EventPublisher interface {
	PublishTransferExecuted(ctx context.Context, rec core.DPSTransfer) error
}
