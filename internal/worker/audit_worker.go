// Package worker holds the background consumers that run outside the API
// server process.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"saldo/internal/amqp"
	"saldo/internal/storage"
)

// AuditWorker records executed automatic-savings transfers into the
// activity log. It consumes the transfer executed queue so the audit
// trail survives even when the API server restarts mid-flight.
type AuditWorker struct {
	storage *storage.SQLiteRepository
}

func NewAuditWorker(storage *storage.SQLiteRepository) *AuditWorker {
	return &AuditWorker{storage: storage}
}

// HandleTransferExecuted processes a single transfer executed message
func (w *AuditWorker) HandleTransferExecuted(ctx context.Context, msg *amqp.TransferExecutedMessage) error {
	slog.InfoContext(ctx, "Processing transfer executed message",
		"id", msg.ID,
		"from_account", msg.FromAccountID,
		"to_account", msg.ToAccountID)

	entry := storage.ActivityEntry{
		ActivityType: "transfer_executed",
		EntityType:   "dps_transfer",
		EntityID:     msg.ID,
		Description: fmt.Sprintf("transferred %s from %s to %s",
			msg.Amount, msg.FromAccountID, msg.ToAccountID),
	}
	if err := w.storage.RecordActivity(ctx, entry); err != nil {
		return fmt.Errorf("record activity: %w", err)
	}

	slog.InfoContext(ctx, "Recorded transfer in activity log", "id", msg.ID)
	return nil
}
