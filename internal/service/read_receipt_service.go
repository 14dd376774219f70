package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/vibely-go-api/internal/dto"
	"github.com/noah-isme/vibely-go-api/internal/observability"
	"github.com/noah-isme/vibely-go-api/internal/realtime"
	"github.com/noah-isme/vibely-go-api/internal/repository"
)

// ReadReceiptReconciler marks messages read for the viewer of a chat.
type ReadReceiptReconciler interface {
	Reconcile(ctx context.Context, chatID, viewerID string, messages []dto.MessageResponse) (int, error)
	MarkChatRead(ctx context.Context, chatID, viewerID string) (int, error)
}

type readReceiptReconciler struct {
	messages  repository.MessageRepository
	snapshots MessageSnapshotter
	notifier  realtime.Notifier
	logger    zerolog.Logger
}

// NewReadReceiptReconciler constructs the reconciler.
func NewReadReceiptReconciler(messages repository.MessageRepository, snapshots MessageSnapshotter, notifier realtime.Notifier, logger zerolog.Logger) ReadReceiptReconciler {
	return &readReceiptReconciler{
		messages:  messages,
		snapshots: snapshots,
		notifier:  notifier,
		logger:    logger.With().Str("component", "read_receipts").Logger(),
	}
}

// Reconcile marks every unread message not authored by the viewer as read in one batch.
// With nothing to mark it performs no write.
func (r *readReceiptReconciler) Reconcile(ctx context.Context, chatID, viewerID string, messages []dto.MessageResponse) (int, error) {
	ids := make([]string, 0)
	for _, message := range messages {
		if message.AuthorID != viewerID && !message.IsRead() {
			ids = append(ids, message.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	marked, err := r.messages.MarkRead(ctx, chatID, ids)
	if err != nil {
		return 0, err
	}
	if marked > 0 {
		observability.ReceiptsMarked().Add(float64(marked))
		r.notifier.Publish(ctx, realtime.ChatMessagesTopic(chatID))
		r.logger.Debug().Str("chat_id", chatID).Str("viewer_id", viewerID).Int64("marked", marked).Msg("messages marked read")
	}
	return int(marked), nil
}

// MarkChatRead reconciles the chat's current snapshot for the viewer.
func (r *readReceiptReconciler) MarkChatRead(ctx context.Context, chatID, viewerID string) (int, error) {
	snapshot, err := r.snapshots.Snapshot(ctx, chatID, viewerID)
	if err != nil {
		return 0, err
	}
	return r.Reconcile(ctx, chatID, viewerID, snapshot.Messages)
}
