package firestore

import (
	"context"

	"cloud.google.com/go/firestore"

	"github.com/noah-isme/vibely-go-api/internal/models"
	"github.com/noah-isme/vibely-go-api/internal/repository"
)

type messageRepository struct {
	client *firestore.Client
}

// NewMessageRepository constructs a message repository backed by Firestore sub-collections.
func NewMessageRepository(client *firestore.Client) repository.MessageRepository {
	return &messageRepository{client: client}
}

func (r *messageRepository) messages(chatID string) *firestore.CollectionRef {
	return r.client.Collection(chatsCollection).Doc(chatID).Collection(messagesCollection)
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	doc := newMessageDoc(*message)
	doc.Reactions = []reactionDoc{}
	_, err := r.messages(message.ChatID).Doc(message.ID).Create(ctx, doc)
	return translate(err)
}

func (r *messageRepository) Get(ctx context.Context, chatID, messageID string) (models.Message, error) {
	snap, err := r.messages(chatID).Doc(messageID).Get(ctx)
	if err != nil {
		return models.Message{}, translate(err)
	}
	var doc messageDoc
	if err := snap.DataTo(&doc); err != nil {
		return models.Message{}, err
	}
	return doc.model(chatID, snap.Ref.ID), nil
}

func (r *messageRepository) ListByChat(ctx context.Context, chatID string, cursor repository.MessageCursor, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := r.messages(chatID).Query
	if cursor.ID == "" && !cursor.Before.IsZero() {
		query = query.Where("timestamp", "<", cursor.Before)
	}
	query = query.
		OrderBy("timestamp", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc)
	if cursor.ID != "" {
		anchor, err := r.messages(chatID).Doc(cursor.ID).Get(ctx)
		if err != nil {
			return nil, translate(err)
		}
		query = query.StartAfter(anchor)
	}

	snaps, err := query.Limit(limit).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, len(snaps))
	for i, snap := range snaps {
		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, err
		}
		messages[len(snaps)-1-i] = doc.model(chatID, snap.Ref.ID)
	}
	return messages, nil
}

// MarkRead commits one write batch per 500 messages. Every write only ever sets "read".
func (r *messageRepository) MarkRead(ctx context.Context, chatID string, messageIDs []string) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(messageIDs))
	for _, id := range messageIDs {
		refs = append(refs, r.messages(chatID).Doc(id))
	}

	var affected int64
	for _, group := range chunk(refs, maxBatchWrites) {
		batch := r.client.Batch()
		for _, ref := range group {
			batch.Update(ref, []firestore.Update{{Path: "readStatus", Value: models.ReadStatusRead}})
		}
		if _, err := batch.Commit(ctx); err != nil {
			return affected, translate(err)
		}
		affected += int64(len(group))
	}
	return affected, nil
}

// ToggleReaction reads the reaction list inside a transaction and applies
// ArrayRemove or ArrayUnion so concurrent reactors never overwrite each other.
func (r *messageRepository) ToggleReaction(ctx context.Context, chatID string, reaction models.MessageReaction) (bool, error) {
	ref := r.messages(chatID).Doc(reaction.MessageID)
	added := false
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		added = false
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}

		for _, existing := range doc.Reactions {
			if existing.UserID == reaction.UserID && existing.Emoji == reaction.Emoji {
				return tx.Update(ref, []firestore.Update{{Path: "reactions", Value: firestore.ArrayRemove(existing)}})
			}
		}

		added = true
		entry := reactionDoc{Emoji: reaction.Emoji, UserID: reaction.UserID, Username: reaction.Username}
		return tx.Update(ref, []firestore.Update{{Path: "reactions", Value: firestore.ArrayUnion(entry)}})
	})
	return added, translate(err)
}
