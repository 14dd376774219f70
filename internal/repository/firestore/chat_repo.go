package firestore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/noah-isme/vibely-go-api/internal/models"
	"github.com/noah-isme/vibely-go-api/internal/repository"
)

type chatRepository struct {
	client *firestore.Client
}

// NewChatRepository constructs a chat repository backed by Firestore.
func NewChatRepository(client *firestore.Client) repository.ChatRepository {
	return &chatRepository{client: client}
}

func (r *chatRepository) chats() *firestore.CollectionRef {
	return r.client.Collection(chatsCollection)
}

func (r *chatRepository) Get(ctx context.Context, id string) (models.Chat, error) {
	snap, err := r.chats().Doc(id).Get(ctx)
	if err != nil {
		return models.Chat{}, translate(err)
	}
	return decodeChat(snap)
}

func (r *chatRepository) ListForMember(ctx context.Context, userID string) ([]models.Chat, error) {
	snaps, err := r.chats().Where("members", "array-contains", userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}

	chats := make([]models.Chat, 0, len(snaps))
	for _, snap := range snaps {
		chat, err := decodeChat(snap)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
	return chats, nil
}

func (r *chatRepository) FindDirect(ctx context.Context, a, b string) (models.Chat, error) {
	snaps, err := r.chats().
		Where("members", "array-contains", a).
		Where("isDM", "==", true).
		Documents(ctx).GetAll()
	if err != nil {
		return models.Chat{}, err
	}
	for _, snap := range snaps {
		chat, err := decodeChat(snap)
		if err != nil {
			return models.Chat{}, err
		}
		if chat.Kind() == models.ChatKindDirect && chat.HasMember(b) {
			return chat, nil
		}
	}
	return models.Chat{}, repository.ErrNotFound
}

func (r *chatRepository) Create(ctx context.Context, chat *models.Chat) error {
	_, err := r.chats().Doc(chat.ID).Create(ctx, newChatDoc(*chat))
	return translate(err)
}

// CreateIfAbsent relies on Create failing with AlreadyExists so concurrent creators converge.
func (r *chatRepository) CreateIfAbsent(ctx context.Context, chat *models.Chat) (models.Chat, bool, error) {
	_, err := r.chats().Doc(chat.ID).Create(ctx, newChatDoc(*chat))
	switch {
	case err == nil:
		stored, getErr := r.Get(ctx, chat.ID)
		return stored, true, getErr
	case isAlreadyExists(err):
		stored, getErr := r.Get(ctx, chat.ID)
		return stored, false, getErr
	default:
		return models.Chat{}, false, err
	}
}

func (r *chatRepository) Touch(ctx context.Context, chatID string, at time.Time) error {
	ref := r.chats().Doc(chatID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := snap.DataAt("updatedAt")
		if err == nil {
			if ts, ok := current.(time.Time); ok && !ts.Before(at) {
				return nil
			}
		}
		return tx.Update(ref, []firestore.Update{{Path: "updatedAt", Value: at}})
	})
	return translate(err)
}

func (r *chatRepository) UpdateAutomations(ctx context.Context, chatID string, automations []models.Automation, at time.Time) error {
	if automations == nil {
		automations = []models.Automation{}
	}
	_, err := r.chats().Doc(chatID).Update(ctx, []firestore.Update{
		{Path: "automations", Value: automations},
		{Path: "updatedAt", Value: at},
	})
	return translate(err)
}

func decodeChat(snap *firestore.DocumentSnapshot) (models.Chat, error) {
	var doc chatDoc
	if err := snap.DataTo(&doc); err != nil {
		return models.Chat{}, err
	}
	return doc.model(snap.Ref.ID), nil
}
