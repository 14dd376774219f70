package firestore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/noah-isme/vibely-go-api/internal/models"
	"github.com/noah-isme/vibely-go-api/internal/repository"
)

type chatRequestRepository struct {
	client *firestore.Client
}

// NewChatRequestRepository constructs a chat request repository stored under each recipient.
func NewChatRequestRepository(client *firestore.Client) repository.ChatRequestRepository {
	return &chatRequestRepository{client: client}
}

func (r *chatRequestRepository) requests(recipientID string) *firestore.CollectionRef {
	return r.client.Collection(usersCollection).Doc(recipientID).Collection(chatRequestsCollection)
}

func (r *chatRequestRepository) Create(ctx context.Context, request *models.ChatRequest) error {
	_, err := r.requests(request.RecipientID).Doc(request.ID).Create(ctx, newChatRequestDoc(*request))
	return translate(err)
}

func (r *chatRequestRepository) Get(ctx context.Context, recipientID, id string) (models.ChatRequest, error) {
	snap, err := r.requests(recipientID).Doc(id).Get(ctx)
	if err != nil {
		return models.ChatRequest{}, translate(err)
	}
	return decodeChatRequest(recipientID, snap)
}

func (r *chatRequestRepository) FindPending(ctx context.Context, recipientID, fromUserID string) (models.ChatRequest, error) {
	snaps, err := r.requests(recipientID).
		Where("fromUserId", "==", fromUserID).
		Where("status", "==", string(models.ChatRequestPending)).
		Limit(1).
		Documents(ctx).GetAll()
	if err != nil {
		return models.ChatRequest{}, err
	}
	if len(snaps) == 0 {
		return models.ChatRequest{}, repository.ErrNotFound
	}
	return decodeChatRequest(recipientID, snaps[0])
}

func (r *chatRequestRepository) ListPending(ctx context.Context, recipientID string) ([]models.ChatRequest, error) {
	snaps, err := r.requests(recipientID).
		Where("status", "==", string(models.ChatRequestPending)).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}

	requests := make([]models.ChatRequest, 0, len(snaps))
	for _, snap := range snaps {
		request, err := decodeChatRequest(recipientID, snap)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
	return requests, nil
}

func (r *chatRequestRepository) Resolve(ctx context.Context, recipientID, id string, status models.ChatRequestStatus, at time.Time) (models.ChatRequest, error) {
	ref := r.requests(recipientID).Doc(id)
	var result models.ChatRequest
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := decodeChatRequest(recipientID, snap)
		if err != nil {
			return err
		}
		result = current
		if current.IsTerminal() {
			return repository.ErrConflict
		}
		result.Status = status
		result.UpdatedAt = at
		return tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(status)},
			{Path: "updatedAt", Value: at},
		})
	})
	return result, translate(err)
}

func decodeChatRequest(recipientID string, snap *firestore.DocumentSnapshot) (models.ChatRequest, error) {
	var doc chatRequestDoc
	if err := snap.DataTo(&doc); err != nil {
		return models.ChatRequest{}, err
	}
	return doc.model(recipientID, snap.Ref.ID), nil
}
