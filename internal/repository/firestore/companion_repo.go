package firestore

import (
	"context"
	"sort"

	"cloud.google.com/go/firestore"

	"github.com/noah-isme/vibely-go-api/internal/models"
	"github.com/noah-isme/vibely-go-api/internal/repository"
)

type companionRepository struct {
	client *firestore.Client
}

// NewCompanionRepository constructs a companion repository on the top-level companions collection.
func NewCompanionRepository(client *firestore.Client) repository.CompanionRepository {
	return &companionRepository{client: client}
}

func (r *companionRepository) companions() *firestore.CollectionRef {
	return r.client.Collection(companionsCollection)
}

func (r *companionRepository) Create(ctx context.Context, companion *models.Companion) error {
	_, err := r.companions().Doc(companion.ID).Create(ctx, newCompanionDoc(*companion))
	return translate(err)
}

func (r *companionRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Companion, error) {
	snaps, err := r.companions().Where("ownerId", "==", ownerID).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}

	companions := make([]models.Companion, 0, len(snaps))
	for _, snap := range snaps {
		var doc companionDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, err
		}
		companions = append(companions, doc.model(snap.Ref.ID))
	}
	sort.SliceStable(companions, func(i, j int) bool {
		return companions[i].CreatedAt.After(companions[j].CreatedAt)
	})
	return companions, nil
}

func (r *companionRepository) Delete(ctx context.Context, ownerID, id string) error {
	ref := r.companions().Doc(id)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return translate(err)
		}
		var doc companionDoc
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		if doc.OwnerID != ownerID {
			return repository.ErrNotFound
		}
		return tx.Delete(ref)
	})
	return translate(err)
}
