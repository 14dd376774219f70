package firestore

import (
	"context"
	"sort"
	"strings"

	"cloud.google.com/go/firestore"

	"github.com/noah-isme/vibely-go-api/internal/models"
	"github.com/noah-isme/vibely-go-api/internal/repository"
)

type userRepository struct {
	client *firestore.Client
}

// NewUserRepository constructs a user repository backed by Firestore.
// User codes are claimed through userCodes/{code} documents inside the same transaction as the profile.
func NewUserRepository(client *firestore.Client) repository.UserRepository {
	return &userRepository{client: client}
}

func (r *userRepository) users() *firestore.CollectionRef {
	return r.client.Collection(usersCollection)
}

func (r *userRepository) codes() *firestore.CollectionRef {
	return r.client.Collection(userCodesCollection)
}

func (r *userRepository) Get(ctx context.Context, id string) (models.User, error) {
	snap, err := r.users().Doc(id).Get(ctx)
	if err != nil {
		return models.User{}, translate(err)
	}
	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return models.User{}, err
	}
	return doc.model(snap.Ref.ID), nil
}

func (r *userRepository) GetMany(ctx context.Context, ids []string) (map[string]models.User, error) {
	result := make(map[string]models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, r.users().Doc(id))
	}

	snaps, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return nil, err
	}
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		var doc userDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, err
		}
		result[snap.Ref.ID] = doc.model(snap.Ref.ID)
	}
	return result, nil
}

func (r *userRepository) GetByUserCode(ctx context.Context, code string) (models.User, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return models.User{}, repository.ErrNotFound
	}
	snap, err := r.codes().Doc(code).Get(ctx)
	if err != nil {
		return models.User{}, translate(err)
	}
	var claim userCodeDoc
	if err := snap.DataTo(&claim); err != nil {
		return models.User{}, err
	}
	return r.Get(ctx, claim.UserID)
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	userRef := r.users().Doc(user.ID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(userRef); err == nil {
			return repository.ErrConflict
		} else if !isNotFound(err) {
			return err
		}

		var codeRef *firestore.DocumentRef
		if user.UserCode != "" {
			codeRef = r.codes().Doc(user.UserCode)
			if _, err := tx.Get(codeRef); err == nil {
				return repository.ErrConflict
			} else if !isNotFound(err) {
				return err
			}
		}

		if err := tx.Create(userRef, newUserDoc(*user)); err != nil {
			return err
		}
		if codeRef != nil {
			return tx.Create(codeRef, userCodeDoc{UserID: user.ID})
		}
		return nil
	})
	return translate(err)
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	userRef := r.users().Doc(user.ID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(userRef)
		if err != nil {
			return translate(err)
		}
		var current userDoc
		if err := snap.DataTo(&current); err != nil {
			return err
		}

		codeChanged := user.UserCode != "" && user.UserCode != current.UserCode
		if codeChanged {
			claimSnap, err := tx.Get(r.codes().Doc(user.UserCode))
			switch {
			case err == nil:
				var claim userCodeDoc
				if err := claimSnap.DataTo(&claim); err != nil {
					return err
				}
				if claim.UserID != user.ID {
					return repository.ErrConflict
				}
			case !isNotFound(err):
				return err
			}
		}

		next := newUserDoc(*user)
		next.CreatedAt = current.CreatedAt
		if err := tx.Set(userRef, next); err != nil {
			return err
		}
		if codeChanged {
			if err := tx.Set(r.codes().Doc(user.UserCode), userCodeDoc{UserID: user.ID}); err != nil {
				return err
			}
			if current.UserCode != "" {
				return tx.Delete(r.codes().Doc(current.UserCode))
			}
		}
		return nil
	})
	return translate(err)
}

func (r *userRepository) Search(ctx context.Context, term, excludeID string, limit int) ([]models.User, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return []models.User{}, nil
	}
	if limit <= 0 || limit > 10 {
		limit = 10
	}

	snaps, err := r.users().
		Where("searchableTerms", "array-contains", term).
		Limit(limit + 1).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(snaps))
	for _, snap := range snaps {
		if snap.Ref.ID == excludeID {
			continue
		}
		var doc userDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, err
		}
		users = append(users, doc.model(snap.Ref.ID))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}
