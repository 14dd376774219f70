// Package firestore implements the repository interfaces on Cloud Firestore.
//
// Layout: users/{uid}, userCodes/{code}, users/{uid}/chatRequests/{id},
// chats/{chatId}, chats/{chatId}/messages/{messageId} and companions/{id}.
package firestore

import (
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/noah-isme/vibely-go-api/internal/models"
	"github.com/noah-isme/vibely-go-api/internal/repository"
)

const (
	usersCollection        = "users"
	userCodesCollection    = "userCodes"
	chatsCollection        = "chats"
	messagesCollection     = "messages"
	chatRequestsCollection = "chatRequests"
	companionsCollection   = "companions"

	maxBatchWrites = 500
)

type userDoc struct {
	SchemaVersion int        `firestore:"schemaVersion"`
	Email         string     `firestore:"email"`
	FullName      string     `firestore:"fullName"`
	Username      string     `firestore:"username"`
	UserCode      string     `firestore:"userCode"`
	AvatarURL     string     `firestore:"avatarUrl"`
	SearchTerms   []string   `firestore:"searchableTerms"`
	CompletedAt   *time.Time `firestore:"profileCompletedAt"`
	CreatedAt     time.Time  `firestore:"createdAt"`
	UpdatedAt     time.Time  `firestore:"updatedAt"`
}

type userCodeDoc struct {
	UserID string `firestore:"userId"`
}

type chatDoc struct {
	SchemaVersion int                 `firestore:"schemaVersion"`
	Name          string              `firestore:"name"`
	Description   string              `firestore:"description"`
	IsPublic      bool                `firestore:"isPublic"`
	IsDM          bool                `firestore:"isDM"`
	OwnerID       string              `firestore:"ownerId"`
	Members       []string            `firestore:"members"`
	Automations   []models.Automation `firestore:"automations"`
	CreatedAt     time.Time           `firestore:"createdAt"`
	UpdatedAt     time.Time           `firestore:"updatedAt"`
}

type reactionDoc struct {
	Emoji    string `firestore:"emoji"`
	UserID   string `firestore:"userId"`
	Username string `firestore:"username"`
}

type messageDoc struct {
	AuthorID   string        `firestore:"authorId"`
	Content    string        `firestore:"content"`
	Timestamp  time.Time     `firestore:"timestamp"`
	ReadStatus *string       `firestore:"readStatus"`
	Reactions  []reactionDoc `firestore:"reactions"`
}

type chatRequestDoc struct {
	FromUserID    string    `firestore:"fromUserId"`
	FromUserCode  string    `firestore:"fromUserCode"`
	FromFullName  string    `firestore:"fromFullName"`
	FromAvatarURL string    `firestore:"fromAvatarUrl"`
	Status        string    `firestore:"status"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

func newUserDoc(user models.User) userDoc {
	return userDoc{
		SchemaVersion: user.SchemaVersion,
		Email:         user.Email,
		FullName:      user.FullName,
		Username:      user.Username,
		UserCode:      user.UserCode,
		AvatarURL:     user.AvatarURL,
		SearchTerms:   searchTerms(user),
		CompletedAt:   user.ProfileCompletedAt,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

func (d userDoc) model(id string) models.User {
	return models.User{
		ID:                 id,
		SchemaVersion:      d.SchemaVersion,
		Email:              d.Email,
		FullName:           d.FullName,
		Username:           d.Username,
		UserCode:           d.UserCode,
		AvatarURL:          d.AvatarURL,
		ProfileCompletedAt: d.CompletedAt,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

func newChatDoc(chat models.Chat) chatDoc {
	automations := []models.Automation(chat.Automations)
	if automations == nil {
		automations = []models.Automation{}
	}
	return chatDoc{
		SchemaVersion: chat.SchemaVersion,
		Name:          chat.Name,
		Description:   chat.Description,
		IsPublic:      chat.IsPublic,
		IsDM:          chat.IsDM,
		OwnerID:       chat.OwnerID,
		Members:       chat.MemberIDs(),
		Automations:   automations,
		CreatedAt:     chat.CreatedAt,
		UpdatedAt:     chat.UpdatedAt,
	}
}

func (d chatDoc) model(id string) models.Chat {
	chat := models.Chat{
		ID:            id,
		SchemaVersion: d.SchemaVersion,
		Name:          d.Name,
		Description:   d.Description,
		IsPublic:      d.IsPublic,
		IsDM:          d.IsDM,
		OwnerID:       d.OwnerID,
		Members:       models.NewMembers(id, d.Members...),
		Automations:   d.Automations,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	chat.Normalize()
	return chat
}

func newMessageDoc(message models.Message) messageDoc {
	reactions := make([]reactionDoc, 0, len(message.Reactions))
	for _, reaction := range message.Reactions {
		reactions = append(reactions, reactionDoc{Emoji: reaction.Emoji, UserID: reaction.UserID, Username: reaction.Username})
	}
	return messageDoc{
		AuthorID:   message.AuthorID,
		Content:    message.Content,
		Timestamp:  message.Timestamp,
		ReadStatus: message.ReadStatus,
		Reactions:  reactions,
	}
}

func (d messageDoc) model(chatID, id string) models.Message {
	reactions := make([]models.MessageReaction, 0, len(d.Reactions))
	for _, reaction := range d.Reactions {
		reactions = append(reactions, models.MessageReaction{
			MessageID: id,
			UserID:    reaction.UserID,
			Username:  reaction.Username,
			Emoji:     reaction.Emoji,
		})
	}
	return models.Message{
		ID:         id,
		ChatID:     chatID,
		AuthorID:   d.AuthorID,
		Content:    d.Content,
		Timestamp:  d.Timestamp,
		ReadStatus: d.ReadStatus,
		Reactions:  reactions,
	}
}

func newChatRequestDoc(request models.ChatRequest) chatRequestDoc {
	return chatRequestDoc{
		FromUserID:    request.FromUserID,
		FromUserCode:  request.FromUserCode,
		FromFullName:  request.FromFullName,
		FromAvatarURL: request.FromAvatarURL,
		Status:        string(request.Status),
		CreatedAt:     request.CreatedAt,
		UpdatedAt:     request.UpdatedAt,
	}
}

func (d chatRequestDoc) model(recipientID, id string) models.ChatRequest {
	return models.ChatRequest{
		ID:            id,
		RecipientID:   recipientID,
		FromUserID:    d.FromUserID,
		FromUserCode:  d.FromUserCode,
		FromFullName:  d.FromFullName,
		FromAvatarURL: d.FromAvatarURL,
		Status:        models.ChatRequestStatus(d.Status),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// searchTerms lists the lowercase tokens matched by array-contains user search.
type companionDoc struct {
	OwnerID   string    `firestore:"ownerId"`
	Name      string    `firestore:"name"`
	Persona   string    `firestore:"persona"`
	Voice     string    `firestore:"voice"`
	AvatarURL string    `firestore:"avatarUrl"`
	Tools     []string  `firestore:"tools"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func newCompanionDoc(companion models.Companion) companionDoc {
	return companionDoc{
		OwnerID:   companion.OwnerID,
		Name:      companion.Name,
		Persona:   companion.Persona,
		Voice:     companion.Voice,
		AvatarURL: companion.AvatarURL,
		Tools:     []string(companion.Tools),
		CreatedAt: companion.CreatedAt,
	}
}

func (d companionDoc) model(id string) models.Companion {
	companion := models.Companion{
		ID:        id,
		OwnerID:   d.OwnerID,
		Name:      d.Name,
		Persona:   d.Persona,
		Voice:     d.Voice,
		AvatarURL: d.AvatarURL,
		Tools:     d.Tools,
		CreatedAt: d.CreatedAt,
	}
	companion.Normalize()
	return companion
}

func searchTerms(user models.User) []string {
	seen := make(map[string]struct{})
	var terms []string
	add := func(term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	addPrefixes := func(word string) {
		word = strings.ToLower(strings.TrimSpace(word))
		runes := []rune(word)
		for i := 2; i <= len(runes); i++ {
			add(string(runes[:i]))
		}
	}

	add(user.FullName)
	add(user.UserCode)
	addPrefixes(user.Username)
	for _, word := range strings.Fields(user.FullName) {
		addPrefixes(word)
	}

	sort.Strings(terms)
	return terms
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case isNotFound(err):
		return repository.ErrNotFound
	case isAlreadyExists(err):
		return repository.ErrConflict
	default:
		return err
	}
}

func chunk(refs []*firestore.DocumentRef, size int) [][]*firestore.DocumentRef {
	var chunks [][]*firestore.DocumentRef
	for start := 0; start < len(refs); start += size {
		end := start + size
		if end > len(refs) {
			end = len(refs)
		}
		chunks = append(chunks, refs[start:end])
	}
	return chunks
}
