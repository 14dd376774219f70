package service

import "errors"

var (
	// ErrChatNotFound indicates the chat does not exist.
	ErrChatNotFound = errors.New("chat not found")
	// ErrNotChatMember indicates the caller is not a member of the chat.
	ErrNotChatMember = errors.New("not a member of this chat")
	// ErrCannotDMSelf indicates a direct chat was requested with oneself.
	ErrCannotDMSelf = errors.New("cannot start a direct chat with yourself")
	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidMembers indicates the member list does not fit the chat kind.
	ErrInvalidMembers = errors.New("invalid chat members")
	// ErrEmptyMessage indicates the message had no content after sanitisation.
	ErrEmptyMessage = errors.New("message content empty after sanitization")
	// ErrMessageNotFound indicates the message does not exist in the chat.
	ErrMessageNotFound = errors.New("message not found")
	// ErrDuplicateRequest indicates a pending request from the same sender already exists.
	ErrDuplicateRequest = errors.New("chat request already pending")
	// ErrRequestNotFound indicates the chat request does not exist.
	ErrRequestNotFound = errors.New("chat request not found")
	// ErrRequestResolved indicates the chat request was already answered.
	ErrRequestResolved = errors.New("chat request already answered")
	// ErrUserCodeExhausted indicates no free user code was found within the retry budget.
	ErrUserCodeExhausted = errors.New("could not allocate a unique user code")
	// ErrAssistantUnavailable indicates no AI assistant is configured.
	ErrAssistantUnavailable = errors.New("ai assistant not configured")
	// ErrCompanionNotFound indicates the companion does not exist for this owner.
	ErrCompanionNotFound = errors.New("companion not found")
	// ErrNoActiveChat indicates a chat-scoped realtime event arrived before chat.open.
	ErrNoActiveChat = errors.New("no active chat")
)
