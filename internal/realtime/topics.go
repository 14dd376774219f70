package realtime

// Topic names. A signal on a topic means "reload this view", never carries data.

// UserChatsTopic fires when any chat the user belongs to changes.
func UserChatsTopic(userID string) string {
	return "user:" + userID + ":chats"
}

// ChatMessagesTopic fires when a message in the chat is created or mutated.
func ChatMessagesTopic(chatID string) string {
	return "chat:" + chatID + ":messages"
}

// PresenceTopic fires when the user's presence changes.
func PresenceTopic(userID string) string {
	return "presence:" + userID
}

// UserRequestsTopic fires when the user's incoming chat requests change.
func UserRequestsTopic(userID string) string {
	return "user:" + userID + ":requests"
}
