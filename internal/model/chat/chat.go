package chat

// User identifies a signed-in participant.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Chat describes a conversation shared by two or more users. The core
// treats it as immutable; only the "currently active" pointer held by
// the stream controller ever changes.
type Chat struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	IsGroup bool     `json:"isGroup"`
	UserIDs []string `json:"userIds"`
}

// HasUser reports whether the given user participates in the chat.
func (c Chat) HasUser(userID string) bool {
	for _, id := range c.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
