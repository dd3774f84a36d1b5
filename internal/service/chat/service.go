package chat

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/talkative/internal/model/chat"
)

var (
	ErrChatNotFound   = errors.New("chat not found")
	ErrEmptyContent   = errors.New("message content is required")
	ErrNotParticipant = errors.New("user is not a chat participant")
)

// Service is the authoritative history store: it owns persisted chats
// and their message sequences, and assigns message ids and timestamps.
type Service struct {
	mu       sync.RWMutex
	chats    map[string]chat.Chat
	messages map[string][]chat.Message
}

// NewService bootstraps the in-memory history store.
func NewService() *Service {
	return &Service{
		chats:    make(map[string]chat.Chat),
		messages: make(map[string][]chat.Message),
	}
}

// CreateChat registers a conversation between the given users.
func (s *Service) CreateChat(_ context.Context, name string, isGroup bool, userIDs []string) (chat.Chat, error) {
	if len(userIDs) < 2 {
		return chat.Chat{}, errors.New("a chat needs at least two participants")
	}

	c := chat.Chat{
		ID:      uuid.NewString(),
		Name:    name,
		IsGroup: isGroup,
		UserIDs: append([]string(nil), userIDs...),
	}

	s.mu.Lock()
	s.chats[c.ID] = c
	s.messages[c.ID] = make([]chat.Message, 0, 16)
	s.mu.Unlock()

	return c, nil
}

// GetChat retrieves a chat by identifier.
func (s *Service) GetChat(_ context.Context, chatID string) (chat.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[chatID]
	if !ok {
		return chat.Chat{}, ErrChatNotFound
	}
	return c, nil
}

// ListChats returns the chats the user participates in.
func (s *Service) ListChats(_ context.Context, userID string) []chat.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chats := make([]chat.Chat, 0, len(s.chats))
	for _, c := range s.chats {
		if c.HasUser(userID) {
			chats = append(chats, c)
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].Name < chats[j].Name })
	return chats
}

// SaveMessage persists a new message, assigning its authoritative id
// and timestamp.
func (s *Service) SaveMessage(_ context.Context, chatID, senderID, content string) (chat.Message, error) {
	if content == "" {
		return chat.Message{}, ErrEmptyContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok {
		return chat.Message{}, ErrChatNotFound
	}
	if !c.HasUser(senderID) {
		return chat.Message{}, ErrNotParticipant
	}

	msg := chat.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	s.messages[chatID] = append(s.messages[chatID], msg)
	return msg, nil
}

// ListMessages returns the stored sequence for a chat, oldest first.
func (s *Service) ListMessages(_ context.Context, chatID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}
