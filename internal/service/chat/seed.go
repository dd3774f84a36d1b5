package chat

import (
	"context"

	"github.com/zhouzirui/talkative/internal/model/chat"
)

// SeedUsers are the demo identities referenced by Seed.
var SeedUsers = []string{"alice", "bob", "carol"}

// Seed preloads the store with demo conversations so the terminal
// client has something to join out of the box.
func Seed(ctx context.Context, s *Service) []chat.Chat {
	general, _ := s.CreateChat(ctx, "general", true, SeedUsers)
	dm, _ := s.CreateChat(ctx, "alice-bob", false, []string{"alice", "bob"})
	return []chat.Chat{general, dm}
}
