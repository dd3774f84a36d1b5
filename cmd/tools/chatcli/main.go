// Command chatcli is a terminal exercise rig for the sync core: it
// signs in as one user, opens a conversation and drives keystrokes,
// sends, and chat switches from stdin while printing every
// presentation callback.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/talkative/internal/auth"
	"github.com/zhouzirui/talkative/internal/client"
	"github.com/zhouzirui/talkative/internal/config"
	"github.com/zhouzirui/talkative/internal/model/chat"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	user := flag.String("user", "", "user id to sign in as")
	name := flag.String("name", "", "display name (defaults to user id)")
	token := flag.String("token", "", "bearer token; minted from TOKEN_SECRET when empty")
	chatID := flag.String("chat", "", "conversation to open on startup")
	server := flag.String("server", cfg.Client.ServerURL, "server base URL")
	flag.Parse()

	if *user == "" {
		flag.Usage()
		log.Fatal("-user is required")
	}
	if *name == "" {
		*name = *user
	}

	credential := *token
	if credential == "" {
		signer := auth.NewSigner(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
		credential, err = signer.Sign(*user)
		if err != nil {
			log.Fatalf("failed to mint token: %v", err)
		}
	}

	core := client.New(client.Config{
		ServerURL:     *server,
		Identity:      chat.User{ID: *user, Name: *name},
		Token:         credential,
		TypingTimeout: cfg.Client.TypingTimeout,
	})

	core.OnMessages(func(messages []chat.Message) {
		if len(messages) == 0 {
			fmt.Println("-- no messages yet --")
			return
		}
		last := messages[len(messages)-1]
		fmt.Printf("[%s] %s: %s (%d total)\n", last.ChatID, last.SenderID, last.Content, len(messages))
	})
	core.OnRemoteTyping(func(typing bool) {
		if typing {
			fmt.Println("-- remote is typing --")
		} else {
			fmt.Println("-- remote stopped typing --")
		}
	})
	core.OnNotifications(func(pending []chat.Message) {
		fmt.Printf("-- %d pending notification(s) --\n", len(pending))
	})

	ctx := context.Background()
	if err := core.Connect(ctx); err != nil {
		log.Fatalf("connect failed: %v", err)
	}
	defer core.Close()

	readyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := core.WaitReady(readyCtx); err != nil {
		log.Fatalf("channel never became ready: %v", err)
	}
	log.Printf("channel ready user=%s", *user)

	if *chatID != "" {
		if err := core.OpenChat(ctx, *chatID); err != nil {
			log.Fatalf("failed to open chat %s: %v", *chatID, err)
		}
	}

	printHelp()
	runInputLoop(ctx, core)
}

func printHelp() {
	fmt.Println("commands: /chats, /open <chatID>, /quit; anything else is sent as a message")
}

func runInputLoop(ctx context.Context, core *client.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case line == "/chats":
			chats, err := core.Chats(ctx)
			if err != nil {
				log.Printf("list chats failed: %v", err)
				continue
			}
			for _, c := range chats {
				fmt.Printf("%s  %s (group=%t, pending=%d)\n", c.ID, c.Name, c.IsGroup, core.Notify.Count(c.ID))
			}
		case strings.HasPrefix(line, "/open "):
			id := strings.TrimSpace(strings.TrimPrefix(line, "/open "))
			if err := core.OpenChat(ctx, id); err != nil {
				log.Printf("open chat failed: %v", err)
			}
		default:
			// Each character counts as a keystroke so the presence
			// machine sees a realistic burst before the send.
			for range line {
				core.Keystroke()
			}
			if _, err := core.Send(ctx, line); err != nil {
				log.Printf("send failed: %v", err)
			}
		}
	}
}
