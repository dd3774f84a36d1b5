package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/talkative/internal/auth"
	"github.com/zhouzirui/talkative/internal/config"
	"github.com/zhouzirui/talkative/internal/handler"
	chatservice "github.com/zhouzirui/talkative/internal/service/chat"
	"github.com/zhouzirui/talkative/internal/service/hub"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	chatSvc := chatservice.NewService()
	signer := auth.NewSigner(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
	eventHub := hub.New()
	defer eventHub.CloseAll()

	seedDemoData(ctx, chatSvc, signer)

	router := handler.NewRouter(chatSvc, eventHub, signer)

	startServer(ctx, cfg.Server, router)
}

// seedDemoData loads the demo conversations and prints a dev token per
// seeded user so a terminal client can connect immediately.
func seedDemoData(ctx context.Context, chatSvc *chatservice.Service, signer *auth.Signer) {
	for _, c := range chatservice.Seed(ctx, chatSvc) {
		log.Printf("seeded chat %q id=%s", c.Name, c.ID)
	}
	for _, userID := range chatservice.SeedUsers {
		token, err := signer.Sign(userID)
		if err != nil {
			log.Printf("warning: failed to mint dev token for %s: %v", userID, err)
			continue
		}
		log.Printf("dev token user=%s token=%s", userID, token)
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("talkative relay listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
