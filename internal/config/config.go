package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates settings for the relay server and client tooling.
type Config struct {
	Server ServerConfig
	Auth   AuthConfig
	Client ClientConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	auth, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	client, err := loadClientConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Auth: auth, Client: client}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "5000"
	}

	if strings.Contains(port, ":") {
		// Accept ":5000" or "127.0.0.1:5000" as-is.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AuthConfig describes the bearer-credential signing setup.
type AuthConfig struct {
	TokenSecret string
	TokenTTL    time.Duration
}

func loadAuthConfig() (AuthConfig, error) {
	ttlHours := 24
	if override, err := parseOptionalIntEnv("TOKEN_TTL_HOURS"); err != nil {
		return AuthConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return AuthConfig{}, fmt.Errorf("TOKEN_TTL_HOURS must be positive, got %d", *override)
		}
		ttlHours = *override
	}

	return AuthConfig{
		TokenSecret: getEnvOrDefault("TOKEN_SECRET", "talkative-dev-secret"),
		TokenTTL:    time.Duration(ttlHours) * time.Hour,
	}, nil
}

// ClientConfig describes what the sync core and the terminal client
// need to reach a server.
type ClientConfig struct {
	ServerURL     string
	TypingTimeout time.Duration
}

func loadClientConfig() (ClientConfig, error) {
	timeoutMS := 2000
	if override, err := parseOptionalIntEnv("TYPING_TIMEOUT_MS"); err != nil {
		return ClientConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return ClientConfig{}, fmt.Errorf("TYPING_TIMEOUT_MS must be positive, got %d", *override)
		}
		timeoutMS = *override
	}

	return ClientConfig{
		ServerURL:     getEnvOrDefault("SERVER_URL", "http://localhost:5000"),
		TypingTimeout: time.Duration(timeoutMS) * time.Millisecond,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
