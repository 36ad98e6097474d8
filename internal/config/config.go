// Package config holds the CLI configuration types.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Role represents which side of the call this client plays.
type Role string

const (
	RoleCaller Role = "caller"
	RoleCallee Role = "callee"
)

// Config stores all parameters gathered from flags, the environment, and
// the interactive CLI prompts.
type Config struct {
	Role           Role
	RelayURL       string // base WebSocket URL of the chat relay, e.g. wss://api.example.com/ws
	Token          string // bearer token, passed to the relay as a query parameter
	ConversationID string
	PartnerID      string // caller only: who to ring
	PartnerName    string
	Video          bool
}

// FromEnv loads a .env file if present and returns a Config pre-filled from
// the environment. Flags override these values.
func FromEnv() Config {
	_ = godotenv.Load()
	return Config{
		RelayURL:       os.Getenv("BUILDUP_RELAY_URL"),
		Token:          os.Getenv("BUILDUP_TOKEN"),
		ConversationID: os.Getenv("BUILDUP_CONVERSATION_ID"),
	}
}

// ChatURL builds the full relay endpoint for this conversation:
// {base}/chat?conversation_id=...&token=...
func (c Config) ChatURL() (string, error) {
	base, err := NormalizeWSURL(c.RelayURL)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("conversation_id", c.ConversationID)
	q.Set("token", c.Token)
	return base + "/chat?" + q.Encode(), nil
}

// NormalizeWSURL validates and normalizes a raw WebSocket base URL string.
// Bare hosts are accepted; the scheme defaults to wss and the path to /ws.
func NormalizeWSURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "wss://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid WebSocket URL: %s", raw)
	}
	scheme := "wss"
	if u.Scheme == "ws" || u.Scheme == "wss" {
		scheme = u.Scheme
	}
	path := strings.TrimSuffix(u.Path, "/")
	if path == "" {
		path = "/ws"
	}
	return fmt.Sprintf("%s://%s%s", scheme, u.Host, path), nil
}
