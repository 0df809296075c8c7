package repository

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// DeviceToken is a push target registered by the mobile or web client.
type DeviceToken struct {
	Token        string    `json:"token"`
	Platform     string    `json:"platform"` // android, ios or web
	RegisteredAt time.Time `json:"registeredAt"`
}

// TokenRepository keeps device tokens in memory.
type TokenRepository struct {
	tokens map[string]DeviceToken
	mu     sync.RWMutex
}

func NewTokenRepository() *TokenRepository {
	return &TokenRepository{
		tokens: make(map[string]DeviceToken),
	}
}

// RegisterToken adds or refreshes a token. It reports whether the token is new.
func (r *TokenRepository) RegisterToken(token, platform string, at time.Time) bool {
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		platform = "android"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.tokens[token]
	r.tokens[token] = DeviceToken{Token: token, Platform: platform, RegisteredAt: at}
	return !exists
}

func (r *TokenRepository) UnregisterToken(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens, token)
}

// GetAllTokens returns the tokens sorted for stable multicast batches.
func (r *TokenRepository) GetAllTokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tokens := make([]string, 0, len(r.tokens))
	for token := range r.tokens {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

func (r *TokenRepository) GetTokenCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tokens)
}
