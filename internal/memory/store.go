package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/fundora/internal/persona"
	"github.com/ent0n29/fundora/internal/policy"
)

var ErrEmptyProfileKey = errors.New("profile key must not be empty")

// Store keeps the conversation log, user profile and selected persona of each
// user as three independent records on a Substrate:
//
//	{prefix}:{user}:conversations  JSON array, newest last, at most 50 entries
//	{prefix}:{user}:profile        JSON object
//	{prefix}:{user}:persona        plain archetype identifier
//
// Missing or empty records read as the initial state.
type Store struct {
	sub    Substrate
	prefix string
	redact bool
	now    func() time.Time
	log    zerolog.Logger

	// serialises read-modify-write cycles within this process
	mu sync.Mutex
}

type StoreOption func(*Store)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *Store) {
		if p := strings.TrimSpace(prefix); p != "" {
			s.prefix = p
		}
	}
}

// WithRedaction masks PII in user input before it is persisted.
func WithRedaction(enabled bool) StoreOption {
	return func(s *Store) { s.redact = enabled }
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l zerolog.Logger) StoreOption {
	return func(s *Store) { s.log = l.With().Str("component", "store").Logger() }
}

func NewStore(sub Substrate, opts ...StoreOption) *Store {
	s := &Store{
		sub:    sub,
		prefix: "fundora",
		now:    func() time.Time { return time.Now().UTC() },
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(userID, record string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = "anonymous"
	}
	return s.prefix + ":" + userID + ":" + record
}

func (s *Store) conversationsKey(userID string) string { return s.key(userID, "conversations") }
func (s *Store) profileKey(userID string) string       { return s.key(userID, "profile") }
func (s *Store) personaKey(userID string) string       { return s.key(userID, "persona") }

// RecordTurn appends an entry stamped with the current time and persona, trims
// the log to the newest MaxConversationEntries and persists it.
func (s *Store) RecordTurn(ctx context.Context, userID, userInput, botResponse string) (ConversationEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadHistory(ctx, userID)
	if err != nil {
		return ConversationEntry{}, err
	}
	p, err := s.loadPersona(ctx, userID)
	if err != nil {
		return ConversationEntry{}, err
	}

	if s.redact {
		userInput, _ = policy.RedactPII(userInput)
	}
	entry := ConversationEntry{
		Timestamp:   s.now(),
		UserInput:   userInput,
		BotResponse: botResponse,
		Persona:     p,
	}
	entries = append(entries, entry)
	if len(entries) > MaxConversationEntries {
		entries = entries[len(entries)-MaxConversationEntries:]
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return ConversationEntry{}, fmt.Errorf("encode conversations: %w", err)
	}
	if err := s.sub.Set(ctx, s.conversationsKey(userID), string(raw)); err != nil {
		return ConversationEntry{}, err
	}
	return entry, nil
}

// History returns the persisted log, oldest first.
func (s *Store) History(ctx context.Context, userID string) ([]ConversationEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadHistory(ctx, userID)
}

// ClearHistory removes the conversation record. Profile and persona are kept.
func (s *Store) ClearHistory(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub.Delete(ctx, s.conversationsKey(userID))
}

// UpdateProfile merges one key into the profile; the last write wins.
func (s *Store) UpdateProfile(ctx context.Context, userID, key string, value any) (UserProfile, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrEmptyProfileKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile[key] = value

	raw, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	if err := s.sub.Set(ctx, s.profileKey(userID), string(raw)); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *Store) Profile(ctx context.Context, userID string) (UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadProfile(ctx, userID)
}

// Persona returns the committed archetype, or "" when none is stored.
func (s *Store) Persona(ctx context.Context, userID string) (persona.Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadPersona(ctx, userID)
}

func (s *Store) SetPersona(ctx context.Context, userID string, p persona.Persona) error {
	if !p.Valid() {
		return fmt.Errorf("unknown persona %q", p)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub.Set(ctx, s.personaKey(userID), string(p))
}

// Forget removes every record held for userID.
func (s *Store) Forget(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range []string{s.conversationsKey(userID), s.profileKey(userID), s.personaKey(userID)} {
		if err := s.sub.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.sub.Ping(ctx) }

func (s *Store) Close() error { return s.sub.Close() }

func (s *Store) loadHistory(ctx context.Context, userID string) ([]ConversationEntry, error) {
	raw, err := s.sub.Get(ctx, s.conversationsKey(userID))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var entries []ConversationEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("discarding unreadable conversation log")
		return nil, nil
	}
	return entries, nil
}

func (s *Store) loadProfile(ctx context.Context, userID string) (UserProfile, error) {
	raw, err := s.sub.Get(ctx, s.profileKey(userID))
	if err != nil {
		return nil, err
	}
	profile := UserProfile{}
	if strings.TrimSpace(raw) == "" {
		return profile, nil
	}
	if err := json.Unmarshal([]byte(raw), &profile); err != nil || profile == nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("discarding unreadable profile")
		return UserProfile{}, nil
	}
	return profile, nil
}

func (s *Store) loadPersona(ctx context.Context, userID string) (persona.Persona, error) {
	raw, err := s.sub.Get(ctx, s.personaKey(userID))
	if err != nil {
		return "", err
	}
	p, ok := persona.Parse(raw)
	if !ok {
		return "", nil
	}
	return p, nil
}
