package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"healthmate.app/health-assistant/internal/store"
)

var (
	ErrNoSession = errors.New("session not found")
	ErrNoAPIKey  = errors.New("no gateway credential saved")
)

const defaultChatTitle = "New Chat"

// titleLimit caps how much of the first user message becomes the chat title.
const titleLimit = 50

// Store is the slice of the persistent store the chat service needs.
type Store interface {
	GetUserByID(id int64) (*store.User, error)
	UpdateAPIKey(userID int64, apiKey string) error
	UpdateProfile(userID int64, profile *store.Profile) error
	UpsertChat(chatID string, userID int64, title string, messages []store.Message) error
	GetChat(chatID string, userID int64) (*store.Chat, error)
	GetChatsByUserID(userID int64) ([]store.ChatSummary, error)
}

// ModelGateway is the external model service boundary.
type ModelGateway interface {
	ValidateKey(ctx context.Context, apiKey string) error
	Respond(ctx context.Context, apiKey, prompt string) (string, error)
}

// DocumentSource supplies uploaded-document excerpts for context assembly.
type DocumentSource interface {
	Excerpts(userID int64) []DocumentExcerpt
}

type ChatService struct {
	store         Store
	gateway       ModelGateway
	docs          DocumentSource
	sessions      *SessionStore
	historyWindow int
	excerptBudget int
}

func NewChatService(st Store, gateway ModelGateway, docs DocumentSource, sessions *SessionStore, historyWindow, excerptBudget int) *ChatService {
	return &ChatService{
		store:         st,
		gateway:       gateway,
		docs:          docs,
		sessions:      sessions,
		historyWindow: historyWindow,
		excerptBudget: excerptBudget,
	}
}

// SendMessage runs one exchange: assemble context, call the gateway, append
// both turns to the working copy and flush it to the chat store. On gateway
// failure the transcript is left untouched and the error is returned.
func (s *ChatService) SendMessage(ctx context.Context, userID int64, sessionID, text string) (string, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return "", ErrNoSession
	}

	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}
	if user.APIKey == "" {
		return "", ErrNoAPIKey
	}

	_, history := sess.Snapshot()
	excerpts := s.docs.Excerpts(userID)
	prompt := AssemblePrompt(user.Profile, excerpts, history, text, s.historyWindow, s.excerptBudget)

	answer, err := s.gateway.Respond(ctx, user.APIKey, prompt)
	if err != nil {
		return "", err
	}

	sess.Append(
		store.Message{Role: store.RoleUser, Content: text},
		store.Message{Role: store.RoleAssistant, Content: answer},
	)

	if err := s.flush(userID, sess); err != nil {
		return "", fmt.Errorf("failed to persist chat: %w", err)
	}
	return answer, nil
}

// NewChat persists the current working copy if non-empty, then resets it
// under a fresh chat id.
func (s *ChatService) NewChat(userID int64, sessionID string) error {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return ErrNoSession
	}
	if err := s.flush(userID, sess); err != nil {
		return fmt.Errorf("failed to persist chat: %w", err)
	}
	sess.Reset(NewChatID())
	return nil
}

func (s *ChatService) ListChats(userID int64) ([]store.ChatSummary, error) {
	return s.store.GetChatsByUserID(userID)
}

// LoadChat pulls a committed transcript into the working copy. Ownership is
// enforced by the store lookup.
func (s *ChatService) LoadChat(userID int64, sessionID, chatID string) (*store.Chat, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, ErrNoSession
	}
	chat, err := s.store.GetChat(chatID, userID)
	if err != nil {
		return nil, err
	}
	sess.Load(chat.ID, chat.Messages)
	return chat, nil
}

// Messages returns the current working transcript.
func (s *ChatService) Messages(sessionID string) ([]store.Message, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, ErrNoSession
	}
	_, msgs := sess.Snapshot()
	return msgs, nil
}

// SaveAPIKey accepts a credential only after a live probe against the
// gateway succeeds.
func (s *ChatService) SaveAPIKey(ctx context.Context, userID int64, apiKey string) error {
	if err := s.gateway.ValidateKey(ctx, apiKey); err != nil {
		return err
	}
	return s.store.UpdateAPIKey(userID, apiKey)
}

// SaveProfile replaces the user's profile wholesale. Requires a saved
// credential, matching the setup flow's ordering.
func (s *ChatService) SaveProfile(userID int64, profile *store.Profile) error {
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user.APIKey == "" {
		return ErrNoAPIKey
	}
	profile.CreatedAt = time.Now().Format(time.RFC3339)
	return s.store.UpdateProfile(userID, profile)
}

func (s *ChatService) GetProfile(userID int64) (*store.Profile, error) {
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user.Profile, nil
}

// flush writes the working copy through to the chat store. An empty
// transcript is not worth a row.
func (s *ChatService) flush(userID int64, sess *Session) error {
	chatID, msgs := sess.Snapshot()
	if len(msgs) == 0 {
		return nil
	}
	return s.store.UpsertChat(chatID, userID, deriveTitle(msgs), msgs)
}

// deriveTitle takes the first user message, capped at titleLimit runes.
func deriveTitle(msgs []store.Message) string {
	for _, msg := range msgs {
		if msg.Role != store.RoleUser {
			continue
		}
		runes := []rune(msg.Content)
		if len(runes) > titleLimit {
			return string(runes[:titleLimit]) + "..."
		}
		return msg.Content
	}
	return defaultChatTitle
}
