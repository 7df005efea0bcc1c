package testutil

import (
	"context"
	"errors"

	"healthmate.app/health-assistant/internal/core"
	"healthmate.app/health-assistant/internal/store"
)

// MockStore is a mock implementation of core.Store for testing
type MockStore struct {
	GetUserByIDFunc      func(id int64) (*store.User, error)
	UpdateAPIKeyFunc     func(userID int64, apiKey string) error
	UpdateProfileFunc    func(userID int64, profile *store.Profile) error
	UpsertChatFunc       func(chatID string, userID int64, title string, messages []store.Message) error
	GetChatFunc          func(chatID string, userID int64) (*store.Chat, error)
	GetChatsByUserIDFunc func(userID int64) ([]store.ChatSummary, error)
}

func (m *MockStore) GetUserByID(id int64) (*store.User, error) {
	if m.GetUserByIDFunc != nil {
		return m.GetUserByIDFunc(id)
	}
	return nil, errors.New("not implemented")
}

func (m *MockStore) UpdateAPIKey(userID int64, apiKey string) error {
	if m.UpdateAPIKeyFunc != nil {
		return m.UpdateAPIKeyFunc(userID, apiKey)
	}
	return errors.New("not implemented")
}

func (m *MockStore) UpdateProfile(userID int64, profile *store.Profile) error {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(userID, profile)
	}
	return errors.New("not implemented")
}

func (m *MockStore) UpsertChat(chatID string, userID int64, title string, messages []store.Message) error {
	if m.UpsertChatFunc != nil {
		return m.UpsertChatFunc(chatID, userID, title, messages)
	}
	return errors.New("not implemented")
}

func (m *MockStore) GetChat(chatID string, userID int64) (*store.Chat, error) {
	if m.GetChatFunc != nil {
		return m.GetChatFunc(chatID, userID)
	}
	return nil, errors.New("not implemented")
}

func (m *MockStore) GetChatsByUserID(userID int64) ([]store.ChatSummary, error) {
	if m.GetChatsByUserIDFunc != nil {
		return m.GetChatsByUserIDFunc(userID)
	}
	return nil, errors.New("not implemented")
}

// MockGateway is a mock implementation of core.ModelGateway for testing
type MockGateway struct {
	ValidateKeyFunc func(ctx context.Context, apiKey string) error
	RespondFunc     func(ctx context.Context, apiKey, prompt string) (string, error)
}

func (m *MockGateway) ValidateKey(ctx context.Context, apiKey string) error {
	if m.ValidateKeyFunc != nil {
		return m.ValidateKeyFunc(ctx, apiKey)
	}
	return nil
}

func (m *MockGateway) Respond(ctx context.Context, apiKey, prompt string) (string, error) {
	if m.RespondFunc != nil {
		return m.RespondFunc(ctx, apiKey, prompt)
	}
	return "", errors.New("not implemented")
}

// MockDocumentSource is a mock implementation of core.DocumentSource
type MockDocumentSource struct {
	ExcerptsFunc func(userID int64) []core.DocumentExcerpt
}

func (m *MockDocumentSource) Excerpts(userID int64) []core.DocumentExcerpt {
	if m.ExcerptsFunc != nil {
		return m.ExcerptsFunc(userID)
	}
	return nil
}
