package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndFetchUser(t *testing.T) {
	s := newTestStore(t)

	created, err := s.CreateUser("a@example.com", "hash123")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if created.ID == 0 {
		t.Error("expected a non-zero user id")
	}

	byEmail, err := s.GetUserByEmail("a@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if byEmail.ID != created.ID {
		t.Errorf("lookup by email returned id %d, want %d", byEmail.ID, created.ID)
	}
	if byEmail.PasswordHash != "hash123" {
		t.Errorf("unexpected password hash %q", byEmail.PasswordHash)
	}
	if byEmail.APIKey != "" || byEmail.Profile != nil {
		t.Error("new user should have no api key or profile")
	}

	if _, err := s.GetUserByEmail("nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown email, got %v", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := newTestStore(t)

	first, err := s.CreateUser("a@example.com", "hash-one")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	_, err = s.CreateUser("a@example.com", "hash-two")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	// The first account is unchanged.
	unchanged, err := s.GetUserByID(first.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if unchanged.PasswordHash != "hash-one" {
		t.Error("duplicate signup must not alter the existing account")
	}
}

func TestUpdateAPIKey(t *testing.T) {
	s := newTestStore(t)
	user, _ := s.CreateUser("a@example.com", "hash")

	if err := s.UpdateAPIKey(user.ID, "sk-abc"); err != nil {
		t.Fatalf("UpdateAPIKey: %v", err)
	}
	got, _ := s.GetUserByID(user.ID)
	if got.APIKey != "sk-abc" {
		t.Errorf("api key not persisted, got %q", got.APIKey)
	}

	if err := s.UpdateAPIKey(9999, "sk-abc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	s := newTestStore(t)
	user, _ := s.CreateUser("a@example.com", "hash")

	profile := &Profile{
		Height:        "180cm",
		Weight:        "75kg",
		Age:           "30",
		Gender:        "male",
		Sex:           "male",
		Vitamins:      "D3, B12",
		Medications:   "none",
		Injuries:      "left knee, 2019",
		Abnormalities: "none",
		Goals:         "lose weight",
		Other:         "vegetarian",
		CreatedAt:     "2024-01-31T15:45:01Z",
	}
	if err := s.UpdateProfile(user.ID, profile); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	got, err := s.GetUserByID(user.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got.Profile == nil {
		t.Fatal("profile not persisted")
	}
	if *got.Profile != *profile {
		t.Errorf("profile did not round-trip: got %+v want %+v", *got.Profile, *profile)
	}

	// Wholesale replace: a save with fewer fields drops the rest.
	if err := s.UpdateProfile(user.ID, &Profile{Age: "31"}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	got, _ = s.GetUserByID(user.ID)
	if got.Profile.Age != "31" || got.Profile.Goals != "" {
		t.Errorf("profile replace was not wholesale: %+v", *got.Profile)
	}
}

func TestUpsertChatOverwrites(t *testing.T) {
	s := newTestStore(t)
	user, _ := s.CreateUser("a@example.com", "hash")

	msgs := []Message{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "hi there"},
	}
	if err := s.UpsertChat("20240101_090000", user.ID, "hello", msgs); err != nil {
		t.Fatalf("UpsertChat: %v", err)
	}

	msgs = append(msgs, Message{Role: RoleUser, Content: "more"})
	if err := s.UpsertChat("20240101_090000", user.ID, "hello", msgs); err != nil {
		t.Fatalf("UpsertChat (second): %v", err)
	}

	chats, err := s.GetChatsByUserID(user.ID)
	if err != nil {
		t.Fatalf("GetChatsByUserID: %v", err)
	}
	if len(chats) != 1 {
		t.Fatalf("upsert duplicated the chat: %d entries", len(chats))
	}

	chat, err := s.GetChat("20240101_090000", user.ID)
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}
	if len(chat.Messages) != 3 {
		t.Errorf("expected 3 messages after overwrite, got %d", len(chat.Messages))
	}
	if chat.Messages[0].Content != "hello" || chat.Messages[2].Content != "more" {
		t.Errorf("message order not preserved: %+v", chat.Messages)
	}
}

func TestGetChatCrossUserFailsClosed(t *testing.T) {
	s := newTestStore(t)
	owner, _ := s.CreateUser("owner@example.com", "hash")
	other, _ := s.CreateUser("other@example.com", "hash")

	if err := s.UpsertChat("20240101_090000", owner.ID, "private", []Message{{Role: RoleUser, Content: "secret"}}); err != nil {
		t.Fatalf("UpsertChat: %v", err)
	}

	if _, err := s.GetChat("20240101_090000", other.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-user fetch must report ErrNotFound, got %v", err)
	}
	if _, err := s.GetChat("no-such-chat", owner.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing chat must report ErrNotFound, got %v", err)
	}
}

func TestGetChatsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	user, _ := s.CreateUser("a@example.com", "hash")

	if err := s.UpsertChat("20240101_090000", user.ID, "older", []Message{{Role: RoleUser, Content: "x"}}); err != nil {
		t.Fatalf("UpsertChat: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := s.UpsertChat("20240101_100000", user.ID, "newer", []Message{{Role: RoleUser, Content: "y"}}); err != nil {
		t.Fatalf("UpsertChat: %v", err)
	}

	chats, err := s.GetChatsByUserID(user.ID)
	if err != nil {
		t.Fatalf("GetChatsByUserID: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(chats))
	}
	if chats[0].Title != "newer" || chats[1].Title != "older" {
		t.Errorf("chats not ordered by recency: %+v", chats)
	}
}
