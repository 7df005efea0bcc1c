package core

import (
	"fmt"
	"testing"
	"time"

	"healthmate.app/health-assistant/internal/store"
)

func TestSessionAppendCap(t *testing.T) {
	st := NewSessionStore(50)
	_, sess := st.Create()

	for i := 0; i < 30; i++ {
		sess.Append(
			store.Message{Role: store.RoleUser, Content: fmt.Sprintf("q-%d", i)},
			store.Message{Role: store.RoleAssistant, Content: fmt.Sprintf("a-%d", i)},
		)
	}

	_, msgs := sess.Snapshot()
	if len(msgs) != 50 {
		t.Fatalf("expected 50 messages after cap, got %d", len(msgs))
	}
	// 60 appended, oldest 10 dropped: the window starts at q-5.
	if msgs[0].Content != "q-5" {
		t.Errorf("expected oldest retained message q-5, got %s", msgs[0].Content)
	}
	if msgs[49].Content != "a-29" {
		t.Errorf("expected newest message a-29, got %s", msgs[49].Content)
	}
	for i := 1; i < len(msgs); i += 2 {
		if msgs[i].Role != store.RoleAssistant {
			t.Fatalf("message order disturbed at index %d", i)
		}
	}
}

func TestSessionSnapshotIsCopy(t *testing.T) {
	st := NewSessionStore(50)
	_, sess := st.Create()
	sess.Append(store.Message{Role: store.RoleUser, Content: "original"})

	_, msgs := sess.Snapshot()
	msgs[0].Content = "mutated"

	_, again := sess.Snapshot()
	if again[0].Content != "original" {
		t.Error("snapshot should not share backing storage with the session")
	}
}

func TestSessionResetAndLoad(t *testing.T) {
	st := NewSessionStore(50)
	_, sess := st.Create()
	firstID := sess.ChatID()
	sess.Append(store.Message{Role: store.RoleUser, Content: "hi"})

	sess.Reset("20240201_101500")
	if sess.ChatID() == firstID && firstID != "20240201_101500" {
		t.Error("reset should change the chat id")
	}
	if _, msgs := sess.Snapshot(); len(msgs) != 0 {
		t.Error("reset should clear the transcript")
	}

	committed := []store.Message{
		{Role: store.RoleUser, Content: "old question"},
		{Role: store.RoleAssistant, Content: "old answer"},
	}
	sess.Load("20240101_090000", committed)
	chatID, msgs := sess.Snapshot()
	if chatID != "20240101_090000" {
		t.Errorf("expected loaded chat id, got %s", chatID)
	}
	if len(msgs) != 2 || msgs[0].Content != "old question" {
		t.Errorf("unexpected loaded transcript: %+v", msgs)
	}
}

func TestSessionStoreExpiry(t *testing.T) {
	st := NewSessionStore(50)

	stale, _ := st.Create()
	st.mu.Lock()
	st.sessions[stale].expiresAt = time.Now().Add(-time.Minute)
	st.mu.Unlock()

	// An expired entry is unreachable and removed on lookup.
	if _, ok := st.Get(stale); ok {
		t.Fatal("expired session should not resolve")
	}
	st.mu.Lock()
	_, present := st.sessions[stale]
	st.mu.Unlock()
	if present {
		t.Error("expired entry should be removed on lookup")
	}

	// Creating a session sweeps any other expired entries.
	leftover, _ := st.Create()
	st.mu.Lock()
	st.sessions[leftover].expiresAt = time.Now().Add(-time.Minute)
	st.mu.Unlock()

	fresh, _ := st.Create()
	st.mu.Lock()
	_, present = st.sessions[leftover]
	st.mu.Unlock()
	if present {
		t.Error("create should sweep expired entries")
	}
	if _, ok := st.Get(fresh); !ok {
		t.Error("fresh session should survive the sweep")
	}
}

func TestSessionStoreLifecycle(t *testing.T) {
	st := NewSessionStore(50)

	id, sess := st.Create()
	if sess.ChatID() == "" {
		t.Error("new session should start with a chat id")
	}

	got, ok := st.Get(id)
	if !ok || got != sess {
		t.Fatal("expected to get back the created session")
	}

	st.Delete(id)
	if _, ok := st.Get(id); ok {
		t.Error("deleted session should be gone")
	}

	if _, ok := st.Get("no-such-session"); ok {
		t.Error("unknown id should not resolve")
	}
}
