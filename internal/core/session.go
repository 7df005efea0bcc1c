package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"healthmate.app/health-assistant/internal/store"
)

// NewChatID derives a chat id from the current time. Matches the id format
// used for the durable chats table.
func NewChatID() string {
	return time.Now().Format("20060102_150405")
}

// Session is the working copy of the active conversation: the transcript
// lives here between requests and is only flushed to the chat store after
// each completed exchange. One session per login.
type Session struct {
	mu       sync.Mutex
	chatID   string
	messages []store.Message
	cap      int
}

func (s *Session) ChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatID
}

// Snapshot returns the current chat id and a copy of the transcript.
func (s *Session) Snapshot() (string, []store.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]store.Message, len(s.messages))
	copy(msgs, s.messages)
	return s.chatID, msgs
}

// Append adds messages to the transcript, then discards the oldest entries
// beyond the cap (FIFO).
func (s *Session) Append(msgs ...store.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msgs...)
	if s.cap > 0 && len(s.messages) > s.cap {
		s.messages = s.messages[len(s.messages)-s.cap:]
	}
}

// Reset starts a fresh transcript under a new chat id.
func (s *Session) Reset(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatID = chatID
	s.messages = nil
}

// Load replaces the working copy with a committed transcript.
func (s *Session) Load(chatID string, msgs []store.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatID = chatID
	s.messages = make([]store.Message, len(msgs))
	copy(s.messages, msgs)
	if s.cap > 0 && len(s.messages) > s.cap {
		s.messages = s.messages[len(s.messages)-s.cap:]
	}
}

// sessionTTL matches the token lifetime; a session entry past it can never
// be reached by a valid token again.
const sessionTTL = 24 * time.Hour

type sessionEntry struct {
	sess      *Session
	expiresAt time.Time
}

// SessionStore keeps the working sessions, keyed by the opaque session id
// carried in the JWT. Entries expire with their tokens so abandoned logins
// do not accumulate.
type SessionStore struct {
	mu            sync.Mutex
	sessions      map[string]*sessionEntry
	transcriptCap int
}

func NewSessionStore(transcriptCap int) *SessionStore {
	return &SessionStore{
		sessions:      make(map[string]*sessionEntry),
		transcriptCap: transcriptCap,
	}
}

// Create makes a new session with an empty transcript and returns its id.
// Expired entries are swept here; logins are rare enough that a linear pass
// costs nothing.
func (st *SessionStore) Create() (string, *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := time.Now()
	for id, entry := range st.sessions {
		if now.After(entry.expiresAt) {
			delete(st.sessions, id)
		}
	}

	id := uuid.NewString()
	sess := &Session{
		chatID: NewChatID(),
		cap:    st.transcriptCap,
	}
	st.sessions[id] = &sessionEntry{sess: sess, expiresAt: now.Add(sessionTTL)}
	return id, sess
}

func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	entry, ok := st.sessions[id]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(st.sessions, id)
		return nil, false
	}
	return entry.sess, true
}

func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}
