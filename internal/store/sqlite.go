package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3" // SQLite driver
)

var (
	// ErrNotFound covers both "does not exist" and "belongs to someone
	// else"; the two must stay indistinguishable to callers.
	ErrNotFound = errors.New("not found")

	ErrEmailTaken = errors.New("email already registered")
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        api_key TEXT,
        profile TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS chats (
        id TEXT PRIMARY KEY,
        user_id INTEGER NOT NULL,
        title TEXT,
        messages TEXT,
        created_at DATETIME,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

func (s *SQLiteStore) CreateUser(email, passwordHash string) (*User, error) {
	res, err := s.db.Exec("INSERT INTO users (email, password_hash) VALUES (?, ?)", email, passwordHash)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetUserByID(id)
}

func (s *SQLiteStore) GetUserByEmail(email string) (*User, error) {
	return s.scanUser(s.db.QueryRow(
		"SELECT id, email, password_hash, api_key, profile, created_at FROM users WHERE email = ?", email))
}

func (s *SQLiteStore) GetUserByID(id int64) (*User, error) {
	return s.scanUser(s.db.QueryRow(
		"SELECT id, email, password_hash, api_key, profile, created_at FROM users WHERE id = ?", id))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	var apiKey, profileJSON sql.NullString
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &apiKey, &profileJSON, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if apiKey.Valid {
		user.APIKey = apiKey.String
	}
	if profileJSON.Valid && profileJSON.String != "" {
		var profile Profile
		if err := json.Unmarshal([]byte(profileJSON.String), &profile); err != nil {
			return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
		}
		user.Profile = &profile
	}
	return &user, nil
}

func (s *SQLiteStore) UpdateAPIKey(userID int64, apiKey string) error {
	res, err := s.db.Exec("UPDATE users SET api_key = ? WHERE id = ?", apiKey, userID)
	if err != nil {
		return fmt.Errorf("failed to update api key: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile replaces the stored profile blob wholesale.
func (s *SQLiteStore) UpdateProfile(userID int64, profile *Profile) error {
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	res, err := s.db.Exec("UPDATE users SET profile = ? WHERE id = ?", string(profileJSON), userID)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Chat methods

// UpsertChat saves a chat transcript under its id, overwriting any previous
// save. Chats are re-saved after every exchange, so this runs often.
func (s *SQLiteStore) UpsertChat(chatID string, userID int64, title string, messages []Message) error {
	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	stmt, err := s.db.Prepare("INSERT OR REPLACE INTO chats (id, user_id, title, messages, created_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare chat upsert: %w", err)
	}
	defer stmt.Close()

	if _, err = stmt.Exec(chatID, userID, title, string(messagesJSON), time.Now()); err != nil {
		return fmt.Errorf("failed to execute chat upsert: %w", err)
	}
	return nil
}

// GetChat fetches a chat by (id, owner). Ownership is part of the lookup key:
// a chat owned by another user is reported as ErrNotFound.
func (s *SQLiteStore) GetChat(chatID string, userID int64) (*Chat, error) {
	var chat Chat
	var title, messagesJSON sql.NullString
	err := s.db.QueryRow(
		"SELECT id, user_id, title, messages, created_at FROM chats WHERE id = ? AND user_id = ?",
		chatID, userID,
	).Scan(&chat.ID, &chat.UserID, &title, &messagesJSON, &chat.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	if title.Valid {
		chat.Title = title.String
	}
	if messagesJSON.Valid && messagesJSON.String != "" {
		if err := json.Unmarshal([]byte(messagesJSON.String), &chat.Messages); err != nil {
			return nil, fmt.Errorf("failed to unmarshal messages: %w", err)
		}
	}
	return &chat, nil
}

func (s *SQLiteStore) GetChatsByUserID(userID int64) ([]ChatSummary, error) {
	rows, err := s.db.Query(
		"SELECT id, title, created_at FROM chats WHERE user_id = ? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	var chats []ChatSummary
	for rows.Next() {
		var chat ChatSummary
		var title sql.NullString
		if err := rows.Scan(&chat.ID, &title, &chat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		if title.Valid {
			chat.Title = title.String
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}
