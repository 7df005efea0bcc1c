package store

import "time"

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Do not expose this in JSON responses
	APIKey       string    `json:"-"` // Gateway credential, never sent to clients
	Profile      *Profile  `json:"profile,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile holds the health questionnaire answers. Saved as one JSON blob on
// the user row and replaced wholesale on every save.
type Profile struct {
	Height        string `json:"height,omitempty"`
	Weight        string `json:"weight,omitempty"`
	Age           string `json:"age,omitempty"`
	Gender        string `json:"gender,omitempty"`
	Sex           string `json:"sex,omitempty"`
	Vitamins      string `json:"vitamins,omitempty"`
	Medications   string `json:"medications,omitempty"`
	Injuries      string `json:"injuries,omitempty"`
	Abnormalities string `json:"abnormalities,omitempty"`
	Goals         string `json:"goals,omitempty"`
	Other         string `json:"other,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// ProfileField is one questionnaire answer in declaration order.
type ProfileField struct {
	Key   string
	Value string
}

// Fields returns the questionnaire answers in a stable order, excluding the
// creation timestamp. Empty values are included; callers decide whether to
// skip them.
func (p *Profile) Fields() []ProfileField {
	if p == nil {
		return nil
	}
	return []ProfileField{
		{"height", p.Height},
		{"weight", p.Weight},
		{"age", p.Age},
		{"gender", p.Gender},
		{"sex", p.Sex},
		{"vitamins", p.Vitamins},
		{"medications", p.Medications},
		{"injuries", p.Injuries},
		{"abnormalities", p.Abnormalities},
		{"goals", p.Goals},
		{"other", p.Other},
	}
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Chat struct {
	ID        string    `json:"id"` // Timestamp-derived, e.g. 20240131_154501
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatSummary is the listing view of a chat, without its transcript.
type ChatSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}
