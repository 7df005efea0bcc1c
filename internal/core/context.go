package core

import (
	"strings"

	"healthmate.app/health-assistant/internal/store"
)

// referenceMaterials is the fixed catalogue of health books the stored
// system prompt knows how to cite.
var referenceMaterials = []string{
	"How Not to Die (Michael Greger)",
	"Lifespan: Why We Age and Why We Don't Have To",
	"Outlive: The Science and Art of Longevity",
	"The China Study",
	"The Longevity Paradox",
	"The Circadian Diabetes Code",
	"Blue Zones Study Guide",
	"Ageless: The New Science of Getting Older Without Getting Old",
}

// DocumentExcerpt is one uploaded document as seen by the assembler: its
// filename and whatever text extraction produced (possibly empty).
type DocumentExcerpt struct {
	Name string
	Text string
}

// AssemblePrompt merges the user's profile, uploaded-document excerpts and a
// trailing window of the conversation into the single prompt string sent to
// the model gateway. Pure formatting; the caps bound prompt size and are
// policy, not correctness.
//
// Section order: profile, reference catalogue, document excerpts, recent
// conversation, then the new question last. Empty sections are omitted
// entirely so an empty profile never produces bare "Label:" lines.
func AssemblePrompt(profile *store.Profile, docs []DocumentExcerpt, history []store.Message, question string, historyWindow, excerptBudget int) string {
	var b strings.Builder

	var profileLines []string
	for _, f := range profile.Fields() {
		if f.Value == "" {
			continue
		}
		profileLines = append(profileLines, fieldLabel(f.Key)+": "+f.Value)
	}
	if len(profileLines) > 0 {
		b.WriteString("USER HEALTH INFORMATION:\n\n")
		for _, line := range profileLines {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("AVAILABLE HEALTH REFERENCE MATERIALS:\n")
	for _, title := range referenceMaterials {
		b.WriteString("- ")
		b.WriteString(title)
		b.WriteString("\n")
	}

	if len(docs) > 0 {
		b.WriteString("\nUPLOADED MEDICAL DOCUMENTS:\n")
		for _, doc := range docs {
			b.WriteString("\n- ")
			b.WriteString(doc.Name)
			b.WriteString("\n")
			if doc.Text != "" {
				b.WriteString("Content preview: ")
				b.WriteString(Truncate(doc.Text, excerptBudget))
				b.WriteString("\n")
			}
		}
	}

	if len(history) > 0 {
		window := history
		if historyWindow > 0 && len(window) > historyWindow {
			window = window[len(window)-historyWindow:]
		}
		b.WriteString("\nRecent Conversation:\n")
		for _, msg := range window {
			if msg.Role == store.RoleUser {
				b.WriteString("User: ")
			} else {
				b.WriteString("Assistant: ")
			}
			b.WriteString(msg.Content)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nUser Question: ")
	b.WriteString(question)

	return b.String()
}

// Truncate caps s at limit runes, appending a continuation marker when text
// was dropped.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// fieldLabel turns a profile field key into a display label: underscores
// become spaces, each word is capitalized.
func fieldLabel(key string) string {
	words := strings.Split(strings.ReplaceAll(key, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
