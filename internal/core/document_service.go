package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"healthmate.app/health-assistant/internal/logger"
)

var (
	ErrExtensionNotAllowed = errors.New("file type not allowed")
	ErrFileTooLarge        = errors.New("file exceeds size limit")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrBadFilename         = errors.New("invalid filename")
)

// DocumentInfo describes one uploaded file; the filesystem is the only
// record of it.
type DocumentInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"uploaded_at"`
}

// DocumentService manages the per-user upload area under
// <baseDir>/<userID>/. No database rows: directory containment is the
// ownership relation.
type DocumentService struct {
	baseDir       string
	maxBytes      int64
	excerptBudget int
	allowedExts   map[string]bool
}

func NewDocumentService(baseDir string, maxBytes int64, excerptBudget int) *DocumentService {
	return &DocumentService{
		baseDir:       baseDir,
		maxBytes:      maxBytes,
		excerptBudget: excerptBudget,
		allowedExts:   map[string]bool{".pdf": true, ".txt": true},
	}
}

func (s *DocumentService) userDir(userID int64) string {
	return filepath.Join(s.baseDir, strconv.FormatInt(userID, 10))
}

// Store validates and writes an upload under the user's directory. The
// stored name gets a timestamp suffix so re-uploading the same file never
// clobbers an earlier copy. Returns the stored info plus a text preview.
func (s *DocumentService) Store(userID int64, filename string, size int64, r io.Reader) (*DocumentInfo, string, error) {
	base := filepath.Base(filename)
	if base == "" || base == "." || base == ".." {
		return nil, "", ErrBadFilename
	}

	ext := strings.ToLower(filepath.Ext(base))
	if !s.allowedExts[ext] {
		return nil, "", ErrExtensionNotAllowed
	}
	if size > s.maxBytes {
		return nil, "", ErrFileTooLarge
	}

	dir := s.userDir(userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	// The timestamp suffix keeps re-uploads apart; within the same second
	// O_EXCL catches the collision and a counter disambiguates.
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stamp := time.Now().Format("20060102_150405")
	stored := fmt.Sprintf("%s_%s%s", stem, stamp, ext)
	path := filepath.Join(dir, stored)

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	for n := 2; os.IsExist(err); n++ {
		stored = fmt.Sprintf("%s_%s_%d%s", stem, stamp, n, ext)
		path = filepath.Join(dir, stored)
		dst, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	// The declared size is checked above; the limit here guards against a
	// body longer than declared.
	written, err := io.Copy(dst, io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		os.Remove(path)
		return nil, "", fmt.Errorf("failed to save file: %w", err)
	}
	if written > s.maxBytes {
		os.Remove(path)
		return nil, "", ErrFileTooLarge
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to stat stored file: %w", err)
	}

	preview := ""
	if text, err := s.ExtractText(path); err == nil {
		preview = Truncate(text, s.excerptBudget)
	} else {
		logger.Log.WithField("file", stored).WithError(err).Warn("Could not extract text from upload")
	}

	return &DocumentInfo{Name: stored, Size: info.Size(), ModTime: info.ModTime()}, preview, nil
}

// List enumerates the user's documents, newest first.
func (s *DocumentService) List(userID int64) ([]DocumentInfo, error) {
	entries, err := os.ReadDir(s.userDir(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read upload directory: %w", err)
	}

	var docs []DocumentInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		docs = append(docs, DocumentInfo{Name: entry.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].ModTime.After(docs[j].ModTime)
	})
	return docs, nil
}

// Delete removes a document from the user's own area. The name is sanitized
// before any path join so it cannot reach outside the user directory.
func (s *DocumentService) Delete(userID int64, filename string) error {
	name, err := sanitizeName(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.userDir(userID), name)); err != nil {
		if os.IsNotExist(err) {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// ExtractText pulls plain text from a stored document. Extraction quality is
// whatever the parser gives; no structuring is applied.
func (s *DocumentService) ExtractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		f, reader, err := pdf.Open(path)
		if err != nil {
			return "", fmt.Errorf("failed to open pdf: %w", err)
		}
		defer f.Close()
		plain, err := reader.GetPlainText()
		if err != nil {
			return "", fmt.Errorf("failed to extract pdf text: %w", err)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(plain); err != nil {
			return "", fmt.Errorf("failed to read pdf text: %w", err)
		}
		return buf.String(), nil
	case ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read text file: %w", err)
		}
		return string(data), nil
	default:
		return "", ErrExtensionNotAllowed
	}
}

// Excerpts gathers every document of the user with its extracted text for
// context assembly. A document that fails extraction still contributes its
// name; one corrupt file never aborts the whole chat.
func (s *DocumentService) Excerpts(userID int64) []DocumentExcerpt {
	docs, err := s.List(userID)
	if err != nil {
		logger.Log.WithError(err).Warn("Could not list documents for context assembly")
		return nil
	}

	var excerpts []DocumentExcerpt
	for _, doc := range docs {
		text, err := s.ExtractText(filepath.Join(s.userDir(userID), doc.Name))
		if err != nil {
			logger.Log.WithField("file", doc.Name).WithError(err).Warn("Skipping unreadable document text")
			text = ""
		}
		excerpts = append(excerpts, DocumentExcerpt{Name: doc.Name, Text: text})
	}
	return excerpts
}

func sanitizeName(filename string) (string, error) {
	if filename == "" || strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		return "", ErrBadFilename
	}
	base := filepath.Base(filename)
	if base == "" || base == "." {
		return "", ErrBadFilename
	}
	return base, nil
}
