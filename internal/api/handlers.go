package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"healthmate.app/health-assistant/internal/auth"
	"healthmate.app/health-assistant/internal/core"
	"healthmate.app/health-assistant/internal/logger"
	"healthmate.app/health-assistant/internal/store"
)

type contextKey string

const (
	userIDKey    contextKey = "userID"
	sessionIDKey contextKey = "sessionID"
)

type APIHandler struct {
	store       *store.SQLiteStore
	chatService *core.ChatService
	docService  *core.DocumentService
	sessions    *core.SessionStore
	maxUpload   int64
}

func NewAPIHandler(st *store.SQLiteStore, cs *core.ChatService, ds *core.DocumentService, sessions *core.SessionStore, maxUpload int64) *APIHandler {
	return &APIHandler{
		store:       st,
		chatService: cs,
		docService:  ds,
		sessions:    sessions,
		maxUpload:   maxUpload,
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// JWTAuthMiddleware authenticates the bearer token and requires its working
// session to still exist; a logged-out token is rejected even if unexpired.
func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		userID, sessionID, err := auth.ValidateJWT(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		if _, ok := h.sessions.Get(sessionID); !ok {
			writeError(w, http.StatusUnauthorized, "Session expired")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = context.WithValue(ctx, sessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIdentity(r *http.Request) (int64, string) {
	return r.Context().Value(userIDKey).(int64), r.Context().Value(sessionIDKey).(string)
}

// Account surface

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to hash password")
		writeError(w, http.StatusInternalServerError, "Failed to process password")
		return
	}

	user, err := h.store.CreateUser(email, hashedPassword)
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "Email already registered")
			return
		}
		logger.Log.WithError(err).Error("Failed to create user")
		writeError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	token, err := h.issueToken(user.ID)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to issue token after signup")
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token})
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password required")
		return
	}

	// A missing account and a wrong password are reported identically.
	user, err := h.store.GetUserByEmail(email)
	if err != nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			logger.Log.WithError(err).Error("Failed to look up user at login")
		}
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := h.issueToken(user.ID)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to issue token at login")
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (h *APIHandler) issueToken(userID int64) (string, error) {
	sessionID, _ := h.sessions.Create()
	return auth.GenerateJWT(userID, sessionID)
}

func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	_, sessionID := requestIdentity(r)
	h.sessions.Delete(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// Setup surface

type saveKeyRequest struct {
	APIKey string `json:"api_key"`
}

func (h *APIHandler) SaveKeyHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestIdentity(r)

	var req saveKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		writeError(w, http.StatusBadRequest, "API key is required")
		return
	}
	if !strings.HasPrefix(apiKey, core.CredentialPrefix) {
		writeError(w, http.StatusBadRequest, "Invalid API key format")
		return
	}

	if err := h.chatService.SaveAPIKey(r.Context(), userID, apiKey); err != nil {
		if errors.Is(err, core.ErrInvalidCredential) {
			writeError(w, http.StatusBadRequest, "Invalid API key")
			return
		}
		logger.Log.WithError(err).Error("Failed to save API key")
		writeError(w, http.StatusInternalServerError, "Failed to save API key")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Profile surface

func (h *APIHandler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestIdentity(r)

	profile, err := h.chatService.GetProfile(userID)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to load profile")
		writeError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	if profile == nil {
		profile = &store.Profile{}
	}
	writeJSON(w, http.StatusOK, map[string]*store.Profile{"profile": profile})
}

func (h *APIHandler) SaveProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestIdentity(r)

	var profile store.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.chatService.SaveProfile(userID, &profile); err != nil {
		if errors.Is(err, core.ErrNoAPIKey) {
			writeError(w, http.StatusBadRequest, "No API key saved")
			return
		}
		logger.Log.WithError(err).Error("Failed to save profile")
		writeError(w, http.StatusInternalServerError, "Failed to save profile")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Chat surface

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Message string `json:"message"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	userID, sessionID := requestIdentity(r)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		writeError(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}

	answer, err := h.chatService.SendMessage(r.Context(), userID, sessionID, text)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNoAPIKey):
			writeError(w, http.StatusBadRequest, "No API key saved")
		case errors.Is(err, core.ErrNoSession):
			writeError(w, http.StatusUnauthorized, "Session expired")
		default:
			// Gateway and storage details stay in the logs.
			logger.Log.WithError(err).Error("Failed to complete chat exchange")
			writeError(w, http.StatusBadGateway, "The assistant is unavailable right now. Please try again.")
		}
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Message: answer})
}

func (h *APIHandler) GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	_, sessionID := requestIdentity(r)

	msgs, err := h.chatService.Messages(sessionID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Session expired")
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	writeJSON(w, http.StatusOK, map[string][]store.Message{"messages": msgs})
}

// NewChatHandler saves the active transcript if non-empty and starts a fresh
// one. Clearing a chat is the same operation.
func (h *APIHandler) NewChatHandler(w http.ResponseWriter, r *http.Request) {
	userID, sessionID := requestIdentity(r)

	if err := h.chatService.NewChat(userID, sessionID); err != nil {
		if errors.Is(err, core.ErrNoSession) {
			writeError(w, http.StatusUnauthorized, "Session expired")
			return
		}
		logger.Log.WithError(err).Error("Failed to start new chat")
		writeError(w, http.StatusInternalServerError, "Failed to start new chat")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *APIHandler) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestIdentity(r)

	chats, err := h.chatService.ListChats(userID)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to list chats")
		writeError(w, http.StatusInternalServerError, "Failed to list chats")
		return
	}
	if chats == nil {
		chats = []store.ChatSummary{}
	}
	writeJSON(w, http.StatusOK, map[string][]store.ChatSummary{"chats": chats})
}

func (h *APIHandler) LoadChatHandler(w http.ResponseWriter, r *http.Request) {
	userID, sessionID := requestIdentity(r)
	chatID := chi.URLParam(r, "chatID")

	chat, err := h.chatService.LoadChat(userID, sessionID, chatID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "Chat not found")
		case errors.Is(err, core.ErrNoSession):
			writeError(w, http.StatusUnauthorized, "Session expired")
		default:
			logger.Log.WithError(err).Error("Failed to load chat")
			writeError(w, http.StatusInternalServerError, "Failed to load chat")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]*store.Chat{"chat": chat})
}

// Document surface

// multipartOverhead leaves room for boundaries and part headers on top of
// the file payload itself.
const multipartOverhead = 10 << 10

func (h *APIHandler) UploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestIdentity(r)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "File exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	doc, preview, err := h.docService.Store(userID, header.Filename, header.Size, file)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrExtensionNotAllowed):
			writeError(w, http.StatusBadRequest, "File type not allowed")
		case errors.Is(err, core.ErrFileTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "File exceeds size limit")
		case errors.Is(err, core.ErrBadFilename):
			writeError(w, http.StatusBadRequest, "Invalid filename")
		default:
			logger.Log.WithError(err).Error("Failed to store document")
			writeError(w, http.StatusInternalServerError, "Failed to store document")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"document": doc,
		"preview":  preview,
	})
}

func (h *APIHandler) ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestIdentity(r)

	docs, err := h.docService.List(userID)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to list documents")
		writeError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}
	if docs == nil {
		docs = []core.DocumentInfo{}
	}
	writeJSON(w, http.StatusOK, map[string][]core.DocumentInfo{"documents": docs})
}

func (h *APIHandler) DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestIdentity(r)
	filename := chi.URLParam(r, "filename")

	if err := h.docService.Delete(userID, filename); err != nil {
		switch {
		case errors.Is(err, core.ErrBadFilename):
			writeError(w, http.StatusBadRequest, "Invalid filename")
		case errors.Is(err, core.ErrDocumentNotFound):
			writeError(w, http.StatusNotFound, "Document not found")
		default:
			logger.Log.WithError(err).Error("Failed to delete document")
			writeError(w, http.StatusInternalServerError, "Failed to delete document")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
