package auth

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/imHansiy/mediadex/internal/httputil"
	"github.com/imHansiy/mediadex/internal/models"
	"github.com/imHansiy/mediadex/internal/repository"
)

type Handler struct {
	db     *sql.DB
	users  *repository.UserRepository
	secret []byte
}

func NewHandler(db *sql.DB, secret string) *Handler {
	return &Handler{
		db:     db,
		users:  repository.NewUserRepository(db),
		secret: []byte(secret),
	}
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/setup/check", h.setupCheck)
	r.Post("/setup", h.setup)
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	return r
}

// setupCheck tells the client whether first-run setup is still needed.
func (h *Handler) setupCheck(w http.ResponseWriter, r *http.Request) {
	count, err := h.users.Count()
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to check setup state")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"setup_required": count == 0})
}

// setup creates the first account. It only works once; the account is
// always the admin.
func (h *Handler) setup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		httputil.WriteError(w, http.StatusBadRequest, "MISSING_FIELDS", "username and password are required")
		return
	}

	count, err := h.users.Count()
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to check setup state")
		return
	}
	if count > 0 {
		httputil.WriteError(w, http.StatusConflict, "ALREADY_CONFIGURED", "setup already completed")
		return
	}

	if err := ValidatePassword(req.Password, 8, false); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "WEAK_PASSWORD", err.Error())
		return
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to hash password")
		return
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     req.Username,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	}
	if err := h.users.Create(user); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to create admin account")
		return
	}

	token, err := h.openSession(w, user)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to create session")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
		"is_admin": true,
		"token":    token,
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}

	user, err := h.users.GetByUsername(req.Username)
	if err != nil || !CheckPassword(user.PasswordHash, req.Password) {
		httputil.WriteError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid username or password")
		return
	}

	token, err := h.openSession(w, user)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to create session")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
		"is_admin": user.Role == models.RoleAdmin,
		"token":    token,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token := extractToken(r)
	if token != "" {
		h.db.Exec("DELETE FROM sessions WHERE token=$1", token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// openSession signs a token, records it for revocation, and sets the
// session cookie.
func (h *Handler) openSession(w http.ResponseWriter, user *models.User) (string, error) {
	isAdmin := user.Role == models.RoleAdmin
	token, err := GenerateToken(h.secret, user.ID, isAdmin, SessionTTL)
	if err != nil {
		return "", err
	}
	exp := time.Now().Add(SessionTTL).Unix()
	if _, err := h.db.Exec(
		"INSERT INTO sessions (token, user_id, is_admin, expires_at) VALUES ($1, $2, $3, $4)",
		token, user.ID, isAdmin, exp,
	); err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionTTL.Seconds()),
	})
	return token, nil
}
