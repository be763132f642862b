package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type Handler struct {
	log  *slog.Logger
	repo *Repository
	auth *Auth
}

func NewHandler(log *slog.Logger, repo *Repository, auth *Auth) *Handler {
	return &Handler{log: log, repo: repo, auth: auth}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	adm, err := h.repo.ByEmail(r.Context(), req.Email)
	if err != nil {
		h.log.Error("admin lookup failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server error"})
		return
	}
	if adm == nil || bcrypt.CompareHashAndPassword([]byte(adm.PasswordHash), []byte(req.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}

	token, err := h.auth.Issue(*adm, time.Now())
	if err != nil {
		h.log.Error("token issue failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"admin": map[string]string{
			"id":        adm.ID,
			"email":     adm.Email,
			"full_name": adm.FullName,
			"role":      adm.Role,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
