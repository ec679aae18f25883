package httpserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"securechat/internal/domain"
	"securechat/internal/service"
	"securechat/internal/ws"
)

type userResponse struct {
	*domain.User
	Online bool `json:"online"`
}

// publicUserResponse is what callers see of accounts other than their own.
type publicUserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// userIDParam reads a UUID path parameter.
func userIDParam(r *http.Request) (string, error) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		return "", fmt.Errorf("%w: invalid user id", domain.ErrInvalidInput)
	}
	return id.String(), nil
}

// @Summary      Username availability
// @Tags         users
// @Produce      json
// @Param        username query string true "Username"
// @Success      200  {object}  map[string]bool
// @Failure      400  {object}  errorBody
// @Router       /users/exists [get]
func handleUserExists(authSvc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := strings.TrimSpace(r.URL.Query().Get("username"))
		if username == "" {
			writeError(w, r, fmt.Errorf("%w: username is required", domain.ErrInvalidInput))
			return
		}
		exists, err := authSvc.Exists(r.Context(), username)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
	}
}

// @Summary      Get user
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        userID path string true "User ID"
// @Success      200  {object}  publicUserResponse
// @Failure      404  {object}  errorBody
// @Router       /users/{userID} [get]
func handleGetUser(userSvc *service.UserService, hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := userIDParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		user, err := userSvc.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		online := hub.IsOnline(user.ID)
		if me := CurrentUser(r); me != nil && me.ID == user.ID {
			writeJSON(w, http.StatusOK, userResponse{User: user, Online: online})
			return
		}
		writeJSON(w, http.StatusOK, publicUserResponse{ID: user.ID, Username: user.Username, Online: online})
	}
}
