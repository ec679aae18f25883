package httpserver

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"securechat/internal/domain"
	"securechat/internal/metrics"
	"securechat/internal/service"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *domain.User `json:"user"`
}

// clientMeta captures the caller's address, user agent and platform.
// RealIP has already replaced RemoteAddr with the forwarded address when present.
func clientMeta(r *http.Request) domain.ClientMeta {
	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return domain.ClientMeta{
		Address:   addr,
		UserAgent: r.UserAgent(),
		Platform:  strings.Trim(r.Header.Get("Sec-CH-UA-Platform"), `"`),
	}
}

// @Summary      Register a new user
// @Description  Register a new user and return an access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body registerRequest true "Register input"
// @Success      201  {object}  tokenResponse
// @Failure      400  {object}  errorBody
// @Failure      409  {object}  errorBody
// @Router       /auth/register [post]
func handleRegister(authSvc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		meta := clientMeta(r)
		if _, err := authSvc.Register(r.Context(), service.RegisterInput{
			Username: req.Username,
			Email:    req.Email,
			Password: req.Password,
			Client:   meta,
		}); err != nil {
			writeError(w, r, err)
			return
		}
		metrics.UsersRegistered.Inc()

		// Auto-login after registration
		resp, err := authSvc.Login(r.Context(), service.LoginInput{
			Username: req.Username,
			Password: req.Password,
			Client:   meta,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, tokenResponse{
			AccessToken: resp.AccessToken,
			TokenType:   resp.TokenType,
			User:        resp.User,
		})
	}
}

// @Summary      Login
// @Description  Login with username and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body loginRequest true "Login input"
// @Success      200  {object}  tokenResponse
// @Failure      400  {object}  errorBody
// @Failure      401  {object}  errorBody
// @Router       /auth/login [post]
func handleLogin(authSvc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		resp, err := authSvc.Login(r.Context(), service.LoginInput{
			Username: req.Username,
			Password: req.Password,
			Client:   clientMeta(r),
		})
		if err != nil {
			if errors.Is(err, domain.ErrInvalidCredentials) {
				metrics.Logins.WithLabelValues("failure").Inc()
			}
			writeError(w, r, err)
			return
		}
		metrics.Logins.WithLabelValues("success").Inc()
		writeJSON(w, http.StatusOK, tokenResponse{
			AccessToken: resp.AccessToken,
			TokenType:   resp.TokenType,
			User:        resp.User,
		})
	}
}

// @Summary      Get Current User
// @Description  Get currently logged in user details
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  domain.User
// @Failure      401  {object}  errorBody
// @Router       /auth/me [get]
func handleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			unauthorized(w, "unauthorized")
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}
