package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/distr-app/distr/internal/auth"
	"github.com/distr-app/distr/internal/http/middleware"
	"github.com/distr-app/distr/internal/models"
	"github.com/gin-gonic/gin"
)

// AuthHandler serves sign-in endpoints: one-time codes, passwords and sessions.
type AuthHandler struct {
	auth          *auth.Service
	sessionTTL    time.Duration
	secureCookies bool
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(service *auth.Service, sessionTTL time.Duration, secureCookies bool) *AuthHandler {
	return &AuthHandler{auth: service, sessionTTL: sessionTTL, secureCookies: secureCookies}
}

// GetCode sends a one-time code to the email through the bot.
func (h *AuthHandler) GetCode(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email"})
		return
	}
	if errRequest := h.auth.RequestCode(c.Request.Context(), email); errRequest != nil {
		fail(c, errRequest)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// GetToken exchanges a one-time code for a bearer token.
func (h *AuthHandler) GetToken(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	code := strings.TrimSpace(c.Query("code"))
	place := strings.TrimSpace(c.Query("place"))
	if email == "" || code == "" || place == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email, code or place"})
		return
	}
	token, errExchange := h.auth.ExchangeCode(c.Request.Context(), email, code, place)
	if errExchange != nil {
		fail(c, errExchange)
		return
	}
	c.JSON(http.StatusOK, token)
}

// Signup registers a password account and starts a session.
func (h *AuthHandler) Signup(c *gin.Context) {
	var body struct {
		FirstName string `json:"first_name" binding:"required"`
		LastName  string `json:"last_name" binding:"required"`
		Email     string `json:"email" binding:"required,email"`
		Password  string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}
	user, errSignup := h.auth.Signup(c.Request.Context(), auth.SignupInput{
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Email:     body.Email,
		Password:  body.Password,
	})
	if errSignup != nil {
		fail(c, errSignup)
		return
	}
	if !h.startSession(c, user) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": userView(user)})
}

// Login verifies a password and starts a session.
func (h *AuthHandler) Login(c *gin.Context) {
	var body struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}
	user, errLogin := h.auth.Login(c.Request.Context(), strings.TrimSpace(body.Email), body.Password)
	if errLogin != nil {
		fail(c, errLogin)
		return
	}
	if !h.startSession(c, user) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userView(user)})
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", h.secureCookies, true)
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) startSession(c *gin.Context, user models.User) bool {
	session, errIssue := h.auth.IssueSession(user)
	if errIssue != nil {
		fail(c, errIssue)
		return false
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, session, int(h.sessionTTL.Seconds()), "/", "", h.secureCookies, true)
	return true
}
