// Package auth implements sign-in with one-time codes and passwords, and bearer token management.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/distr-app/distr/internal/apperr"
	"github.com/distr-app/distr/internal/config"
	"github.com/distr-app/distr/internal/models"
	"github.com/distr-app/distr/internal/ratelimit"
	"github.com/distr-app/distr/internal/security"
	"github.com/distr-app/distr/internal/store"
	log "github.com/sirupsen/logrus"
)

// CodeValidity is how long a one-time code can be exchanged.
const CodeValidity = 300 * time.Second

const codeWindow = time.Minute

// Sender delivers a text message to a recipient identity.
type Sender interface {
	SendMessage(ctx context.Context, text, to string) error
}

// Limiter throttles code requests.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (ratelimit.Result, error)
}

// IssuedToken is a freshly minted bearer token shown to its owner in full.
type IssuedToken struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Place     string    `json:"place"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenView is a listed token with its value masked once the reveal window passed.
type TokenView struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Place     string    `json:"place"`
	CreatedAt time.Time `json:"created_at"`
}

// Service wires the credential stores with the bot sender and rate limiter.
type Service struct {
	users   *store.UserStore
	codes   *store.CodeStore
	tokens  *store.TokenStore
	sender  Sender
	limiter Limiter

	jwt            config.JWTConfig
	codesPerMinute int
	nowFn          func() time.Time
}

// Options configures a Service.
type Options struct {
	JWT            config.JWTConfig
	CodesPerMinute int
	Now            func() time.Time
}

// NewService constructs a Service.
func NewService(users *store.UserStore, codes *store.CodeStore, tokens *store.TokenStore, sender Sender, limiter Limiter, opts Options) *Service {
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Service{
		users:          users,
		codes:          codes,
		tokens:         tokens,
		sender:         sender,
		limiter:        limiter,
		jwt:            opts.JWT,
		codesPerMinute: opts.CodesPerMinute,
		nowFn:          nowFn,
	}
}

// RequestCode sends a fresh one-time code to email through the bot.
func (s *Service) RequestCode(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperr.BadRequest("email is required")
	}
	if s.limiter != nil {
		result, errLimit := s.limiter.Allow(ctx, ratelimit.KeyForCodeRequest(email), s.codesPerMinute, codeWindow)
		if errLimit != nil {
			return apperr.Internal("rate limiter failure", errLimit)
		}
		if !result.Allowed {
			return apperr.BadRequest("too many code requests, try again later")
		}
	}

	code, errCode := security.GenerateCode()
	if errCode != nil {
		return apperr.Internal("failed to generate code", errCode)
	}
	if errSend := s.sender.SendMessage(ctx, "Your one time code is "+code, email); errSend != nil {
		log.WithError(errSend).WithField("email", email).Warn("auth: failed to send one-time code")
		if apperr.KindOf(errSend) == apperr.KindInternal {
			return errSend
		}
		return apperr.Internal("failed to send code", errSend)
	}
	return s.codes.Upsert(ctx, email, code, s.nowFn())
}

// ExchangeCode consumes a one-time code and issues a token for place.
// The code is deleted whether or not the exchange succeeds.
func (s *Service) ExchangeCode(ctx context.Context, email, code, place string) (IssuedToken, error) {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return IssuedToken{}, apperr.BadRequest("email and code are required")
	}
	row, errConsume := s.codes.Consume(ctx, email, code)
	if errConsume != nil {
		return IssuedToken{}, errConsume
	}
	if !row.CreatedAt.Add(CodeValidity).After(s.nowFn()) {
		return IssuedToken{}, apperr.BadRequest("code expired, request a new one")
	}
	user, errUser := s.users.FindByAuthID(ctx, email)
	if errUser != nil {
		if apperr.Is(errUser, apperr.KindNotFound) {
			return IssuedToken{}, apperr.NotFound("user not found, find @distrappbot bot in MyTeam and press start")
		}
		return IssuedToken{}, errUser
	}
	return s.issue(ctx, user.ID, place)
}

// CreateToken issues an additional bearer token for the user.
func (s *Service) CreateToken(ctx context.Context, user models.User, place string) (IssuedToken, error) {
	return s.issue(ctx, user.ID, place)
}

func (s *Service) issue(ctx context.Context, userID uint64, place string) (IssuedToken, error) {
	place = strings.TrimSpace(place)
	if len(place) < minPlaceLength {
		return IssuedToken{}, apperr.BadRequest("token must be at least 3 characters long")
	}
	value, errToken := security.GenerateToken()
	if errToken != nil {
		return IssuedToken{}, apperr.Internal("token cannot be generated", errToken)
	}
	row, errCreate := s.tokens.Create(ctx, userID, value, place)
	if errCreate != nil {
		return IssuedToken{}, errCreate
	}
	return IssuedToken{ID: row.PublicID, Token: row.Value, Place: row.Place, CreatedAt: row.CreatedAt}, nil
}

// ListTokens returns the user's tokens with masked values.
func (s *Service) ListTokens(ctx context.Context, user models.User) ([]TokenView, error) {
	rows, errList := s.tokens.ListForUser(ctx, user.ID)
	if errList != nil {
		return nil, errList
	}
	now := s.nowFn()
	views := make([]TokenView, 0, len(rows))
	for _, row := range rows {
		views = append(views, TokenView{
			ID:        row.PublicID,
			Token:     security.MaskToken(row.Value, row.CreatedAt, now),
			Place:     row.Place,
			CreatedAt: row.CreatedAt,
		})
	}
	return views, nil
}

// RevokeToken deletes one of the user's tokens.
func (s *Service) RevokeToken(ctx context.Context, user models.User, tokenID string) error {
	row, errFind := s.tokens.FindByPublicID(ctx, strings.TrimSpace(tokenID))
	if errFind != nil {
		if apperr.Is(errFind, apperr.KindNotFound) {
			return apperr.BadRequest("invalid user token")
		}
		return errFind
	}
	if row.UserID != user.ID {
		return apperr.BadRequest("invalid user token")
	}
	return s.tokens.Delete(ctx, row.ID)
}

// Authenticate resolves a bearer value to its user.
func (s *Service) Authenticate(ctx context.Context, bearer string) (models.User, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return models.User{}, apperr.Unauthorized("missing token")
	}
	row, errFind := s.tokens.FindByValue(ctx, bearer)
	if errFind != nil {
		if apperr.Is(errFind, apperr.KindNotFound) {
			return models.User{}, apperr.Unauthorized("invalid token")
		}
		return models.User{}, errFind
	}
	if row.User == nil {
		return models.User{}, apperr.Unauthorized("invalid token")
	}
	return *row.User, nil
}

// AuthenticateSession resolves a session cookie value to its user.
func (s *Service) AuthenticateSession(ctx context.Context, session string) (models.User, error) {
	claims, errParse := security.ParseSessionToken(s.jwt.Secret, session)
	if errParse != nil {
		return models.User{}, apperr.Wrap(apperr.KindUnauthorized, "invalid session", errParse)
	}
	user, errUser := s.users.FindByID(ctx, claims.UserID)
	if errUser != nil {
		if apperr.Is(errUser, apperr.KindNotFound) {
			return models.User{}, apperr.Unauthorized("invalid session")
		}
		return models.User{}, errUser
	}
	return user, nil
}

// IssueSession signs a session token for the user.
func (s *Service) IssueSession(user models.User) (string, error) {
	token, errIssue := security.IssueSessionToken(s.jwt.Secret, user.ID, s.jwt.Expiry, s.nowFn())
	if errIssue != nil {
		return "", apperr.Internal("failed to issue session", errIssue)
	}
	return token, nil
}

// SignupInput carries a password registration.
type SignupInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Signup registers a password account.
func (s *Service) Signup(ctx context.Context, in SignupInput) (models.User, error) {
	firstName := strings.TrimSpace(in.FirstName)
	lastName := strings.TrimSpace(in.LastName)
	email := strings.TrimSpace(in.Email)
	switch {
	case !ValidName(firstName):
		return models.User{}, apperr.BadRequest("first name must be at least 2 characters long")
	case !ValidName(lastName):
		return models.User{}, apperr.BadRequest("last name must be at least 2 characters long")
	case !ValidEmail(email):
		return models.User{}, apperr.BadRequest("invalid email")
	case !ValidPassword(in.Password):
		return models.User{}, apperr.BadRequest("password does not meet the policy")
	}
	hash, errHash := security.HashPassword(in.Password)
	if errHash != nil {
		return models.User{}, apperr.Internal("failed to hash password", errHash)
	}
	user := models.User{
		FirstName:    firstName,
		LastName:     lastName,
		AuthProvider: models.AuthProviderSite,
		AuthID:       email,
		Password:     hash,
	}
	if errCreate := s.users.Create(ctx, &user); errCreate != nil {
		return models.User{}, errCreate
	}
	return user, nil
}

// Login verifies a password. Accounts without a password must sign in with a code.
func (s *Service) Login(ctx context.Context, email, password string) (models.User, error) {
	user, errUser := s.users.FindByAuthID(ctx, email)
	if errUser != nil {
		if apperr.Is(errUser, apperr.KindNotFound) {
			return models.User{}, apperr.Unauthorized("invalid credentials")
		}
		return models.User{}, errUser
	}
	if user.Password == "" {
		return models.User{}, apperr.Unauthorized("password not set, sign in with a one-time code")
	}
	if !security.CheckPassword(user.Password, password) {
		return models.User{}, apperr.Unauthorized("invalid credentials")
	}
	return user, nil
}

// ChangePassword replaces the user's password.
func (s *Service) ChangePassword(ctx context.Context, user models.User, password, confirm string) error {
	if password != confirm {
		return apperr.BadRequest("passwords do not match")
	}
	if !ValidPassword(password) {
		return apperr.BadRequest("password does not meet the policy")
	}
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return apperr.Internal("failed to hash password", errHash)
	}
	return s.users.UpdatePassword(ctx, user.ID, hash)
}
