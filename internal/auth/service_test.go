package auth

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/distr-app/distr/internal/apperr"
	"github.com/distr-app/distr/internal/config"
	"github.com/distr-app/distr/internal/db"
	"github.com/distr-app/distr/internal/models"
	"github.com/distr-app/distr/internal/ratelimit"
	"github.com/distr-app/distr/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct{ text, to string }

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) SendMessage(_ context.Context, text, to string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{text: text, to: to})
	return nil
}

func (f *fakeSender) lastCode(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	text := f.sent[len(f.sent)-1].text
	require.True(t, strings.HasPrefix(text, "Your one time code is "))
	return strings.TrimPrefix(text, "Your one time code is ")
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	service *Service
	users   *store.UserStore
	sender  *fakeSender
	clock   *clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))

	c := &clock{now: time.Now().UTC()}
	sender := &fakeSender{}
	users := store.NewUserStore(conn)
	service := NewService(users, store.NewCodeStore(conn), store.NewTokenStore(conn), sender,
		ratelimit.NewManager(nil, c.Now), Options{
			JWT:            config.JWTConfig{Secret: "test-secret", Expiry: time.Hour},
			CodesPerMinute: 3,
			Now:            c.Now,
		})
	return &harness{service: service, users: users, sender: sender, clock: c}
}

func (h *harness) botUser(t *testing.T, email string) models.User {
	t.Helper()
	user, _, err := h.users.UpsertFromBot(context.Background(), email, "Bot", "User")
	require.NoError(t, err)
	return user
}

func TestCodeFlow_SingleUse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.botUser(t, "a@example.com")

	require.NoError(t, h.service.RequestCode(ctx, "a@example.com"))
	code := h.sender.lastCode(t)
	assert.Len(t, code, 6)

	issued, err := h.service.ExchangeCode(ctx, "a@example.com", code, "laptop")
	require.NoError(t, err)
	assert.Len(t, issued.Token, 64)
	assert.Equal(t, strings.ToUpper(issued.Token), issued.Token)

	_, err = h.service.ExchangeCode(ctx, "a@example.com", code, "laptop")
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	user, err := h.service.Authenticate(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", user.AuthID)
}

func TestCodeFlow_Expired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.botUser(t, "a@example.com")

	require.NoError(t, h.service.RequestCode(ctx, "a@example.com"))
	code := h.sender.lastCode(t)
	h.clock.Advance(CodeValidity)

	_, err := h.service.ExchangeCode(ctx, "a@example.com", code, "laptop")
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
	_, err = h.service.ExchangeCode(ctx, "a@example.com", code, "laptop")
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err), "expired code is deleted too")
}

func TestCodeFlow_UnknownUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.service.RequestCode(ctx, "ghost@example.com"))
	_, err := h.service.ExchangeCode(ctx, "ghost@example.com", h.sender.lastCode(t), "laptop")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Contains(t, apperr.Reason(err), "@distrappbot")
}

func TestRequestCode_RateLimited(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, h.service.RequestCode(ctx, "a@example.com"))
	}
	err := h.service.RequestCode(ctx, "a@example.com")
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	h.clock.Advance(time.Minute)
	assert.NoError(t, h.service.RequestCode(ctx, "a@example.com"))
}

func TestRequestCode_SenderFailure(t *testing.T) {
	h := newHarness(t)
	h.sender.err = errors.New("bot down")
	err := h.service.RequestCode(context.Background(), "a@example.com")
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestTokens_ListMaskAndRevoke(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.botUser(t, "a@example.com")
	other := h.botUser(t, "b@example.com")

	_, err := h.service.CreateToken(ctx, owner, "ci")
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	issued, err := h.service.CreateToken(ctx, owner, "ci-runner")
	require.NoError(t, err)

	views, err := h.service.ListTokens(ctx, owner)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, issued.Token, views[0].Token)

	h.clock.Advance(time.Hour)
	views, err = h.service.ListTokens(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, issued.Token[:4]+"…"+issued.Token[60:], views[0].Token)

	err = h.service.RevokeToken(ctx, other, issued.ID)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
	require.NoError(t, h.service.RevokeToken(ctx, owner, issued.ID))
	err = h.service.RevokeToken(ctx, owner, issued.ID)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	_, err = h.service.Authenticate(ctx, issued.Token)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestPasswordFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Signup(ctx, SignupInput{FirstName: "Ann", LastName: "Lee", Email: "ann@example.com", Password: "weak"})
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	user, err := h.service.Signup(ctx, SignupInput{FirstName: "Ann", LastName: "Lee", Email: "ann@example.com", Password: "Secret123"})
	require.NoError(t, err)
	assert.Equal(t, models.AuthProviderSite, user.AuthProvider)

	_, err = h.service.Signup(ctx, SignupInput{FirstName: "Ann", LastName: "Lee", Email: "ann@example.com", Password: "Secret123"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = h.service.Login(ctx, "ann@example.com", "Wrong1234")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	logged, err := h.service.Login(ctx, "ann@example.com", "Secret123")
	require.NoError(t, err)

	session, err := h.service.IssueSession(logged)
	require.NoError(t, err)
	fromSession, err := h.service.AuthenticateSession(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, user.ID, fromSession.ID)

	require.NoError(t, h.service.ChangePassword(ctx, logged, "N3w-password", "N3w-password"))
	_, err = h.service.Login(ctx, "ann@example.com", "N3w-password")
	assert.NoError(t, err)

	bot := h.botUser(t, "bot@example.com")
	_, err = h.service.Login(ctx, bot.AuthID, "anything1A")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestPolicy(t *testing.T) {
	assert.True(t, ValidEmail("balashov@corp.mail.ru"))
	assert.False(t, ValidEmail("not-an-email"))
	assert.True(t, ValidPassword("abcDEF12"))
	assert.True(t, ValidPassword("abcdef1!"))
	assert.False(t, ValidPassword("abcdefgh1"))
	assert.False(t, ValidPassword("Abc 1234"))
	assert.False(t, ValidName("A"))
}
