package myteam

import (
	"context"
	"strings"

	"github.com/distr-app/distr/internal/models"
)

// Sender delivers a text message.
type Sender interface {
	SendMessage(ctx context.Context, text, to string) error
}

// Handler reacts to incoming messages.
type Handler interface {
	CanHandle(msg MessagePayload) bool
	Handle(ctx context.Context, msg MessagePayload) error
}

// UserUpserter creates or refreshes users reported by the bot.
type UserUpserter interface {
	UpsertFromBot(ctx context.Context, authID, firstName, lastName string) (models.User, bool, error)
}

// StartHandler registers the sender as a user on /start.
type StartHandler struct {
	users  UserUpserter
	sender Sender
}

// NewStartHandler constructs a StartHandler.
func NewStartHandler(users UserUpserter, sender Sender) *StartHandler {
	return &StartHandler{users: users, sender: sender}
}

func (h *StartHandler) CanHandle(msg MessagePayload) bool {
	return strings.TrimSpace(msg.Text) == "/start"
}

func (h *StartHandler) Handle(ctx context.Context, msg MessagePayload) error {
	_, created, errUpsert := h.users.UpsertFromBot(ctx, msg.From.UserID, msg.From.FirstName, msg.From.LastName)
	if errUpsert != nil {
		return errUpsert
	}
	reply := "User Info Updated"
	if created {
		reply = "Welcome to distr.app! User Created"
	}
	return h.sender.SendMessage(ctx, reply, msg.From.UserID)
}

// PingHandler answers /ping.
type PingHandler struct {
	sender Sender
}

// NewPingHandler constructs a PingHandler.
func NewPingHandler(sender Sender) *PingHandler {
	return &PingHandler{sender: sender}
}

func (h *PingHandler) CanHandle(msg MessagePayload) bool {
	return strings.TrimSpace(msg.Text) == "/ping"
}

func (h *PingHandler) Handle(ctx context.Context, msg MessagePayload) error {
	return h.sender.SendMessage(ctx, "pong", msg.From.UserID)
}
