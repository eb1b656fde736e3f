// Package myteam talks to the MyTeam bot API: sending messages and long-polling events.
package myteam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/distr-app/distr/internal/apperr"
	"github.com/distr-app/distr/internal/config"
	log "github.com/sirupsen/logrus"
)

const (
	sendTextPath  = "/bot/v1/messages/sendText"
	eventsGetPath = "/bot/v1/events/get"

	defaultRequestTimeout = 15 * time.Second
	maxResponseBytes      = 4 << 20
)

// Client is a MyTeam bot API client.
type Client struct {
	host     string
	token    string
	pollTime int
	http     *http.Client
}

// NewClient constructs a Client. A nil httpClient uses a default without a global timeout;
// every request carries its own deadline.
func NewClient(cfg config.MyTeamConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		host:     strings.TrimRight(strings.TrimSpace(cfg.Host), "/"),
		token:    strings.TrimSpace(cfg.Token),
		pollTime: cfg.PollTime,
		http:     httpClient,
	}
}

// PollTime returns the long-poll duration in seconds.
func (c *Client) PollTime() int { return c.pollTime }

// SendMessage sends text to a chat, which for direct messages is the user's email.
func (c *Client) SendMessage(ctx context.Context, text, to string) error {
	form := url.Values{}
	form.Set("token", c.token)
	form.Set("chatId", to)
	form.Set("text", text)

	requestCtx, cancel := context.WithTimeout(ctx, defaultRequestTimeout)
	defer cancel()
	resp, errPost := c.post(requestCtx, sendTextPath, form)
	if errPost != nil {
		return apperr.Internal("message bot unavailable", errPost)
	}
	if !resp.OK {
		reason := resp.Description
		if reason == "" {
			reason = "message bot rejected the message"
		}
		return apperr.Internal(reason, nil)
	}
	return nil
}

// FetchEvents long-polls for events after lastEventID.
func (c *Client) FetchEvents(ctx context.Context, lastEventID int64) (Batch, error) {
	form := url.Values{}
	form.Set("token", c.token)
	form.Set("lastEventId", strconv.FormatInt(lastEventID, 10))
	form.Set("pollTime", strconv.Itoa(c.pollTime))

	requestCtx, cancel := context.WithTimeout(ctx, time.Duration(c.pollTime)*time.Second+defaultRequestTimeout)
	defer cancel()
	resp, errPost := c.post(requestCtx, eventsGetPath, form)
	if errPost != nil {
		return Batch{LastEventID: lastEventID}, errPost
	}
	if !resp.OK {
		return Batch{LastEventID: lastEventID}, fmt.Errorf("myteam: events request rejected: %s", resp.Description)
	}
	return decodeEvents(resp.Events, lastEventID), nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values) (apiResponse, error) {
	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, strings.NewReader(form.Encode()))
	if errReq != nil {
		return apiResponse{}, fmt.Errorf("myteam: build request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, errDo := c.http.Do(req)
	if errDo != nil {
		return apiResponse{}, fmt.Errorf("myteam: request failed: %w", errDo)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("myteam: close response body failed")
		}
	}()

	body, errRead := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if errRead != nil {
		return apiResponse{}, fmt.Errorf("myteam: read response: %w", errRead)
	}
	var decoded apiResponse
	if errDecode := json.Unmarshal(body, &decoded); errDecode != nil {
		return apiResponse{}, fmt.Errorf("myteam: decode response (status %d): %w", resp.StatusCode, errDecode)
	}
	return decoded, nil
}

// NoopSender is used when the bot is disabled.
type NoopSender struct{}

// SendMessage always fails.
func (NoopSender) SendMessage(context.Context, string, string) error {
	return apperr.Internal("message bot disabled", nil)
}
