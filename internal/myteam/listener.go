package myteam

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	cursorName     = "myteam"
	queueSize      = 64
	defaultBackoff = 5 * time.Second
)

// Fetcher polls the bot API.
type Fetcher interface {
	FetchEvents(ctx context.Context, lastEventID int64) (Batch, error)
}

// CursorStore persists the last consumed event id.
type CursorStore interface {
	Load(ctx context.Context, bot string) (int64, error)
	Save(ctx context.Context, bot string, lastEventID int64) error
}

// Listener polls for events and dispatches messages to handlers on a worker goroutine.
type Listener struct {
	fetcher  Fetcher
	cursors  CursorStore
	handlers []Handler
	backoff  time.Duration

	queue chan MessagePayload
	wg    sync.WaitGroup
}

// NewListener constructs a Listener.
func NewListener(fetcher Fetcher, cursors CursorStore, handlers ...Handler) *Listener {
	return &Listener{
		fetcher:  fetcher,
		cursors:  cursors,
		handlers: handlers,
		backoff:  defaultBackoff,
		queue:    make(chan MessagePayload, queueSize),
	}
}

// Start runs the poll loop and the worker until ctx is done.
func (l *Listener) Start(ctx context.Context) {
	if l == nil {
		return
	}
	l.wg.Add(2)
	go func() {
		defer l.wg.Done()
		l.work(ctx)
	}()
	go func() {
		defer l.wg.Done()
		l.poll(ctx)
	}()
	log.Info("myteam listener started")
}

// Wait blocks until both goroutines have exited.
func (l *Listener) Wait() {
	if l == nil {
		return
	}
	l.wg.Wait()
}

func (l *Listener) poll(ctx context.Context) {
	defer close(l.queue)

	lastEventID, errLoad := l.cursors.Load(ctx, cursorName)
	if errLoad != nil {
		log.WithError(errLoad).Warn("myteam listener: load cursor failed, starting from 0")
	}
	for ctx.Err() == nil {
		next, errPoll := l.PollOnce(ctx, lastEventID)
		if errPoll != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(errPoll).Warn("myteam listener: poll failed")
			if !sleepCtx(ctx, l.backoff) {
				return
			}
			continue
		}
		lastEventID = next
	}
}

// PollOnce fetches one batch, enqueues its messages and persists the cursor.
// It returns the new last event id.
func (l *Listener) PollOnce(ctx context.Context, lastEventID int64) (int64, error) {
	batch, errFetch := l.fetcher.FetchEvents(ctx, lastEventID)
	if errFetch != nil {
		return lastEventID, errFetch
	}
	for _, event := range batch.Events {
		if event.Type != EventTypeNewMessage {
			continue
		}
		select {
		case l.queue <- event.Payload:
		case <-ctx.Done():
			return lastEventID, ctx.Err()
		}
	}
	if batch.LastEventID != lastEventID {
		if errSave := l.cursors.Save(ctx, cursorName, batch.LastEventID); errSave != nil {
			log.WithError(errSave).Warn("myteam listener: save cursor failed")
		}
	}
	return batch.LastEventID, nil
}

func (l *Listener) work(ctx context.Context) {
	for msg := range l.queue {
		l.dispatch(ctx, msg)
	}
}

func (l *Listener) dispatch(ctx context.Context, msg MessagePayload) {
	for _, handler := range l.handlers {
		if !handler.CanHandle(msg) {
			continue
		}
		if errHandle := handler.Handle(context.WithoutCancel(ctx), msg); errHandle != nil {
			log.WithError(errHandle).WithField("user", msg.From.UserID).Warn("myteam listener: handler failed")
		}
		return
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
