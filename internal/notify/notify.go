// Package notify announces new builds to the project's chat.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/distr-app/distr/internal/models"
	log "github.com/sirupsen/logrus"
)

const sendTimeout = 15 * time.Second

// Sender delivers a text message to a chat.
type Sender interface {
	SendMessage(ctx context.Context, text, to string) error
}

// Notifier sends "new build" messages in the background.
type Notifier struct {
	sender Sender
	wg     sync.WaitGroup
}

// New constructs a Notifier.
func New(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

// Message formats the announcement for a build.
func Message(project models.Project, branch models.Branch) string {
	return fmt.Sprintf("%s: new build %s #%d uploaded", project.Title, branch.Tag, branch.BuildNumber)
}

// BuildUploaded schedules an announcement when the project has a chat configured.
func (n *Notifier) BuildUploaded(project models.Project, branch models.Branch) {
	if n == nil || n.sender == nil {
		return
	}
	integrations := project.Integrations.Data()
	if integrations.MyTeamID == nil || strings.TrimSpace(*integrations.MyTeamID) == "" {
		return
	}
	chatID := strings.TrimSpace(*integrations.MyTeamID)
	text := Message(project, branch)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if errSend := n.sender.SendMessage(ctx, text, chatID); errSend != nil {
			log.WithError(errSend).WithFields(log.Fields{
				"project": project.Name,
				"tag":     branch.Tag,
			}).Warn("notify: failed to announce build")
		}
	}()
}

// Wait blocks until pending announcements finish.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}
