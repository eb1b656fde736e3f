// Package builds moves build binaries between HTTP bodies, the blob store and the branch ledger.
package builds

import (
	"context"
	"errors"
	"io"

	"github.com/distr-app/distr/internal/apperr"
	"github.com/distr-app/distr/internal/blob"
	"github.com/distr-app/distr/internal/gate"
	"github.com/distr-app/distr/internal/models"
	"github.com/distr-app/distr/internal/permissions"
	"github.com/distr-app/distr/internal/store"
	"github.com/distr-app/distr/internal/uploadlock"
	log "github.com/sirupsen/logrus"
)

// AccessGate resolves project access for a caller.
type AccessGate interface {
	Require(ctx context.Context, user *models.User, projectName string, c permissions.Capability) (gate.Access, error)
	ResolveOptional(ctx context.Context, user *models.User, projectName string) (gate.Access, error)
}

// Ledger is the branch persistence used by the pipeline.
type Ledger interface {
	Get(ctx context.Context, projectID uint64, tag string) (models.Branch, error)
	UpsertOnUpload(ctx context.Context, projectID uint64, tag, filename string, size int64, description *string) (models.Branch, error)
	Delete(ctx context.Context, projectID uint64, tag string) (models.Branch, error)
}

// Notifier is told about every successful upload.
type Notifier interface {
	BuildUploaded(project models.Project, branch models.Branch)
}

// UploadRequest describes one inbound build.
type UploadRequest struct {
	User        *models.User
	Project     string
	Tag         string
	Filename    string
	Description *string
	Body        io.Reader
}

// Download is a resolved build ready for streaming. The caller closes Object.
type Download struct {
	Project models.Project
	Branch  models.Branch
	Object  blob.Object
}

// Pipeline implements build upload, delete and download.
type Pipeline struct {
	gate     AccessGate
	ledger   Ledger
	blobs    *blob.Local
	locks    uploadlock.Locker
	notifier Notifier
	maxBytes int64
	// legacyProject is the only project the single-project storage layout can hold.
	legacyProject string
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithNotifier registers a notifier for finished uploads.
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithMaxBytes limits the size of one build. Zero disables the limit.
func WithMaxBytes(n int64) Option {
	return func(p *Pipeline) { p.maxBytes = n }
}

// WithLegacyProject restricts uploads, deletes and downloads to one project.
// It must be set when the blob store uses the legacy layout.
func WithLegacyProject(name string) Option {
	return func(p *Pipeline) { p.legacyProject = name }
}

// New constructs a Pipeline.
func New(accessGate AccessGate, ledger Ledger, blobs *blob.Local, locks uploadlock.Locker, opts ...Option) *Pipeline {
	p := &Pipeline{gate: accessGate, ledger: ledger, blobs: blobs, locks: locks}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Upload stores the request body as the current build of the tag.
// Uploads to the same project and tag are serialised for the whole transfer.
func (p *Pipeline) Upload(ctx context.Context, req UploadRequest) (models.Branch, error) {
	access, errAccess := p.gate.Require(ctx, req.User, req.Project, permissions.CapUpload)
	if errAccess != nil {
		return models.Branch{}, errAccess
	}
	if errTag := store.ValidateSegment("tag", req.Tag); errTag != nil {
		return models.Branch{}, errTag
	}
	if errName := store.ValidateSegment("filename", req.Filename); errName != nil {
		return models.Branch{}, errName
	}
	if req.Body == nil {
		return models.Branch{}, apperr.BadRequest("upload body is required")
	}

	project := access.Project
	if errLayout := p.checkLayout(project.Name); errLayout != nil {
		return models.Branch{}, errLayout
	}
	entry := log.WithFields(log.Fields{
		"project":  project.Name,
		"tag":      req.Tag,
		"filename": req.Filename,
		"user":     req.User.ID,
	})

	unlock, errLock := p.locks.Lock(ctx, uploadlock.Key(project.Name, req.Tag))
	if errLock != nil {
		return models.Branch{}, apperr.Internal("upload lock unavailable", errLock)
	}
	defer unlock()

	entry.WithField("state", StateReceiving).Debug("upload started")
	pending, errCreate := p.blobs.Create(project.Name, req.Tag, p.maxBytes)
	if errCreate != nil {
		entry.WithError(errCreate).WithField("state", StateFailed).Error("upload failed")
		return models.Branch{}, apperr.Internal("failed to store build", errCreate)
	}
	body := &trackedReader{r: req.Body}
	if _, errCopy := io.Copy(pending, body); errCopy != nil {
		if errAbort := pending.Abort(); errAbort != nil {
			entry.WithError(errAbort).Warn("failed to remove partial upload")
		}
		entry.WithError(errCopy).WithField("state", StateFailed).Warn("upload failed")
		switch {
		case errors.Is(errCopy, blob.ErrTooLarge):
			return models.Branch{}, apperr.BadRequest("build exceeds upload size limit")
		case body.err != nil:
			return models.Branch{}, apperr.Wrap(apperr.KindBadRequest, "upload interrupted", errCopy)
		default:
			return models.Branch{}, apperr.Internal("failed to store build", errCopy)
		}
	}

	entry.WithField("state", StateFinalizing).Debug("upload received")
	previous, errPrevious := p.ledger.Get(ctx, project.ID, req.Tag)
	if errPrevious != nil && !apperr.Is(errPrevious, apperr.KindNotFound) {
		_ = pending.Abort()
		entry.WithError(errPrevious).WithField("state", StateFailed).Error("upload failed")
		return models.Branch{}, errPrevious
	}

	size := pending.Written()
	if errCommit := pending.Commit(req.Filename); errCommit != nil {
		entry.WithError(errCommit).WithField("state", StateFailed).Error("upload failed")
		return models.Branch{}, apperr.Internal("failed to store build", errCommit)
	}
	branch, errUpsert := p.ledger.UpsertOnUpload(ctx, project.ID, req.Tag, req.Filename, size, req.Description)
	if errUpsert != nil {
		entry.WithError(errUpsert).WithField("state", StateFailed).Error("build stored but ledger update failed")
		if apperr.KindOf(errUpsert) == apperr.KindInternal {
			return models.Branch{}, errUpsert
		}
		return models.Branch{}, apperr.Internal("failed to record build", errUpsert)
	}
	// The old file goes only once the ledger names the new one.
	if errPrevious == nil && previous.Filename != req.Filename {
		if errRemove := p.blobs.Remove(project.Name, req.Tag, previous.Filename); errRemove != nil {
			entry.WithError(errRemove).Warn("failed to remove previous build file")
		}
	}

	entry.WithFields(log.Fields{
		"state":        StateDone,
		"size":         size,
		"build_number": branch.BuildNumber,
	}).Info("build uploaded")
	if p.notifier != nil {
		p.notifier.BuildUploaded(project, branch)
	}
	return branch, nil
}

// Delete removes a branch and its stored build. Protected branches also
// require the protect capability.
func (p *Pipeline) Delete(ctx context.Context, user *models.User, projectName, tag string) error {
	access, errAccess := p.gate.Require(ctx, user, projectName, permissions.CapUpload)
	if errAccess != nil {
		return errAccess
	}
	project := access.Project
	if errLayout := p.checkLayout(project.Name); errLayout != nil {
		return errLayout
	}

	unlock, errLock := p.locks.Lock(ctx, uploadlock.Key(project.Name, tag))
	if errLock != nil {
		return apperr.Internal("upload lock unavailable", errLock)
	}
	defer unlock()

	branch, errGet := p.ledger.Get(ctx, project.ID, tag)
	if errGet != nil {
		return errGet
	}
	if branch.IsProtected && !access.Can(permissions.CapProtect) {
		return apperr.Forbidden("branch is protected")
	}
	if _, errDelete := p.ledger.Delete(ctx, project.ID, tag); errDelete != nil {
		return errDelete
	}

	entry := log.WithFields(log.Fields{"project": project.Name, "tag": tag})
	errRemove := p.blobs.Remove(project.Name, tag, branch.Filename)
	if errRemove == nil {
		errRemove = p.blobs.RemoveTag(project.Name, tag)
	}
	if errRemove != nil {
		entry.WithError(errRemove).Error("branch deleted but build files remain")
		return apperr.Internal("failed to remove build files", errRemove)
	}
	entry.Info("branch deleted")
	return nil
}

// Resolve returns the project and branch for install links. No grant is needed.
func (p *Pipeline) Resolve(ctx context.Context, user *models.User, projectName, tag string) (models.Project, models.Branch, error) {
	access, errAccess := p.gate.ResolveOptional(ctx, user, projectName)
	if errAccess != nil {
		return models.Project{}, models.Branch{}, errAccess
	}
	branch, errGet := p.ledger.Get(ctx, access.Project.ID, tag)
	if errGet != nil {
		return models.Project{}, models.Branch{}, errGet
	}
	return access.Project, branch, nil
}

// Open resolves the branch and opens its stored build for streaming.
func (p *Pipeline) Open(ctx context.Context, user *models.User, projectName, tag string) (Download, error) {
	project, branch, errResolve := p.Resolve(ctx, user, projectName, tag)
	if errResolve != nil {
		return Download{}, errResolve
	}
	if errLayout := p.checkLayout(project.Name); errLayout != nil {
		return Download{}, errLayout
	}
	object, errOpen := p.blobs.Open(project.Name, tag, branch.Filename)
	if errOpen != nil {
		log.WithError(errOpen).WithFields(log.Fields{"project": project.Name, "tag": tag}).Error("build file missing")
		return Download{}, apperr.Internal("build file unavailable", errOpen)
	}
	return Download{Project: project, Branch: branch, Object: object}, nil
}

func (p *Pipeline) checkLayout(projectName string) error {
	if p.legacyProject == "" || projectName == p.legacyProject {
		return nil
	}
	return apperr.BadRequest("legacy layout serves only " + p.legacyProject)
}

// trackedReader remembers read failures so they can be told apart from storage failures.
type trackedReader struct {
	r   io.Reader
	err error
}

func (t *trackedReader) Read(b []byte) (int, error) {
	n, err := t.r.Read(b)
	if err != nil && !errors.Is(err, io.EOF) {
		t.err = err
	}
	return n, err
}
