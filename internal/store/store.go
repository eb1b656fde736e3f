// Package store holds the gorm repositories backing projects, grants, branches and credentials.
package store

import (
	"errors"
	"strings"

	"github.com/distr-app/distr/internal/apperr"
	"github.com/distr-app/distr/internal/db"
	"gorm.io/gorm"
)

// translate maps storage errors onto the apperr taxonomy. Typed errors pass through.
func translate(err error, notFoundReason, conflictReason string) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(notFoundReason)
	case db.IsUniqueViolation(err):
		return apperr.Wrap(apperr.KindConflict, conflictReason, err)
	default:
		return apperr.Internal("storage failure", err)
	}
}

// ValidateSegment rejects names that cannot be used verbatim as one path segment.
func ValidateSegment(kind, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.BadRequest(kind + " is required")
	}
	if value == "." || value == ".." || strings.Contains(value, "..") ||
		strings.ContainsAny(value, "/\\\x00") {
		return apperr.BadRequest("invalid " + kind)
	}
	return nil
}
