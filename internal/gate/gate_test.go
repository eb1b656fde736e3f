package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/distr-app/distr/internal/apperr"
	"github.com/distr-app/distr/internal/models"
	"github.com/distr-app/distr/internal/permissions"
)

type fakeProjects map[string]models.Project

func (f fakeProjects) FindByName(_ context.Context, name string) (models.Project, error) {
	project, ok := f[name]
	if !ok {
		return models.Project{}, apperr.NotFound("project not found")
	}
	return project, nil
}

type grantKey struct{ project, user uint64 }

type fakeGrants struct {
	roles map[grantKey]permissions.Role
	err   error
}

func (f fakeGrants) Find(_ context.Context, projectID, userID uint64) (permissions.Role, error) {
	if f.err != nil {
		return "", f.err
	}
	role, ok := f.roles[grantKey{projectID, userID}]
	if !ok {
		return "", apperr.NotFound("grant not found")
	}
	return role, nil
}

func newTestGate() *Gate {
	projects := fakeProjects{"DEMO": {ID: 1, Name: "DEMO"}}
	grants := fakeGrants{roles: map[grantKey]permissions.Role{
		{1, 10}: permissions.RoleOwner,
		{1, 20}: permissions.RoleUpload,
		{1, 30}: permissions.RoleView,
	}}
	return New(projects, grants)
}

func TestResolve(t *testing.T) {
	g := newTestGate()
	ctx := context.Background()

	if _, err := g.Resolve(ctx, nil, "DEMO"); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("expected unauthorized for anonymous, got %v", err)
	}
	if _, err := g.Resolve(ctx, &models.User{ID: 10}, "MISSING"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found for missing project, got %v", err)
	}
	if _, err := g.Resolve(ctx, &models.User{ID: 99}, "DEMO"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found without grant, got %v", err)
	}

	access, err := g.Resolve(ctx, &models.User{ID: 20}, "DEMO")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if access.Role != permissions.RoleUpload || access.Project.ID != 1 {
		t.Fatalf("unexpected access %+v", access)
	}
}

func TestRequire(t *testing.T) {
	g := newTestGate()
	ctx := context.Background()
	viewer := &models.User{ID: 30}
	uploader := &models.User{ID: 20}

	for _, c := range []permissions.Capability{permissions.CapUpload, permissions.CapTest, permissions.CapProtect, permissions.CapInvite, permissions.CapEdit, permissions.CapDelete} {
		if _, err := g.Require(ctx, viewer, "DEMO", c); apperr.KindOf(err) != apperr.KindForbidden {
			t.Fatalf("viewer %s: expected forbidden, got %v", c, err)
		}
	}
	for _, c := range []permissions.Capability{permissions.CapUpload, permissions.CapTest} {
		if _, err := g.Require(ctx, uploader, "DEMO", c); err != nil {
			t.Fatalf("uploader %s: %v", c, err)
		}
	}
	for _, c := range []permissions.Capability{permissions.CapProtect, permissions.CapInvite} {
		if _, err := g.Require(ctx, uploader, "DEMO", c); apperr.KindOf(err) != apperr.KindForbidden {
			t.Fatalf("uploader %s: expected forbidden, got %v", c, err)
		}
	}
	if _, err := g.Require(ctx, &models.User{ID: 99}, "DEMO", permissions.CapUpload); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("stranger upload: expected forbidden, got %v", err)
	}
	if _, err := g.Require(ctx, &models.User{ID: 99}, "DEMO", permissions.CapView); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("stranger view: expected not found, got %v", err)
	}
	if _, err := g.Require(ctx, nil, "DEMO", permissions.CapUpload); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("anonymous upload: expected unauthorized, got %v", err)
	}
	if _, err := g.Require(ctx, &models.User{ID: 10}, "DEMO", permissions.CapDelete); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
}

func TestResolveOptional(t *testing.T) {
	g := newTestGate()
	ctx := context.Background()

	anon, err := g.ResolveOptional(ctx, nil, "DEMO")
	if err != nil || anon.HasRole() {
		t.Fatalf("anonymous: expected project without role, got %+v %v", anon, err)
	}
	stranger, err := g.ResolveOptional(ctx, &models.User{ID: 99}, "DEMO")
	if err != nil || stranger.HasRole() {
		t.Fatalf("stranger: expected project without role, got %+v %v", stranger, err)
	}
	owner, err := g.ResolveOptional(ctx, &models.User{ID: 10}, "DEMO")
	if err != nil || owner.Role != permissions.RoleOwner {
		t.Fatalf("owner: unexpected %+v %v", owner, err)
	}
	if _, errMissing := g.ResolveOptional(ctx, nil, "MISSING"); apperr.KindOf(errMissing) != apperr.KindNotFound {
		t.Fatalf("expected not found for missing project, got %v", errMissing)
	}
}

func TestResolve_StorageFailurePropagates(t *testing.T) {
	boom := apperr.Internal("storage failure", errors.New("db down"))
	g := New(fakeProjects{"DEMO": {ID: 1, Name: "DEMO"}}, fakeGrants{err: boom})
	if _, err := g.Resolve(context.Background(), &models.User{ID: 1}, "DEMO"); apperr.KindOf(err) != apperr.KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}
