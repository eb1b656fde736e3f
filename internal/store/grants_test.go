package store

import (
	"context"
	"testing"

	"github.com/distr-app/distr/internal/apperr"
	"github.com/distr-app/distr/internal/permissions"
)

func TestGrantStore_OneGrantPerPair(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	owner := createUser(t, conn, "owner@example.com")
	member := createUser(t, conn, "member@example.com")
	project := createProject(t, conn, "DEMO", owner)
	grants := NewGrantStore(conn)

	if _, err := grants.CreateInvite(ctx, project.ID, member.ID, permissions.RoleUpload); err != nil {
		t.Fatalf("invite: %v", err)
	}
	_, errDup := grants.CreateInvite(ctx, project.ID, member.ID, permissions.RoleView)
	expectKind(t, errDup, apperr.KindConflict)

	_, errOwner := grants.CreateInvite(ctx, project.ID, member.ID, permissions.RoleOwner)
	expectKind(t, errOwner, apperr.KindConflict)

	_, errRole := grants.CreateInvite(ctx, project.ID, member.ID, permissions.Role("admin"))
	expectKind(t, errRole, apperr.KindBadRequest)

	role, errFind := grants.Find(ctx, project.ID, member.ID)
	if errFind != nil {
		t.Fatalf("find: %v", errFind)
	}
	if role != permissions.RoleUpload {
		t.Fatalf("expected upload role, got %s", role)
	}
}

func TestGrantStore_RemoveMember(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	owner := createUser(t, conn, "owner@example.com")
	member := createUser(t, conn, "member@example.com")
	project := createProject(t, conn, "DEMO", owner)
	grants := NewGrantStore(conn)

	if _, err := grants.CreateInvite(ctx, project.ID, member.ID, permissions.RoleTest); err != nil {
		t.Fatalf("invite: %v", err)
	}

	expectKind(t, grants.RemoveMember(ctx, project.ID, owner.ID), apperr.KindForbidden)

	if err := grants.RemoveMember(ctx, project.ID, member.ID); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	_, errFind := grants.Find(ctx, project.ID, member.ID)
	expectKind(t, errFind, apperr.KindNotFound)

	expectKind(t, grants.RemoveMember(ctx, project.ID, member.ID), apperr.KindNotFound)
}

func TestGrantStore_DeleteKeepsLastOwner(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	owner := createUser(t, conn, "owner@example.com")
	viewer := createUser(t, conn, "viewer@example.com")
	project := createProject(t, conn, "DEMO", owner)
	grants := NewGrantStore(conn)

	expectKind(t, grants.Delete(ctx, project.ID, owner.ID), apperr.KindPreconditionFailed)
	expectKind(t, grants.Delete(ctx, project.ID, viewer.ID), apperr.KindNotFound)

	if _, err := grants.CreateInvite(ctx, project.ID, viewer.ID, permissions.RoleView); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if err := grants.Delete(ctx, project.ID, viewer.ID); err != nil {
		t.Fatalf("delete viewer grant: %v", err)
	}
}

func TestGrantStore_ListMembersAndProjects(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	owner := createUser(t, conn, "owner@example.com")
	member := createUser(t, conn, "member@example.com")
	demo := createProject(t, conn, "DEMO", owner)
	createProject(t, conn, "ALPHA", owner)
	grants := NewGrantStore(conn)

	if _, err := grants.CreateInvite(ctx, demo.ID, member.ID, permissions.RoleView); err != nil {
		t.Fatalf("invite: %v", err)
	}

	members, err := grants.ListMembers(ctx, demo.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[0].AuthID != "owner@example.com" || members[0].Role != permissions.RoleOwner {
		t.Fatalf("unexpected first member %+v", members[0])
	}
	if members[1].AuthID != "member@example.com" || members[1].Role != permissions.RoleView {
		t.Fatalf("unexpected second member %+v", members[1])
	}

	ownerProjects, err := grants.ListForUser(ctx, owner.ID)
	if err != nil {
		t.Fatalf("list owner projects: %v", err)
	}
	if len(ownerProjects) != 2 || ownerProjects[0].Project.Name != "ALPHA" || ownerProjects[1].Project.Name != "DEMO" {
		t.Fatalf("unexpected owner projects %+v", ownerProjects)
	}

	memberProjects, err := grants.ListForUser(ctx, member.ID)
	if err != nil {
		t.Fatalf("list member projects: %v", err)
	}
	if len(memberProjects) != 1 || memberProjects[0].Role != permissions.RoleView {
		t.Fatalf("unexpected member projects %+v", memberProjects)
	}
}
