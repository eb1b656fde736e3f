package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/distr-app/distr/internal/apperr"
	"github.com/distr-app/distr/internal/db"
	"github.com/distr-app/distr/internal/models"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "distr-store.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func createUser(t *testing.T, conn *gorm.DB, authID string) models.User {
	t.Helper()
	user := models.User{FirstName: "Test", LastName: "User", AuthProvider: models.AuthProviderSite, AuthID: authID}
	if err := NewUserStore(conn).Create(context.Background(), &user); err != nil {
		t.Fatalf("create user %s: %v", authID, err)
	}
	return user
}

func createProject(t *testing.T, conn *gorm.DB, name string, owner models.User) models.Project {
	t.Helper()
	project, err := NewProjectStore(conn).Create(context.Background(), ProjectInput{
		Name:     name,
		Title:    name + " app",
		BundleID: "com.example." + name,
	}, owner.ID)
	if err != nil {
		t.Fatalf("create project %s: %v", name, err)
	}
	return project
}

func expectKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}

func TestValidateSegment(t *testing.T) {
	for _, ok := range []string{"REL-1", "build.ipa", "feature_x", "v1.2.3"} {
		if err := ValidateSegment("tag", ok); err != nil {
			t.Fatalf("expected %q to be valid: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "  ", "..", "a/b", `a\b`, "../etc", "x\x00y"} {
		expectKind(t, ValidateSegment("tag", bad), apperr.KindBadRequest)
	}
}
