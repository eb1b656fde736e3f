package builds

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/distr-app/distr/internal/apperr"
	"github.com/distr-app/distr/internal/blob"
	"github.com/distr-app/distr/internal/db"
	"github.com/distr-app/distr/internal/gate"
	"github.com/distr-app/distr/internal/models"
	"github.com/distr-app/distr/internal/permissions"
	"github.com/distr-app/distr/internal/store"
	"github.com/distr-app/distr/internal/uploadlock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	pipeline *Pipeline
	branches *store.BranchStore
	ledger   *flakyLedger
	projects *store.ProjectStore
	grants   *store.GrantStore
	users    *store.UserStore
	dir      string
	owner    models.User
	uploader models.User
	project  models.Project
	notified chan models.Branch
}

type recordingNotifier chan models.Branch

func (n recordingNotifier) BuildUploaded(_ models.Project, branch models.Branch) { n <- branch }

// flakyLedger fails UpsertOnUpload on demand.
type flakyLedger struct {
	*store.BranchStore
	failUpsert bool
}

func (l *flakyLedger) UpsertOnUpload(ctx context.Context, projectID uint64, tag, filename string, size int64, description *string) (models.Branch, error) {
	if l.failUpsert {
		return models.Branch{}, errors.New("database is locked")
	}
	return l.BranchStore.UpsertOnUpload(ctx, projectID, tag, filename, size, description)
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newLayoutFixture(t, false, opts...)
}

func newLayoutFixture(t *testing.T, legacy bool, opts ...Option) *fixture {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "builds.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))

	ctx := context.Background()
	users := store.NewUserStore(conn)
	owner := models.User{FirstName: "Ann", LastName: "Owner", AuthProvider: models.AuthProviderSite, AuthID: "a@example.com"}
	uploader := models.User{FirstName: "Bob", LastName: "Uploader", AuthProvider: models.AuthProviderSite, AuthID: "b@example.com"}
	require.NoError(t, users.Create(ctx, &owner))
	require.NoError(t, users.Create(ctx, &uploader))

	projects := store.NewProjectStore(conn)
	grants := store.NewGrantStore(conn)
	project, err := projects.Create(ctx, store.ProjectInput{Name: "DEMO", Title: "Demo", BundleID: "com.example.demo"}, owner.ID)
	require.NoError(t, err)
	_, err = grants.CreateInvite(ctx, project.ID, uploader.ID, permissions.RoleUpload)
	require.NoError(t, err)

	notified := make(chan models.Branch, 16)
	dir := filepath.Join(t.TempDir(), "builds")
	branches := store.NewBranchStore(conn)
	ledger := &flakyLedger{BranchStore: branches}
	opts = append([]Option{WithNotifier(recordingNotifier(notified))}, opts...)
	pipeline := New(gate.New(projects, grants), ledger, blob.NewLocal(dir, legacy), uploadlock.NewManager(nil), opts...)
	return &fixture{
		pipeline: pipeline,
		branches: branches,
		ledger:   ledger,
		projects: projects,
		grants:   grants,
		users:    users,
		dir:      dir,
		owner:    owner,
		uploader: uploader,
		project:  project,
		notified: notified,
	}
}

func (f *fixture) upload(user models.User, tag, filename, body string) (models.Branch, error) {
	return f.uploadTo("DEMO", user, tag, filename, body)
}

func (f *fixture) uploadTo(project string, user models.User, tag, filename, body string) (models.Branch, error) {
	return f.pipeline.Upload(context.Background(), UploadRequest{
		User:     &user,
		Project:  project,
		Tag:      tag,
		Filename: filename,
		Body:     strings.NewReader(body),
	})
}

func listTagDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestUpload_DemoScenario(t *testing.T) {
	f := newFixture(t)

	first, err := f.upload(f.uploader, "REL-1", "build.ipa", "v1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.BuildNumber)
	assert.False(t, first.IsTested)
	assert.Equal(t, int64(2), first.Size)
	assert.Equal(t, 1, (<-f.notified).BuildNumber)

	second, err := f.upload(f.uploader, "REL-1", "build.ipa", "v2-longer")
	require.NoError(t, err)
	assert.Equal(t, 2, second.BuildNumber)
	assert.Equal(t, int64(9), second.Size)

	data, err := os.ReadFile(filepath.Join(f.dir, "DEMO", "REL-1", "build.ipa"))
	require.NoError(t, err)
	assert.Equal(t, "v2-longer", string(data))

	require.NoError(t, f.grants.RemoveMember(context.Background(), f.project.ID, f.uploader.ID))
	_, err = f.upload(f.uploader, "REL-1", "build.ipa", "v3")
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestUpload_ForbiddenForViewRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	viewer := models.User{FirstName: "Vic", LastName: "Viewer", AuthProvider: models.AuthProviderSite, AuthID: "v@example.com"}
	require.NoError(t, f.users.Create(ctx, &viewer))
	_, err := f.grants.CreateInvite(ctx, f.project.ID, viewer.ID, permissions.RoleView)
	require.NoError(t, err)

	_, err = f.upload(viewer, "REL-1", "build.ipa", "v1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.pipeline.Upload(ctx, UploadRequest{Project: "DEMO", Tag: "REL-1", Filename: "build.ipa", Body: strings.NewReader("x")})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestUpload_ResetsTestedAndKeepsProtection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.upload(f.owner, "REL-1", "build.ipa", "v1")
	require.NoError(t, err)
	yes := true
	_, err = f.branches.UpdateMetadata(ctx, f.project.ID, "REL-1", store.BranchPatch{IsTested: &yes, IsProtected: &yes}, permissions.RoleOwner)
	require.NoError(t, err)

	again, err := f.upload(f.owner, "REL-1", "build.ipa", "v2")
	require.NoError(t, err)
	assert.False(t, again.IsTested)
	assert.True(t, again.IsProtected)
	assert.Equal(t, 2, again.BuildNumber)
}

func TestUpload_ReplacesFileWithNewName(t *testing.T) {
	f := newFixture(t)

	_, err := f.upload(f.uploader, "REL-1", "old.ipa", "v1")
	require.NoError(t, err)
	branch, err := f.upload(f.uploader, "REL-1", "new.ipa", "v2")
	require.NoError(t, err)
	assert.Equal(t, "new.ipa", branch.Filename)
	assert.Equal(t, []string{"new.ipa"}, listTagDir(t, filepath.Join(f.dir, "DEMO", "REL-1")))
}

func TestUpload_TooLargeCleansUp(t *testing.T) {
	f := newFixture(t, WithMaxBytes(4))

	_, err := f.upload(f.uploader, "REL-1", "build.ipa", "way too large")
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
	assert.Empty(t, listTagDir(t, filepath.Join(f.dir, "DEMO", "REL-1")))

	_, errGet := f.branches.Get(context.Background(), f.project.ID, "REL-1")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(errGet))
}

type failingReader struct{ sent bool }

func (r *failingReader) Read(b []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(b, "partial"), nil
	}
	return 0, errors.New("connection reset")
}

func TestUpload_InterruptedStreamKeepsPreviousBuild(t *testing.T) {
	f := newFixture(t)
	_, err := f.upload(f.uploader, "REL-1", "build.ipa", "good")
	require.NoError(t, err)

	user := f.uploader
	_, err = f.pipeline.Upload(context.Background(), UploadRequest{
		User: &user, Project: "DEMO", Tag: "REL-1", Filename: "build.ipa", Body: &failingReader{},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
	assert.Equal(t, []string{"build.ipa"}, listTagDir(t, filepath.Join(f.dir, "DEMO", "REL-1")))

	branch, err := f.branches.Get(context.Background(), f.project.ID, "REL-1")
	require.NoError(t, err)
	assert.Equal(t, 1, branch.BuildNumber)
}

func TestUpload_RejectsUnsafeSegments(t *testing.T) {
	f := newFixture(t)
	for _, tc := range []struct{ tag, filename string }{
		{"", "build.ipa"},
		{"../x", "build.ipa"},
		{"REL-1", "a/b.ipa"},
		{"REL-1", ""},
	} {
		_, err := f.upload(f.uploader, tc.tag, tc.filename, "x")
		require.Error(t, err)
		assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err), "tag=%q filename=%q", tc.tag, tc.filename)
	}
}

func TestUpload_ConcurrentSameTag(t *testing.T) {
	f := newFixture(t)
	const uploads = 6

	var wg sync.WaitGroup
	errs := make(chan error, uploads)
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.upload(f.uploader, "REL-1", "build.ipa", "payload")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	branch, err := f.branches.Get(context.Background(), f.project.ID, "REL-1")
	require.NoError(t, err)
	assert.Equal(t, uploads, branch.BuildNumber)
	assert.Equal(t, []string{"build.ipa"}, listTagDir(t, filepath.Join(f.dir, "DEMO", "REL-1")))
}

func TestDelete_RemovesFilesAndHonoursProtection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.upload(f.uploader, "REL-1", "build.ipa", "v1")
	require.NoError(t, err)
	yes := true
	_, err = f.branches.UpdateMetadata(ctx, f.project.ID, "REL-1", store.BranchPatch{IsProtected: &yes}, permissions.RoleOwner)
	require.NoError(t, err)

	uploader := f.uploader
	err = f.pipeline.Delete(ctx, &uploader, "DEMO", "REL-1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	owner := f.owner
	require.NoError(t, f.pipeline.Delete(ctx, &owner, "DEMO", "REL-1"))
	_, err = os.Stat(filepath.Join(f.dir, "DEMO", "REL-1"))
	assert.True(t, os.IsNotExist(err))

	err = f.pipeline.Delete(ctx, &owner, "DEMO", "REL-1")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestOpen_StreamsWithoutGrant(t *testing.T) {
	f := newFixture(t)
	_, err := f.upload(f.uploader, "REL-1", "build.ipa", "binary")
	require.NoError(t, err)

	download, err := f.pipeline.Open(context.Background(), nil, "DEMO", "REL-1")
	require.NoError(t, err)
	defer download.Object.Close()
	assert.Equal(t, int64(6), download.Object.Size)
	data, err := io.ReadAll(download.Object)
	require.NoError(t, err)
	assert.Equal(t, "binary", string(data))

	_, err = f.pipeline.Open(context.Background(), nil, "DEMO", "REL-2")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	require.NoError(t, os.Remove(filepath.Join(f.dir, "DEMO", "REL-1", "build.ipa")))
	_, err = f.pipeline.Open(context.Background(), nil, "DEMO", "REL-1")
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestUpload_LedgerFailureKeepsCurrentBuildDownloadable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.upload(f.uploader, "REL-1", "old.ipa", "v1")
	require.NoError(t, err)

	f.ledger.failUpsert = true
	_, err = f.upload(f.uploader, "REL-1", "new.ipa", "v2")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	f.ledger.failUpsert = false

	branch, err := f.branches.Get(ctx, f.project.ID, "REL-1")
	require.NoError(t, err)
	assert.Equal(t, "old.ipa", branch.Filename)
	assert.Equal(t, 1, branch.BuildNumber)
	assert.ElementsMatch(t, []string{"new.ipa", "old.ipa"}, listTagDir(t, filepath.Join(f.dir, "DEMO", "REL-1")))

	download, err := f.pipeline.Open(ctx, nil, "DEMO", "REL-1")
	require.NoError(t, err)
	data, err := io.ReadAll(download.Object)
	download.Object.Close()
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))

	retried, err := f.upload(f.uploader, "REL-1", "new.ipa", "v2")
	require.NoError(t, err)
	assert.Equal(t, 2, retried.BuildNumber)
	assert.Equal(t, []string{"new.ipa"}, listTagDir(t, filepath.Join(f.dir, "DEMO", "REL-1")))
}

func TestLegacyLayout_ServesOnlyConfiguredProject(t *testing.T) {
	f := newLayoutFixture(t, true, WithLegacyProject("DEMO"))
	ctx := context.Background()
	_, err := f.projects.Create(ctx, store.ProjectInput{Name: "OTHER", Title: "Other", BundleID: "com.example.other"}, f.owner.ID)
	require.NoError(t, err)

	_, err = f.upload(f.owner, "REL-1", "build.ipa", "demo-bytes")
	require.NoError(t, err)

	_, err = f.uploadTo("OTHER", f.owner, "REL-1", "build.ipa", "other-bytes")
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
	assert.Equal(t, "legacy layout serves only DEMO", apperr.Reason(err))

	owner := f.owner
	err = f.pipeline.Delete(ctx, &owner, "OTHER", "REL-1")
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
	_, err = f.pipeline.Open(ctx, nil, "OTHER", "REL-1")
	assert.Error(t, err)

	data, err := os.ReadFile(filepath.Join(f.dir, "REL-1", "build.ipa"))
	require.NoError(t, err)
	assert.Equal(t, "demo-bytes", string(data))

	download, err := f.pipeline.Open(ctx, nil, "DEMO", "REL-1")
	require.NoError(t, err)
	defer download.Object.Close()
	assert.Equal(t, int64(len("demo-bytes")), download.Object.Size)
}
