package blob

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestLocal_CommitAndOpen(t *testing.T) {
	store := NewLocal(t.TempDir(), false)
	pending, err := store.Create("DEMO", "REL-1", 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, errCopy := io.Copy(pending, strings.NewReader("payload")); errCopy != nil {
		t.Fatalf("copy: %v", errCopy)
	}
	if pending.Written() != 7 {
		t.Fatalf("expected 7 bytes written, got %d", pending.Written())
	}
	if errCommit := pending.Commit("build.ipa"); errCommit != nil {
		t.Fatalf("commit: %v", errCommit)
	}

	if names := listDir(t, store.Dir("DEMO", "REL-1")); len(names) != 1 || names[0] != "build.ipa" {
		t.Fatalf("expected only the committed file, got %v", names)
	}

	obj, err := store.Open("DEMO", "REL-1", "build.ipa")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer obj.Close()
	data, _ := io.ReadAll(obj)
	if string(data) != "payload" || obj.Size != 7 {
		t.Fatalf("unexpected object %q size=%d", data, obj.Size)
	}
}

func TestLocal_AbortRemovesTempFile(t *testing.T) {
	store := NewLocal(t.TempDir(), false)
	pending, err := store.Create("DEMO", "REL-1", 4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, errCopy := io.Copy(pending, strings.NewReader("too long"))
	if !errors.Is(errCopy, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", errCopy)
	}
	if errAbort := pending.Abort(); errAbort != nil {
		t.Fatalf("abort: %v", errAbort)
	}
	if names := listDir(t, store.Dir("DEMO", "REL-1")); len(names) != 0 {
		t.Fatalf("expected no leftovers, got %v", names)
	}
	if errCommit := pending.Commit("late.ipa"); errCommit == nil {
		t.Fatalf("commit after abort must fail")
	}
}

func TestLocal_RemoveTagAndLegacyLayout(t *testing.T) {
	root := t.TempDir()
	store := NewLocal(root, true)
	if got := store.Path("DEMO", "REL-1", "build.ipa"); got != filepath.Join(root, "REL-1", "build.ipa") {
		t.Fatalf("unexpected legacy path %q", got)
	}
	pending, err := store.Create("DEMO", "REL-1", 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if errCommit := pending.Commit("build.ipa"); errCommit != nil {
		t.Fatalf("commit: %v", errCommit)
	}
	if errRemove := store.Remove("DEMO", "REL-1", "missing.ipa"); errRemove != nil {
		t.Fatalf("removing a missing file must succeed: %v", errRemove)
	}
	if errRemove := store.RemoveTag("DEMO", "REL-1"); errRemove != nil {
		t.Fatalf("remove tag: %v", errRemove)
	}
	if _, errStat := os.Stat(store.Dir("DEMO", "REL-1")); !os.IsNotExist(errStat) {
		t.Fatalf("expected tag dir removed, got %v", errStat)
	}
}
