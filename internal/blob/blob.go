// Package blob stores build binaries on the local filesystem, addressed by
// project, tag and filename.
package blob

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const tempPrefix = ".upload-"

// ErrTooLarge is returned when a write exceeds its byte limit.
var ErrTooLarge = errors.New("blob: size limit exceeded")

// Object is an opened blob ready for streaming.
type Object struct {
	io.ReadSeekCloser
	Size    int64
	ModTime time.Time
}

// Local is a filesystem blob store. In legacy layout the project segment is dropped.
type Local struct {
	root   string
	legacy bool
}

// NewLocal constructs a Local store rooted at dir.
func NewLocal(dir string, legacy bool) *Local {
	return &Local{root: filepath.Clean(dir), legacy: legacy}
}

// Dir returns the directory holding the tag's build.
func (l *Local) Dir(project, tag string) string {
	if l.legacy {
		return filepath.Join(l.root, tag)
	}
	return filepath.Join(l.root, project, tag)
}

// Path returns the location of a build file.
func (l *Local) Path(project, tag, filename string) string {
	return filepath.Join(l.Dir(project, tag), filename)
}

// Pending is an in-progress write. Exactly one of Commit or Abort must be called.
type Pending struct {
	file    *os.File
	dir     string
	limit   int64
	written int64
	closed  bool
}

// Create starts a write into a temporary file inside the tag directory.
// A limit of zero or less disables the size check.
func (l *Local) Create(project, tag string, limit int64) (*Pending, error) {
	dir := l.Dir(project, tag)
	if errMkdir := os.MkdirAll(dir, 0o755); errMkdir != nil {
		return nil, fmt.Errorf("blob: create dir: %w", errMkdir)
	}
	file, errCreate := os.OpenFile(filepath.Join(dir, tempPrefix+uuid.NewString()), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errCreate != nil {
		return nil, fmt.Errorf("blob: create temp file: %w", errCreate)
	}
	return &Pending{file: file, dir: dir, limit: limit}, nil
}

// Write implements io.Writer and enforces the size limit.
func (p *Pending) Write(b []byte) (int, error) {
	if p.limit > 0 && p.written+int64(len(b)) > p.limit {
		return 0, ErrTooLarge
	}
	n, err := p.file.Write(b)
	p.written += int64(n)
	return n, err
}

// Written returns the number of bytes written so far.
func (p *Pending) Written() int64 { return p.written }

// Commit syncs the temp file and renames it to filename, replacing any file of that name.
func (p *Pending) Commit(filename string) error {
	if p.closed {
		return errors.New("blob: pending write already finished")
	}
	p.closed = true
	tempPath := p.file.Name()
	if errSync := p.file.Sync(); errSync != nil {
		_ = p.file.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("blob: sync: %w", errSync)
	}
	if errClose := p.file.Close(); errClose != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("blob: close: %w", errClose)
	}
	if errRename := os.Rename(tempPath, filepath.Join(p.dir, filename)); errRename != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("blob: rename: %w", errRename)
	}
	return nil
}

// Abort closes and removes the temp file.
func (p *Pending) Abort() error {
	if p.closed {
		return nil
	}
	p.closed = true
	errClose := p.file.Close()
	errRemove := os.Remove(p.file.Name())
	if errRemove != nil && !errors.Is(errRemove, fs.ErrNotExist) {
		return fmt.Errorf("blob: remove temp file: %w", errRemove)
	}
	if errClose != nil {
		return fmt.Errorf("blob: close temp file: %w", errClose)
	}
	return nil
}

// Remove deletes a build file. A missing file is not an error.
func (l *Local) Remove(project, tag, filename string) error {
	if errRemove := os.Remove(l.Path(project, tag, filename)); errRemove != nil && !errors.Is(errRemove, fs.ErrNotExist) {
		return fmt.Errorf("blob: remove: %w", errRemove)
	}
	return nil
}

// RemoveTag deletes the tag directory and everything in it.
func (l *Local) RemoveTag(project, tag string) error {
	if errRemove := os.RemoveAll(l.Dir(project, tag)); errRemove != nil {
		return fmt.Errorf("blob: remove dir: %w", errRemove)
	}
	return nil
}

// Open opens a build file for reading.
func (l *Local) Open(project, tag, filename string) (Object, error) {
	file, errOpen := os.Open(l.Path(project, tag, filename))
	if errOpen != nil {
		return Object{}, fmt.Errorf("blob: open: %w", errOpen)
	}
	info, errStat := file.Stat()
	if errStat != nil {
		_ = file.Close()
		return Object{}, fmt.Errorf("blob: stat: %w", errStat)
	}
	return Object{ReadSeekCloser: file, Size: info.Size(), ModTime: info.ModTime()}, nil
}
