// Package vfs provides the sandboxed filesystem the interpreter, the
// coreutils command set, and glob expansion all read and write through,
// so that a running script never touches the host filesystem directly.
package vfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// FileSystem is the sandbox's virtual filesystem: an afero backend plus
// a symlink table, since afero's in-memory and overlay backends have no
// native symlink support.
type FileSystem struct {
	fs   afero.Fs
	root string

	mu       sync.RWMutex
	symlinks map[string]string // absolute path -> target (relative or absolute)
}

// New wraps an existing afero.Fs, rooted at root (used for Realpath's
// cleanup of relative paths).
func New(backing afero.Fs, root string) *FileSystem {
	if root == "" {
		root = "/"
	}
	return &FileSystem{fs: backing, root: root, symlinks: make(map[string]string)}
}

// NewMemory builds a fully virtual, in-memory filesystem rooted at "/",
// the default sandbox mode: a script can never reach the host.
func NewMemory() *FileSystem {
	return New(afero.NewMemMapFs(), "/")
}

// NewOverlay builds a filesystem that reads through to hostDir read-only
// and copies files into an in-memory layer on first write, so a script
// can see a seeded directory tree without being able to mutate it.
func NewOverlay(hostDir string) *FileSystem {
	base := afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), hostDir))
	return New(afero.NewCopyOnWriteFs(base, afero.NewMemMapFs()), "/")
}

// Error is the POSIX-shaped error surfaced to builtins and coreutils:
// the errno-style code plus the operation and path, matching the
// "<cmd>: <path>: <message>" shape bash's own builtins print.
type Error struct {
	Op   string
	Path string
	Code string // "ENOENT", "EEXIST", "ENOTDIR", "EISDIR", "EACCES", "EINVAL", "ENOTEMPTY"
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Path, e.Message())
}

func (e *Error) Unwrap() error { return e.Err }

// Message renders the human-readable text for Code, the part bash shows
// after the path (e.g. "No such file or directory").
func (e *Error) Message() string {
	switch e.Code {
	case "ENOENT":
		return "No such file or directory"
	case "EEXIST":
		return "File exists"
	case "ENOTDIR":
		return "Not a directory"
	case "EISDIR":
		return "Is a directory"
	case "EACCES":
		return "Permission denied"
	case "ENOTEMPTY":
		return "Directory not empty"
	default:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "unknown error"
	}
}

func translate(op, p string, err error) error {
	if err == nil {
		return nil
	}
	code := "EIO"
	switch {
	case errors.Is(err, fs.ErrNotExist):
		code = "ENOENT"
	case errors.Is(err, fs.ErrExist):
		code = "EEXIST"
	case errors.Is(err, fs.ErrPermission):
		code = "EACCES"
	case strings.Contains(err.Error(), "not a directory"):
		code = "ENOTDIR"
	case strings.Contains(err.Error(), "is a directory"):
		code = "EISDIR"
	case strings.Contains(err.Error(), "not empty"):
		code = "ENOTEMPTY"
	}
	return &Error{Op: op, Path: p, Code: code, Err: err}
}

func (f *FileSystem) clean(p string) string {
	if !path.IsAbs(p) {
		p = path.Join(f.root, p)
	}
	return path.Clean(p)
}

// Realpath resolves p against the root, following the symlink table
// (at most 32 hops, to catch cycles the way real resolvers cap depth).
func (f *FileSystem) Realpath(p string) (string, error) {
	abs := f.clean(p)
	f.mu.RLock()
	defer f.mu.RUnlock()
	for i := 0; i < 32; i++ {
		target, ok := f.symlinks[abs]
		if !ok {
			return abs, nil
		}
		if path.IsAbs(target) {
			abs = path.Clean(target)
		} else {
			abs = path.Clean(path.Join(path.Dir(abs), target))
		}
	}
	return "", &Error{Op: "realpath", Path: p, Code: "EINVAL", Err: errors.New("too many levels of symbolic links")}
}

func (f *FileSystem) Open(p string) (afero.File, error) {
	rp, err := f.Realpath(p)
	if err != nil {
		return nil, err
	}
	file, err := f.fs.Open(rp)
	return file, translate("open", p, err)
}

func (f *FileSystem) OpenFile(p string, flag int, perm os.FileMode) (afero.File, error) {
	rp, err := f.Realpath(p)
	if err != nil {
		return nil, err
	}
	file, err := f.fs.OpenFile(rp, flag, perm)
	return file, translate("open", p, err)
}

func (f *FileSystem) Create(p string) (afero.File, error) {
	return f.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
}

func (f *FileSystem) Mkdir(p string, perm os.FileMode) error {
	rp, err := f.Realpath(p)
	if err != nil {
		return err
	}
	return translate("mkdir", p, f.fs.Mkdir(rp, perm))
}

func (f *FileSystem) MkdirAll(p string, perm os.FileMode) error {
	rp := f.clean(p)
	return translate("mkdir", p, f.fs.MkdirAll(rp, perm))
}

func (f *FileSystem) Remove(p string) error {
	rp, err := f.Realpath(p)
	if err != nil {
		return err
	}
	f.mu.Lock()
	delete(f.symlinks, rp)
	f.mu.Unlock()
	return translate("remove", p, f.fs.Remove(rp))
}

func (f *FileSystem) RemoveAll(p string) error {
	rp := f.clean(p)
	f.mu.Lock()
	for k := range f.symlinks {
		if k == rp || strings.HasPrefix(k, rp+"/") {
			delete(f.symlinks, k)
		}
	}
	f.mu.Unlock()
	return translate("remove", p, f.fs.RemoveAll(rp))
}

func (f *FileSystem) Rename(oldPath, newPath string) error {
	op, err := f.Realpath(oldPath)
	if err != nil {
		return err
	}
	np := f.clean(newPath)
	return translate("rename", oldPath, f.fs.Rename(op, np))
}

func (f *FileSystem) Stat(p string) (os.FileInfo, error) {
	rp, err := f.Realpath(p)
	if err != nil {
		return nil, err
	}
	fi, err := f.fs.Stat(rp)
	return fi, translate("stat", p, err)
}

// Lstat reports on the symlink itself rather than following it, the one
// place a caller needs to see the symlink table instead of Realpath.
func (f *FileSystem) Lstat(p string) (os.FileInfo, error) {
	abs := f.clean(p)
	f.mu.RLock()
	_, isLink := f.symlinks[abs]
	f.mu.RUnlock()
	if isLink {
		return &symlinkInfo{name: path.Base(abs)}, nil
	}
	return f.Stat(p)
}

type symlinkInfo struct{ name string }

func (s *symlinkInfo) Name() string         { return s.name }
func (s *symlinkInfo) Size() int64          { return 0 }
func (s *symlinkInfo) Mode() os.FileMode    { return os.ModeSymlink | 0o777 }
func (s *symlinkInfo) ModTime() time.Time   { return time.Time{} }
func (s *symlinkInfo) IsDir() bool          { return false }
func (s *symlinkInfo) Sys() any             { return nil }

func (f *FileSystem) Symlink(target, linkPath string) error {
	abs := f.clean(linkPath)
	if _, err := f.fs.Stat(abs); err == nil {
		return &Error{Op: "symlink", Path: linkPath, Code: "EEXIST"}
	}
	f.mu.Lock()
	f.symlinks[abs] = target
	f.mu.Unlock()
	return nil
}

func (f *FileSystem) Readlink(p string) (string, error) {
	abs := f.clean(p)
	f.mu.RLock()
	target, ok := f.symlinks[abs]
	f.mu.RUnlock()
	if !ok {
		return "", &Error{Op: "readlink", Path: p, Code: "EINVAL", Err: errors.New("not a symbolic link")}
	}
	return target, nil
}

func (f *FileSystem) ReadDir(p string) ([]os.FileInfo, error) {
	rp, err := f.Realpath(p)
	if err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(f.fs, rp)
	return infos, translate("opendir", p, err)
}

func (f *FileSystem) ReadFile(p string) ([]byte, error) {
	file, err := f.Open(p)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func (f *FileSystem) WriteFile(p string, data []byte, perm os.FileMode) error {
	rp := f.clean(p)
	return translate("write", p, afero.WriteFile(f.fs, rp, data, perm))
}

// AllPaths implements expand.FilePaths: every path in the tree, used as
// the candidate set for pathname expansion.
func (f *FileSystem) AllPaths() ([]string, error) {
	var out []string
	err := afero.Walk(f.fs, "/", func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
