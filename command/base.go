package command

import (
	"fmt"
	"io"

	"github.com/arthur-zhang/shellbox/vfs"
)

// base gives every coreutil its IO/environment plumbing so each command
// type only has to embed it and implement the part of the Command
// interface specific to what it does.
type base struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	dir    string
	lookup func(string) (string, bool)
	fs     *vfs.FileSystem
}

func (b *base) SetIO(stdin io.Reader, stdout, stderr io.Writer) {
	b.stdin, b.stdout, b.stderr = stdin, stdout, stderr
}

func (b *base) SetWorkingDir(dir string) { b.dir = dir }

func (b *base) SetLookupEnv(f func(string) (string, bool)) { b.lookup = f }

func (b *base) SetFS(fs *vfs.FileSystem) { b.fs = fs }

// resolve joins a possibly-relative path against the command's working
// directory, the convention every file-touching coreutil below uses.
func (b *base) resolve(p string) string {
	if p == "" {
		return b.dir
	}
	if p[0] == '/' {
		return p
	}
	if b.dir == "" || b.dir == "/" {
		return "/" + p
	}
	return b.dir + "/" + p
}

func (b *base) errf(code int, format string, args ...any) error {
	return &ExitError{Code: code, Msg: fmt.Sprintf(format, args...)}
}
