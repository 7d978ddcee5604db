package command

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/arthur-zhang/shellbox/vfs"
)

func init() {
	register("cat", func() Command { return &catCmd{} })
	register("ls", func() Command { return &lsCmd{} })
	register("mkdir", func() Command { return &mkdirCmd{} })
	register("touch", func() Command { return &touchCmd{} })
	register("cp", func() Command { return &cpCmd{} })
	register("mv", func() Command { return &mvCmd{} })
	register("rm", func() Command { return &rmCmd{} })
	register("ln", func() Command { return &lnCmd{} })
	register("pwd", func() Command { return &pwdCmd{} })
	register("basename", func() Command { return &basenameCmd{} })
	register("dirname", func() Command { return &dirnameCmd{} })
}

type catCmd struct{ base }

func (c *catCmd) RunContext(ctx context.Context, args ...string) error {
	if len(args) == 0 {
		_, err := io.Copy(c.stdout, c.stdin)
		return err
	}
	for _, a := range args {
		if a == "-" {
			io.Copy(c.stdout, c.stdin)
			continue
		}
		f, err := c.fs.Open(c.resolve(a))
		if err != nil {
			fmt.Fprintf(c.stderr, "cat: %s\n", err)
			return c.errf(1, "cat: %s", err)
		}
		_, err = io.Copy(c.stdout, f)
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

type lsCmd struct{ base }

func (c *lsCmd) RunContext(ctx context.Context, args ...string) error {
	long := false
	var targets []string
	for _, a := range args {
		if strings.HasPrefix(a, "-") && a != "-" {
			if strings.ContainsRune(a, 'l') {
				long = true
			}
			continue
		}
		targets = append(targets, a)
	}
	if len(targets) == 0 {
		targets = []string{"."}
	}
	status := 0
	for i, t := range targets {
		p := c.resolve(t)
		entries, err := c.fs.ReadDir(p)
		if err != nil {
			fmt.Fprintf(c.stderr, "ls: %s\n", err)
			status = 1
			continue
		}
		if len(targets) > 1 {
			if i > 0 {
				fmt.Fprintln(c.stdout)
			}
			fmt.Fprintf(c.stdout, "%s:\n", t)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, e := range entries {
			if long {
				mode := "-"
				if e.IsDir() {
					mode = "d"
				}
				fmt.Fprintf(c.stdout, "%s%s %8d %s\n", mode, e.Mode().Perm(), e.Size(), e.Name())
			} else {
				fmt.Fprintln(c.stdout, e.Name())
			}
		}
	}
	if status != 0 {
		return &ExitError{Code: status, Msg: "ls: error"}
	}
	return nil
}

type mkdirCmd struct{ base }

func (c *mkdirCmd) RunContext(ctx context.Context, args ...string) error {
	parents := false
	var targets []string
	for _, a := range args {
		if a == "-p" {
			parents = true
			continue
		}
		targets = append(targets, a)
	}
	for _, t := range targets {
		p := c.resolve(t)
		var err error
		if parents {
			err = c.fs.MkdirAll(p, 0o755)
		} else {
			err = c.fs.Mkdir(p, 0o755)
		}
		if err != nil {
			fmt.Fprintf(c.stderr, "mkdir: %s\n", err)
			return c.errf(1, "mkdir: %s", err)
		}
	}
	return nil
}

type touchCmd struct{ base }

func (c *touchCmd) RunContext(ctx context.Context, args ...string) error {
	for _, a := range args {
		p := c.resolve(a)
		if _, err := c.fs.Stat(p); err != nil {
			f, err := c.fs.Create(p)
			if err != nil {
				fmt.Fprintf(c.stderr, "touch: %s\n", err)
				return c.errf(1, "touch: %s", err)
			}
			f.Close()
		}
	}
	return nil
}

type cpCmd struct{ base }

func (c *cpCmd) RunContext(ctx context.Context, args ...string) error {
	recursive := false
	var rest []string
	for _, a := range args {
		if a == "-r" || a == "-R" || a == "-a" {
			recursive = true
			continue
		}
		rest = append(rest, a)
	}
	if len(rest) < 2 {
		return c.errf(1, "cp: missing destination")
	}
	dst := c.resolve(rest[len(rest)-1])
	srcs := rest[:len(rest)-1]
	for _, s := range srcs {
		sp := c.resolve(s)
		info, err := c.fs.Stat(sp)
		if err != nil {
			fmt.Fprintf(c.stderr, "cp: %s\n", err)
			return c.errf(1, "cp: %s", err)
		}
		d := dst
		if di, err := c.fs.Stat(dst); err == nil && di.IsDir() {
			d = path.Join(dst, path.Base(sp))
		}
		if info.IsDir() {
			if !recursive {
				return c.errf(1, "cp: -r not specified; omitting directory '%s'", s)
			}
			if err := copyTree(c.fs, sp, d); err != nil {
				return c.errf(1, "cp: %s", err)
			}
			continue
		}
		if err := copyFile(c.fs, sp, d); err != nil {
			return c.errf(1, "cp: %s", err)
		}
	}
	return nil
}

func copyFile(fs *vfs.FileSystem, src, dst string) error {
	data, err := fs.ReadFile(src)
	if err != nil {
		return err
	}
	return fs.WriteFile(dst, data, 0o644)
}

func copyTree(fs *vfs.FileSystem, src, dst string) error {
	if err := fs.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := fs.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		sp := path.Join(src, e.Name())
		dp := path.Join(dst, e.Name())
		if e.IsDir() {
			if err := copyTree(fs, sp, dp); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(fs, sp, dp); err != nil {
			return err
		}
	}
	return nil
}

type mvCmd struct{ base }

func (c *mvCmd) RunContext(ctx context.Context, args ...string) error {
	if len(args) < 2 {
		return c.errf(1, "mv: missing destination")
	}
	dst := c.resolve(args[len(args)-1])
	for _, s := range args[:len(args)-1] {
		sp := c.resolve(s)
		d := dst
		if di, err := c.fs.Stat(dst); err == nil && di.IsDir() {
			d = path.Join(dst, path.Base(sp))
		}
		if err := c.fs.Rename(sp, d); err != nil {
			fmt.Fprintf(c.stderr, "mv: %s\n", err)
			return c.errf(1, "mv: %s", err)
		}
	}
	return nil
}

type rmCmd struct{ base }

func (c *rmCmd) RunContext(ctx context.Context, args ...string) error {
	recursive, force := false, false
	var targets []string
	for _, a := range args {
		switch {
		case a == "-r" || a == "-R":
			recursive = true
		case a == "-f":
			force = true
		case a == "-rf" || a == "-fr":
			recursive, force = true, true
		default:
			targets = append(targets, a)
		}
	}
	for _, t := range targets {
		p := c.resolve(t)
		info, err := c.fs.Stat(p)
		if err != nil {
			if force {
				continue
			}
			fmt.Fprintf(c.stderr, "rm: %s\n", err)
			return c.errf(1, "rm: %s", err)
		}
		if info.IsDir() && !recursive {
			return c.errf(1, "rm: %s: is a directory", t)
		}
		var rmErr error
		if info.IsDir() {
			rmErr = c.fs.RemoveAll(p)
		} else {
			rmErr = c.fs.Remove(p)
		}
		if rmErr != nil && !force {
			fmt.Fprintf(c.stderr, "rm: %s\n", rmErr)
			return c.errf(1, "rm: %s", rmErr)
		}
	}
	return nil
}

type lnCmd struct{ base }

func (c *lnCmd) RunContext(ctx context.Context, args ...string) error {
	symbolic := false
	var rest []string
	for _, a := range args {
		if a == "-s" {
			symbolic = true
			continue
		}
		rest = append(rest, a)
	}
	if len(rest) != 2 {
		return c.errf(1, "ln: usage: ln [-s] target linkname")
	}
	if !symbolic {
		return c.errf(1, "ln: hard links are not supported in the sandbox filesystem")
	}
	if err := c.fs.Symlink(rest[0], c.resolve(rest[1])); err != nil {
		fmt.Fprintf(c.stderr, "ln: %s\n", err)
		return c.errf(1, "ln: %s", err)
	}
	return nil
}

type pwdCmd struct{ base }

func (c *pwdCmd) RunContext(ctx context.Context, args ...string) error {
	fmt.Fprintln(c.stdout, c.dir)
	return nil
}

type basenameCmd struct{ base }

func (c *basenameCmd) RunContext(ctx context.Context, args ...string) error {
	if len(args) == 0 {
		return c.errf(1, "basename: missing operand")
	}
	b := path.Base(args[0])
	if len(args) > 1 {
		b = strings.TrimSuffix(b, args[1])
	}
	fmt.Fprintln(c.stdout, b)
	return nil
}

type dirnameCmd struct{ base }

func (c *dirnameCmd) RunContext(ctx context.Context, args ...string) error {
	if len(args) == 0 {
		return c.errf(1, "dirname: missing operand")
	}
	fmt.Fprintln(c.stdout, path.Dir(args[0]))
	return nil
}
