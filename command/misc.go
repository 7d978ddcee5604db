package command

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

func init() {
	register("echo", func() Command { return &echoCmd{} })
	register("printf", func() Command { return &printfCmd{} })
	register("seq", func() Command { return &seqCmd{} })
	register("sleep", func() Command { return &sleepCmd{} })
	register("yes", func() Command { return &yesCmd{} })
	register("tee", func() Command { return &teeCmd{} })
	register("env", func() Command { return &envCmd{} })
	register("date", func() Command { return &dateCmd{} })
	register("find", func() Command { return &findCmd{} })
	register("xargs", func() Command { return &xargsCmd{} })
	register("sed", func() Command { return &sedCmd{} })
	register("timeout", func() Command { return &timeoutCmd{} })
}

type echoCmd struct{ base }

func (c *echoCmd) RunContext(ctx context.Context, args ...string) error {
	noNewline := false
	if len(args) > 0 && args[0] == "-n" {
		noNewline = true
		args = args[1:]
	}
	fmt.Fprint(c.stdout, strings.Join(args, " "))
	if !noNewline {
		fmt.Fprintln(c.stdout)
	}
	return nil
}

type printfCmd struct{ base }

func (c *printfCmd) RunContext(ctx context.Context, args ...string) error {
	if len(args) == 0 {
		return nil
	}
	format, rest := args[0], args[1:]
	out := expandPrintfFormat(format, rest)
	fmt.Fprint(c.stdout, out)
	return nil
}

// expandPrintfFormat supports the small subset of printf(1) conversions
// (%s %d, %b printed like %s with no escape processing, and a literal
// \n\t\\) the coreutils use, without reaching
// for the full fmt verb surface which accepts Go-specific verbs.
func expandPrintfFormat(format string, args []string) string {
	var sb strings.Builder
	ai := 0
	next := func() string {
		if ai < len(args) {
			v := args[ai]
			ai++
			return v
		}
		return ""
	}
	runes := []rune(format)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '\\':
			if i+1 < len(runes) {
				i++
				switch runes[i] {
				case 'n':
					sb.WriteByte('\n')
				case 't':
					sb.WriteByte('\t')
				default:
					sb.WriteRune(runes[i])
				}
			}
		case '%':
			if i+1 < len(runes) {
				i++
				switch runes[i] {
				case 's', 'b':
					sb.WriteString(next())
				case 'd':
					v, _ := strconv.Atoi(next())
					sb.WriteString(strconv.Itoa(v))
				case '%':
					sb.WriteByte('%')
				default:
					sb.WriteByte('%')
					sb.WriteRune(runes[i])
				}
			}
		default:
			sb.WriteRune(runes[i])
		}
	}
	return sb.String()
}

type seqCmd struct{ base }

func (c *seqCmd) RunContext(ctx context.Context, args ...string) error {
	var first, step, last int64 = 1, 1, 0
	switch len(args) {
	case 1:
		last, _ = strconv.ParseInt(args[0], 10, 64)
	case 2:
		first, _ = strconv.ParseInt(args[0], 10, 64)
		last, _ = strconv.ParseInt(args[1], 10, 64)
	case 3:
		first, _ = strconv.ParseInt(args[0], 10, 64)
		step, _ = strconv.ParseInt(args[1], 10, 64)
		last, _ = strconv.ParseInt(args[2], 10, 64)
	default:
		return c.errf(1, "seq: usage: seq [first [step]] last")
	}
	if step == 0 {
		return c.errf(1, "seq: step cannot be zero")
	}
	if step > 0 {
		for v := first; v <= last; v += step {
			fmt.Fprintln(c.stdout, v)
		}
	} else {
		for v := first; v >= last; v += step {
			fmt.Fprintln(c.stdout, v)
		}
	}
	return nil
}

type sleepCmd struct{ base }

func (c *sleepCmd) RunContext(ctx context.Context, args ...string) error {
	if len(args) == 0 {
		return nil
	}
	d, err := time.ParseDuration(args[0])
	if err != nil {
		if secs, err2 := strconv.ParseFloat(args[0], 64); err2 == nil {
			d = time.Duration(secs * float64(time.Second))
		}
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

type yesCmd struct{ base }

func (c *yesCmd) RunContext(ctx context.Context, args ...string) error {
	line := "y"
	if len(args) > 0 {
		line = strings.Join(args, " ")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if _, err := fmt.Fprintln(c.stdout, line); err != nil {
			return nil
		}
	}
}

type teeCmd struct{ base }

func (c *teeCmd) RunContext(ctx context.Context, args ...string) error {
	append_ := false
	var files []string
	for _, a := range args {
		if a == "-a" {
			append_ = true
			continue
		}
		files = append(files, a)
	}
	var writers []io.Writer
	writers = append(writers, c.stdout)
	var closers []io.Closer
	for _, f := range files {
		var w io.Writer
		if append_ {
			fh, err := c.fs.OpenFile(c.resolve(f), os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
			if err != nil {
				return c.errf(1, "tee: %s: %s", f, err)
			}
			w, closers = fh, append(closers, fh)
		} else {
			fh, err := c.fs.Create(c.resolve(f))
			if err != nil {
				return c.errf(1, "tee: %s: %s", f, err)
			}
			w, closers = fh, append(closers, fh)
		}
		writers = append(writers, w)
	}
	defer func() {
		for _, cl := range closers {
			cl.Close()
		}
	}()
	_, err := io.Copy(io.MultiWriter(writers...), c.stdin)
	return err
}

// envCmd only supports "env NAME=VALUE... cmd args..." form, since the
// sandbox only exposes a lookup function rather than a full variable
// table to enumerate for a bare "env".
type envCmd struct{ base }

func (c *envCmd) RunContext(ctx context.Context, args ...string) error {
	i := 0
	for i < len(args) && strings.Contains(args[i], "=") {
		i++
	}
	if i >= len(args) {
		return nil
	}
	ctor, ok := Lookup(args[i])
	if !ok {
		return c.errf(127, "env: %s: command not found", args[i])
	}
	sub := ctor()
	sub.SetIO(c.stdin, c.stdout, c.stderr)
	sub.SetWorkingDir(c.dir)
	sub.SetLookupEnv(c.lookup)
	sub.SetFS(c.fs)
	return sub.RunContext(ctx, args[i+1:]...)
}

type dateCmd struct{ base }

func (c *dateCmd) RunContext(ctx context.Context, args ...string) error {
	format := "+%Y-%m-%d %H:%M:%S"
	for _, a := range args {
		if strings.HasPrefix(a, "+") {
			format = a
		}
	}
	layout := strings.NewReplacer(
		"%Y", "2006", "%m", "01", "%d", "02",
		"%H", "15", "%M", "04", "%S", "05",
	).Replace(strings.TrimPrefix(format, "+"))
	fmt.Fprintln(c.stdout, time.Now().UTC().Format(layout))
	return nil
}

type findCmd struct{ base }

func (c *findCmd) RunContext(ctx context.Context, args ...string) error {
	root := "."
	namePattern := ""
	typeFilter := ""
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-name":
			if i+1 < len(args) {
				namePattern = args[i+1]
				i++
			}
		case "-type":
			if i+1 < len(args) {
				typeFilter = args[i+1]
				i++
			}
		default:
			if !strings.HasPrefix(args[i], "-") {
				root = args[i]
			}
		}
	}
	var results []string
	var walk func(p string) error
	walk = func(p string) error {
		info, err := c.fs.Stat(p)
		if err != nil {
			return err
		}
		nameOK := namePattern == ""
		if !nameOK {
			nameOK, _ = path.Match(namePattern, path.Base(p))
		}
		typeOK := typeFilter == "" ||
			(typeFilter == "d" && info.IsDir()) ||
			(typeFilter == "f" && !info.IsDir())
		if nameOK && typeOK {
			results = append(results, p)
		}
		if info.IsDir() {
			entries, err := c.fs.ReadDir(p)
			if err != nil {
				return nil
			}
			for _, e := range entries {
				if err := walk(path.Join(p, e.Name())); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(c.resolve(root)); err != nil {
		return c.errf(1, "find: %s", err)
	}
	sort.Strings(results)
	for _, r := range results {
		fmt.Fprintln(c.stdout, r)
	}
	return nil
}

type xargsCmd struct{ base }

func (c *xargsCmd) RunContext(ctx context.Context, args ...string) error {
	if len(args) == 0 {
		return c.errf(1, "xargs: missing command")
	}
	var extra []string
	sc := bufio.NewScanner(c.stdin)
	for sc.Scan() {
		extra = append(extra, strings.Fields(sc.Text())...)
	}
	fullArgs := append(append([]string{}, args[1:]...), extra...)
	ctor, ok := Lookup(args[0])
	if !ok {
		return c.errf(127, "xargs: %s: command not found", args[0])
	}
	sub := ctor()
	sub.SetIO(c.stdin, c.stdout, c.stderr)
	sub.SetWorkingDir(c.dir)
	sub.SetLookupEnv(c.lookup)
	sub.SetFS(c.fs)
	return sub.RunContext(ctx, fullArgs...)
}

// sedCmd supports the one transformation shell scripts reach for most:
// "s/pattern/replacement/[g]", line by line.
type sedCmd struct{ base }

var sedCmdRe = regexp.MustCompile(`^s(.)(.*)$`)

func (c *sedCmd) RunContext(ctx context.Context, args ...string) error {
	if len(args) == 0 {
		return c.errf(1, "sed: missing script")
	}
	script := args[0]
	files := args[1:]
	m := sedCmdRe.FindStringSubmatch(script)
	if m == nil {
		return c.errf(1, "sed: unsupported script %q (only s/pat/repl/[g] is)", script)
	}
	sep := m[1]
	parts := strings.SplitN(m[2], sep, 3)
	if len(parts) < 2 {
		return c.errf(1, "sed: malformed script %q", script)
	}
	pattern, repl := parts[0], parts[1]
	global := len(parts) == 3 && strings.Contains(parts[2], "g")
	re, err := regexp.Compile(pattern)
	if err != nil {
		return c.errf(1, "sed: %s", err)
	}
	return c.readArgsOrStdin(files, func(r io.Reader) error {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			line := sc.Text()
			if global {
				line = re.ReplaceAllString(line, repl)
			} else {
				done := false
				line = re.ReplaceAllStringFunc(line, func(s string) string {
					if done {
						return s
					}
					done = true
					return re.ReplaceAllString(s, repl)
				})
			}
			fmt.Fprintln(c.stdout, line)
		}
		return nil
	})
}

type timeoutCmd struct{ base }

func (c *timeoutCmd) RunContext(ctx context.Context, args ...string) error {
	if len(args) < 2 {
		return c.errf(1, "timeout: usage: timeout DURATION COMMAND [ARGS...]")
	}
	d, err := time.ParseDuration(args[0])
	if err != nil {
		if secs, err2 := strconv.ParseFloat(args[0], 64); err2 == nil {
			d = time.Duration(secs * float64(time.Second))
		}
	}
	ctor, ok := Lookup(args[1])
	if !ok {
		return c.errf(127, "timeout: %s: command not found", args[1])
	}
	sub := ctor()
	sub.SetIO(c.stdin, c.stdout, c.stderr)
	sub.SetWorkingDir(c.dir)
	sub.SetLookupEnv(c.lookup)
	sub.SetFS(c.fs)

	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sub.RunContext(tctx, args[2:]...) }()
	select {
	case err := <-done:
		return err
	case <-tctx.Done():
		return &ExitError{Code: 124, Msg: "timeout: command timed out"}
	}
}
