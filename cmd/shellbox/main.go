// Command shellbox runs a shell script inside the sandbox: an
// in-memory filesystem, a bounded coreutils set, and resource limits on
// loop iterations, call depth, command count, and wall-clock time.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"github.com/arthur-zhang/shellbox/sandbox"
)

var (
	app = kingpin.New("shellbox", "Run a shell script inside a sandboxed evaluator")

	scriptFile = app.Arg("script", "Path to the script to run, or - for stdin").Required().String()
	scriptArgs = app.Arg("args", "Positional arguments passed to the script as $1, $2, ...").Strings()

	cwd         = app.Flag("cwd", "Working directory inside the sandbox filesystem").Default("/").String()
	timeout     = app.Flag("timeout", "Wall-clock timeout for the whole run").Default("30s").Duration()
	maxCommands = app.Flag("max-commands", "Maximum number of commands the script may execute").Default("2000000").Int()
	maxLoops    = app.Flag("max-loop-iterations", "Maximum aggregate loop iterations across the run").Default("1000000").Int()
	maxDepth    = app.Flag("max-call-depth", "Maximum function call nesting depth").Default("1000").Int()
	allowedCmds = app.Flag("allow", "Restrict execution to this comma-separated list of program names").String()
	allowedHosts = app.Flag("allow-host", "Allow curl to reach this host (repeatable)").Strings()
	env         = app.Flag("env", "Set an environment variable as NAME=VALUE (repeatable)").Strings()
	verbose     = app.Flag("verbose", "Enable debug-level evaluator tracing").Bool()
)

func main() { os.Exit(main1()) }

// main1 holds the actual program body so tests can invoke it in-process
// via testscript.RunMain instead of spawning a real subprocess.
func main1() int {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	src, err := readScript(*scriptFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "shellbox:", err)
		return 2
	}

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err == nil {
			logger = l
		}
	}
	defer logger.Sync()

	envMap := map[string]string{}
	for _, kv := range *env {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			envMap[parts[0]] = parts[1]
		}
	}

	var allowList []string
	if *allowedCmds != "" {
		allowList = strings.Split(*allowedCmds, ",")
	}

	opts := sandbox.Options{
		Env:               envMap,
		Args:              *scriptArgs,
		Cwd:               *cwd,
		Timeout:           *timeout,
		MaxCommands:       *maxCommands,
		MaxLoopIterations: *maxLoops,
		MaxCallDepth:      *maxDepth,
		AllowedPrograms:   allowList,
		AllowedHosts:      *allowedHosts,
		RatePerSecond:     2,
		Logger:            logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout+5*time.Second)
	defer cancel()

	result, err := sandbox.Run(ctx, src, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "shellbox:", err)
		return 2
	}

	os.Stdout.WriteString(result.Stdout)
	os.Stderr.WriteString(result.Stderr)
	if result.TimedOut {
		fmt.Fprintln(os.Stderr, "shellbox: script timed out")
		return 124
	}
	return result.ExitCode
}

func readScript(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}
