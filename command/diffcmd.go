package command

import (
	"bytes"
	"context"

	"github.com/pkg/diff"
)

func init() {
	register("diff", func() Command { return &diffCmd{} })
}

// diffCmd renders a unified diff between two sandbox files using
// pkg/diff, the same line-diff library the rest of the pack reaches for
// instead of hand-rolling an LCS implementation.
type diffCmd struct{ base }

func (c *diffCmd) RunContext(ctx context.Context, args ...string) error {
	if len(args) != 2 {
		return c.errf(2, "diff: usage: diff FILE1 FILE2")
	}
	aPath, bPath := c.resolve(args[0]), c.resolve(args[1])
	aData, err := c.fs.ReadFile(aPath)
	if err != nil {
		return c.errf(2, "diff: %s", err)
	}
	bData, err := c.fs.ReadFile(bPath)
	if err != nil {
		return c.errf(2, "diff: %s", err)
	}
	if bytes.Equal(aData, bData) {
		return nil
	}
	if err := diff.Text(args[0], args[1], bytes.NewReader(aData), bytes.NewReader(bData), c.stdout); err != nil {
		return c.errf(2, "diff: %s", err)
	}
	return &ExitError{Code: 1, Msg: ""}
}
