package assemble

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// CDO drives the Climate Data Operators command-line tool. The command is
// looked up in the system path on every invocation.
type CDO struct {
	// Command overrides the executable name. Default: cdo.
	Command string
}

// NewCDO returns a Transformer backed by the given cdo executable.
func NewCDO(command string) *CDO {
	if command == "" {
		command = "cdo"
	}
	return &CDO{Command: command}
}

// MergeTime concatenates the inputs along the time axis.
func (c *CDO) MergeTime(ctx context.Context, inputs []string, output string) error {
	args := append([]string{"-O", "mergetime"}, inputs...)
	return c.run(ctx, append(args, output)...)
}

// MergeFields combines per-variable series into one multi-field artifact.
func (c *CDO) MergeFields(ctx context.Context, inputs []string, output string) error {
	args := append([]string{"-O", "merge"}, inputs...)
	return c.run(ctx, append(args, output)...)
}

// Crop writes the bounding-box subset of input to output.
func (c *CDO) Crop(ctx context.Context, box Box, input, output string) error {
	op := fmt.Sprintf("sellonlatbox,%g,%g,%g,%g", box.West, box.East, box.South, box.North)
	return c.run(ctx, "-O", op, input, output)
}

// run executes one cdo invocation, reporting its stderr on failure.
func (c *CDO) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, c.Command, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := bytes.TrimSpace(stderr.Bytes())
		if len(msg) > 0 {
			return fmt.Errorf("%s: %w: %s", c.Command, err, msg)
		}
		return fmt.Errorf("%s: %w", c.Command, err)
	}
	return nil
}
