package conversion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const CommandKind = "command"

// Command runs an external conversion tool once per call. Args may contain
// the placeholders {source}, {reference} and {output}. The tool either
// writes to {output} or, with StdoutPath set, prints the path it wrote as
// the last line of stdout.
type Command struct {
	Args           []string `json:"args"`
	WorkDir        string   `json:"work_dir"`
	StdoutPath     bool     `json:"stdout_path"`
	TimeoutSeconds int      `json:"timeout_seconds"`
}

func parseCommand(params json.RawMessage) (Converter, error) {
	var c Command
	if len(params) > 0 {
		if err := json.Unmarshal(params, &c); err != nil {
			return nil, err
		}
	}
	if len(c.Args) == 0 {
		return nil, fmt.Errorf("args is required")
	}
	return &c, nil
}

func (c *Command) Name() string { return c.Args[0] }

func (c *Command) Convert(ctx context.Context, source, reference string) (string, error) {
	// Prepare output file
	outputFile, err := os.CreateTemp(c.WorkDir, "converted-*.wav")
	if err != nil {
		return "", err
	}
	outputFile.Close()
	output := outputFile.Name()

	if c.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	r := strings.NewReplacer("{source}", source, "{reference}", reference, "{output}", output)
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = r.Replace(a)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(output)
		return "", fmt.Errorf("%s error: %v, %s", args[0], err, strings.TrimSpace(stderr.String()))
	}

	if c.StdoutPath {
		os.Remove(output)
		lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
		output = strings.TrimSpace(lines[len(lines)-1])
		if output == "" {
			return "", fmt.Errorf("%s printed no output path", args[0])
		}
	}

	info, err := os.Stat(output)
	if err != nil {
		return "", fmt.Errorf("%s produced no output: %w", args[0], err)
	}
	if info.Size() == 0 {
		os.Remove(output)
		return "", fmt.Errorf("%s produced an empty file", args[0])
	}
	return output, nil
}
