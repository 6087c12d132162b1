// Package system provides a tool running whitelisted commands on the host.
package system

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/theapemachine/mcp-pod/core"
	"github.com/theapemachine/mcp-pod/pkg/schema"
)

// MaxOutput caps the bytes of command output returned to the client.
const MaxOutput = 64 * 1024

// New returns the system tool, restricted to the given command names.
func New(allowed []string) core.Tool {
	return core.Tool{
		Name:        "system",
		Description: "Run a whitelisted command on the host",
		Arguments: core.Arguments{
			"command": schema.String(
				schema.Enum(allowed...),
				schema.Description("The command to run, one of: "+strings.Join(allowed, ", ")),
			),
			"args": schema.Array(
				schema.String(),
				schema.Optional(),
				schema.Description("Arguments passed to the command"),
			),
		},
		Handler: handler,
	}
}

func handler(args map[string]any, tc core.Context) (*mcp.CallToolResult, error) {
	command := args["command"].(string)

	var argv []string
	if raw, ok := args["args"].([]any); ok {
		for _, arg := range raw {
			argv = append(argv, arg.(string))
		}
	}

	tc.Logger.Debug("running command", "command", command, "args", argv)

	out, err := exec.CommandContext(tc, command, argv...).CombinedOutput()
	out = truncate(out, MaxOutput)

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return mcp.NewToolResultError(fmt.Sprintf("exit status %d\n%s", exitErr.ExitCode(), out)), nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", command, err)
	}

	return mcp.NewToolResultText(string(out)), nil
}

// truncate cuts out to at most limit bytes, dropping a rune split by the cut.
func truncate(out []byte, limit int) []byte {
	if len(out) <= limit {
		return out
	}

	out = out[:limit]

	for i := 0; i < utf8.UTFMax-1 && len(out) > 0; i++ {
		if r, size := utf8.DecodeLastRune(out); r != utf8.RuneError || size != 1 {
			break
		}

		out = out[:len(out)-1]
	}

	return out
}
