package assess

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
)

// CommandEditor runs an editor command such as "nvim" or "code --wait"
// attached to the terminal.
type CommandEditor struct {
	Command string
}

// Edit opens path and waits for the editor to exit.
func (e CommandEditor) Edit(ctx context.Context, path string) error {
	fields := strings.Fields(e.Command)
	if len(fields) == 0 {
		return errors.New("no editor configured")
	}
	cmd := exec.CommandContext(ctx, fields[0], append(fields[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
