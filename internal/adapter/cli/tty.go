package cli

import (
	"os"

	"golang.org/x/term"
)

// IsTTY checks if the given file descriptor is a terminal.
func IsTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// IsInteractive checks if stdin is a TTY. Returns false in CI,
// cron, or when input is piped.
func IsInteractive() bool {
	return IsTTY(os.Stdin.Fd())
}

// IsOutputTerminal checks if stdout is a TTY, indicating output is
// shown directly to a user rather than piped or redirected. Used to
// pick human-readable logging over JSON when no format is configured.
func IsOutputTerminal() bool {
	return IsTTY(os.Stdout.Fd())
}
