package cli

import (
	"io"
	"slices"
	"strings"

	"github.com/ladzaretti/vaultagent/input"
)

// confirm prompts the user with a yes/no question and reports whether they
// answered affirmatively. Any response other than "y"/"yes"
// (case-insensitive) counts as a decline.
func confirm(out io.Writer, in io.Reader, prompt string, a ...any) (bool, error) {
	response, err := input.PromptRead(out, in, prompt, a...)
	if err != nil {
		return false, err
	}

	normalized := strings.ToLower(strings.TrimSpace(response))

	return slices.Contains([]string{"y", "yes"}, normalized), nil
}
