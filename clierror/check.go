package clierror

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ladzaretti/vaultagent/vaulterrors"
)

const (
	DefaultErrorExitCode = 1
)

var (
	// errHandler is the function used to handle cli errors.
	errHandler = FatalErrHandler

	// errWriter is used to output cli error messages.
	errWriter io.Writer = os.Stderr

	// fprintf is the function used to format and print errors.
	fprintf = fmt.Fprintf

	// debugMode enables always printing raw error values.
	debugMode bool
)

// SetErrorHandler overrides the default [FatalErrHandler] error handler.
func SetErrorHandler(f func(string, int)) {
	errHandler = f
}

// ResetErrorHandler restores the default error handler.
func ResetErrorHandler() {
	errHandler = FatalErrHandler
}

// SetErrWriter overrides the default error output writer [os.Stderr].
func SetErrWriter(w io.Writer) {
	errWriter = w
}

// ResetErrWriter restores the default error output writer to [os.Stderr].
func ResetErrWriter() {
	errWriter = os.Stderr
}

// SetDefaultFprintf sets the default function used to print errors.
func SetDefaultFprintf(f func(w io.Writer, format string, a ...any) (n int, err error)) {
	fprintf = f
}

// DebugMode sets whether debug logging is enabled.
//
// When enabled, raw error values are printed to stderr.
func DebugMode(enabled bool) {
	debugMode = enabled
}

// FatalErrHandler prints the message provided and then exits with the given code.
func FatalErrHandler(msg string, code int) {
	printError(msg)

	//nolint:revive // Intentional exit after fatal error.
	os.Exit(code)
}

func PrintErrHandler(msg string, _ int) {
	printError(msg)
}

func printError(msg string) {
	if len(msg) == 0 {
		return
	}

	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}

	_, _ = fprintf(errWriter, msg)
}

func debugPrint(err error) {
	if !debugMode {
		return
	}

	_, _ = fprintf(errWriter, "DEBUG %+v\n", err)
}

// ErrExit may be passed to [Check] to instruct it to output nothing but exit with
// status code 1.
var ErrExit = errors.New("exit")

// Check prints a user-friendly error message and invokes the configured error handler.
//
// When the [FatalErrHandler] is used, the program will exit before this function returns.
func Check(err error) error {
	check(err, errHandler)
	return err
}

//nolint:revive
func check(err error, handleErr func(string, int)) {
	if err == nil {
		return
	}

	debugPrint(err)

	var (
		storeErr    *vaulterrors.StoreError
		policyErr   *vaulterrors.PolicyDeniedError
		integrityErr *vaulterrors.IntegrityError
	)

	switch {
	case errors.Is(err, ErrExit):
		handleErr("", DefaultErrorExitCode)
	case errors.Is(err, vaulterrors.ErrVaultFileExists):
		handleErr("vault: database file already exists\nDelete the file first or pick a different path before running 'init'.", DefaultErrorExitCode)
	case errors.Is(err, vaulterrors.ErrVaultFileNotFound):
		handleErr("vault: "+err.Error()+"\nUse the 'init' command to create a new vault database.", DefaultErrorExitCode)
	case errors.Is(err, vaulterrors.ErrWrongPassword):
		handleErr("vault: incorrect password\nPlease check your password and try again.", DefaultErrorExitCode)
	case errors.Is(err, vaulterrors.ErrRateLimited):
		handleErr("vault: too many failed attempts\nThe vault is temporarily locked; try again later.", DefaultErrorExitCode)
	case errors.Is(err, vaulterrors.ErrLocked):
		handleErr("vault: locked\nUnlock the vault before running this command.", DefaultErrorExitCode)
	case errors.Is(err, vaulterrors.ErrNonInteractiveUnsupported):
		handleErr("vault: this command supports interactive input only.", DefaultErrorExitCode)
	case errors.As(err, &integrityErr):
		handleErr("vault: "+err.Error()+"\nThis record failed its integrity check and was left untouched.", DefaultErrorExitCode)
	case errors.As(err, &policyErr):
		handleErr("vault-agent: "+err.Error(), DefaultErrorExitCode)
	case errors.As(err, &storeErr):
		handleErr("vault: "+err.Error(), DefaultErrorExitCode)
	default:
		msg := err.Error()
		if !strings.HasPrefix(msg, "vault") {
			msg = "vault: " + msg
		}

		handleErr(msg, DefaultErrorExitCode)
	}
}
