package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"

	bferrors "github.com/randalmurphal/bugfiler/internal/errors"
)

// PrintError prints an error to w with appropriate formatting.
// If the error is a bugfiler Error, it uses the user-friendly format.
// Otherwise, it prints a simple error message.
func PrintError(w io.Writer, err error, verbose bool) {
	if errors.Is(err, huh.ErrUserAborted) {
		_, _ = fmt.Fprintln(w, "Aborted.")
		return
	}
	if bfErr := bferrors.AsError(err); bfErr != nil {
		_, _ = fmt.Fprintln(w, bfErr.UserMessage())
		if verbose {
			// In verbose mode, also print the error code and cause
			_, _ = fmt.Fprintf(w, "\nCode: %s\n", bfErr.Code)
			if bfErr.Cause != nil {
				_, _ = fmt.Fprintf(w, "Cause: %v\n", bfErr.Cause)
			}
		}
		return
	}
	_, _ = fmt.Fprintf(w, "%s %v\n", errorStyle.Render("Error:"), err)
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, huh.ErrUserAborted) {
		return 130
	}
	if bfErr := bferrors.AsError(err); bfErr != nil {
		return bfErr.Category().ExitCode()
	}
	return 1
}

// resultError turns a failed facade result into a returned error. When the
// message is the tracker's own explanation it becomes the Why.
func resultError(msg string, err *bferrors.Error) error {
	if err == nil {
		return bferrors.Wrap(nil, msg)
	}
	if msg == "" || err.What == msg {
		return err
	}
	out := *err
	out.Why = msg
	return &out
}
