package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/randalmurphal/bugfiler/internal/bugtracker"
)

// noneOption is the select value meaning "leave unset".
const noneOption = ""

// selectOne asks the user to pick one of options.
func selectOne(title string, options []string, allowNone bool) (string, error) {
	var opts []huh.Option[string]
	if allowNone {
		opts = append(opts, huh.NewOption("(none)", noneOption))
	}
	opts = append(opts, huh.NewOptions(options...)...)

	var choice string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(title).
				Options(opts...).
				Value(&choice),
		),
	).Run()
	return choice, err
}

// inputLine asks for a single line of text.
func inputLine(title, description string, required bool) (string, error) {
	var value string
	input := huh.NewInput().
		Title(title).
		Description(description).
		Value(&value)
	if required {
		input = input.Validate(validateRequired(title))
	}
	err := huh.NewForm(huh.NewGroup(input)).Run()
	return strings.TrimSpace(value), err
}

// inputText asks for multi-line text.
func inputText(title string) (string, error) {
	var value string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title(title).
				Value(&value),
		),
	).Run()
	return strings.TrimSpace(value), err
}

// promptField asks for a required creation field, offering its allowed
// values when the server lists them.
func promptField(field bugtracker.FieldInfo) (string, error) {
	title := field.Name
	if title == "" {
		title = field.Key
	}
	if len(field.AllowedValues) > 0 {
		return selectOne(title, field.AllowedValues, false)
	}
	return inputLine(title, "Required field "+field.Key, true)
}

func validateRequired(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

// readPassword reads a password from in. On a terminal the input is not
// echoed; otherwise the first line is used.
func readPassword(in io.Reader, terminal bool) (string, error) {
	if f, ok := in.(*os.File); ok && terminal {
		_, _ = fmt.Fprint(os.Stderr, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
