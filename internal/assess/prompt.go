package assess

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Terminal asks questions on a line-oriented terminal.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminal creates a Terminal reading answers from in.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

// ask prints the question and returns the trimmed answer. End of input
// without an answer is io.EOF.
func (t *Terminal) ask(question string) (string, error) {
	fmt.Fprint(t.out, question+" ")
	line, err := t.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		fmt.Fprintln(t.out)
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question. Norwegian and German answers are
// accepted as well.
func (t *Terminal) Confirm(question string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	for {
		answer, err := t.ask(question + " " + hint)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "":
			return def, nil
		case "y", "yes", "j", "ja":
			return true, nil
		case "n", "no", "nei", "nein":
			return false, nil
		}
		fmt.Fprintln(t.out, "Please enter y or n")
	}
}

// Choose asks until one of choices is given.
func (t *Terminal) Choose(question string, choices []string, def string) (string, error) {
	hint := "(" + strings.Join(choices, "/") + ")"
	if def != "" {
		hint += " [" + def + "]"
	}
	for {
		answer, err := t.ask(question + " " + hint + ":")
		if err != nil {
			return "", err
		}
		if answer == "" && def != "" {
			return def, nil
		}
		if slices.Contains(choices, answer) {
			return answer, nil
		}
		fmt.Fprintf(t.out, "Please select one of the available options: %s\n", strings.Join(choices, ", "))
	}
}

// Input asks for free text; an empty answer yields def.
func (t *Terminal) Input(question, def string) (string, error) {
	q := question + ":"
	if def != "" {
		q = question + " [" + def + "]:"
	}
	answer, err := t.ask(q)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}
