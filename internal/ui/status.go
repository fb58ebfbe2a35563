package ui

import (
	"fmt"
	"io"
	"os"
)

// Output streams. Tests swap them.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

func OK(msg string)   { fmt.Fprintln(Stdout, current.Success.Render("✔ "+msg)) }
func Fail(msg string) { fmt.Fprintln(Stderr, current.Error.Render("✖ "+msg)) }

// Hint prints a faint follow-up line under a failure.
func Hint(msg string) { fmt.Fprintln(Stderr, current.Muted.Render("Hint: "+msg)) }
