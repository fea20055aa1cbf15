package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

// readInput resolves a command argument to a payload. "-" or no argument
// reads stdin, an existing path reads the file, anything else is the payload.
// Text is trimmed; binary file contents are kept byte for byte.
func readInput(input string, stdin io.Reader) (string, error) {
	if input == "-" || input == "" {
		if f, ok := stdin.(*os.File); ok {
			stat, err := f.Stat()
			if err != nil {
				return "", fmt.Errorf("cannot read stdin: %w", err)
			}
			if (stat.Mode() & os.ModeCharDevice) != 0 {
				return "", fmt.Errorf("no input provided (use a file path, raw payload, or pipe to stdin)")
			}
		}
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return clean(b), nil
	}

	if info, err := os.Stat(input); err == nil && !info.IsDir() {
		b, err := os.ReadFile(input)
		if err != nil {
			return "", fmt.Errorf("reading file %s: %w", input, err)
		}
		return clean(b), nil
	}

	return strings.TrimSpace(input), nil
}

func clean(b []byte) string {
	if utf8.Valid(b) {
		return strings.TrimSpace(string(b))
	}
	return string(b)
}

func argOrEmpty(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
