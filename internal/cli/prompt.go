package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Confirm asks a yes/no question and reads the answer. EOF and an empty
// answer are treated as no.
func Confirm(ctx context.Context, in io.Reader, out io.Writer, question string) (bool, error) {
	reader := NewNonBlockingReader(in)

	if _, err := fmt.Fprint(out, FormatPrompt(question+" [y/N]")); err != nil {
		return false, fmt.Errorf("failed to write prompt: %w", err)
	}

	line, err := reader.ReadLine(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}

	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
