package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/deploykit/winject/internal/edition"
)

// promptForEdition prints the available editions and reads an index
// selection. Validation of the index against the enumeration is left to the
// resolver.
func promptForEdition(editions []edition.Edition, in io.Reader, out io.Writer) (int, error) {
	fmt.Fprintln(out, "Available editions:")
	for _, ed := range editions {
		fmt.Fprintf(out, "  %d: %s\n", ed.Index, ed.Name)
	}
	fmt.Fprint(out, "Select edition index: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return 0, fmt.Errorf("reading edition selection: %w", err)
	}

	index, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, fmt.Errorf("edition selection must be a number: %w", err)
	}
	return index, nil
}
