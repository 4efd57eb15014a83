// Package tickers loads the symbol universe for a backfill run from a
// line-delimited text file.
package tickers

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Load reads symbols from the file at path, one per line. Blank lines and
// lines starting with '#' are ignored. A missing or unreadable file is a
// fatal configuration error for the run.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ticker list %s: %w", path, err)
	}
	defer f.Close()

	var symbols []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		symbols = append(symbols, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ticker list %s: %w", path, err)
	}
	return symbols, nil
}
