package dedupe

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrDeleteListEmpty is returned when the delete-list artifact exists but
// contains no ids. The apply step fails closed rather than interpreting an
// empty file as either "delete nothing" or "delete everything".
var ErrDeleteListEmpty = errors.New("delete list contains no ids")

// WriteDeleteList writes the proposed deletion ids, one per line, to path.
// The file is plain text and meant to be reviewed and edited by a human
// before the apply step consumes it.
func WriteDeleteList(path string, ids []string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating delete-list directory: %w", err)
		}
	}

	var b strings.Builder
	for _, id := range ids {
		b.WriteString(id)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing delete list %s: %w", path, err)
	}
	return nil
}

// ReadDeleteList reads ids back from the artifact. Blank lines and lines
// starting with '#' are skipped. A missing file or a file with no ids is
// an error, never an implicit no-op.
func ReadDeleteList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening delete list %s: %w", path, err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading delete list %s: %w", path, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrDeleteListEmpty)
	}
	return ids, nil
}
