package counter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/JakeFAU/pipelinewatch/internal/daterange"
)

// Directory counts entries directly under {Root}/{date}.
type Directory struct {
	Root string
}

// NewDirectory creates a Directory counter rooted at root.
func NewDirectory(root string) (*Directory, error) {
	if root == "" {
		return nil, fmt.Errorf("directory counter: root is required")
	}
	return &Directory{Root: root}, nil
}

// Count implements Counter.
func (c *Directory) Count(_ context.Context, date daterange.Date) (int64, error) {
	entries, err := readDateDir(c.Root, date)
	if err != nil {
		return 0, err
	}
	return int64(len(entries)), nil
}

// Pattern counts files in every sub-directory of {Root}/{date} whose name
// matches Match. The expression is anchored at the start of the name; an
// empty pattern matches every file.
type Pattern struct {
	Root  string
	Match *regexp.Regexp
}

// NewPattern compiles pattern and creates a Pattern counter rooted at root.
func NewPattern(root, pattern string) (*Pattern, error) {
	if root == "" {
		return nil, fmt.Errorf("pattern counter: root is required")
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return nil, fmt.Errorf("pattern counter: compile %q: %w", pattern, err)
	}
	return &Pattern{Root: root, Match: re}, nil
}

// Count implements Counter.
func (c *Pattern) Count(ctx context.Context, date daterange.Date) (int64, error) {
	entries, err := readDateDir(c.Root, date)
	if err != nil {
		return 0, err
	}
	dateDir := filepath.Join(c.Root, date.String())
	var total int64
	for _, ts := range entries {
		if !ts.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("pattern counter: %w", err)
		}
		files, err := os.ReadDir(filepath.Join(dateDir, ts.Name()))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return 0, fmt.Errorf("pattern counter: read %s: %w", ts.Name(), err)
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			if c.Match.MatchString(f.Name()) {
				total++
			}
		}
	}
	return total, nil
}

func readDateDir(root string, date daterange.Date) ([]os.DirEntry, error) {
	dir := filepath.Join(root, date.String())
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read date directory %s: %w", dir, err)
	}
	return entries, nil
}
