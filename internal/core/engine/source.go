package engine

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/lsk7209/0-nkey-sub001/internal/core"
)

// WorkSource yields work items until exhausted. Next returns ok=false once
// no items remain.
type WorkSource interface {
	Next(ctx context.Context) (core.WorkItem, bool, error)
}

// SliceSource serves a fixed list of items.
type SliceSource struct {
	mu    sync.Mutex
	items []core.WorkItem
	pos   int
}

// NewSliceSource builds a source from keywords, skipping blanks.
func NewSliceSource(keywords ...string) *SliceSource {
	items := make([]core.WorkItem, 0, len(keywords))
	for i, keyword := range keywords {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		items = append(items, core.WorkItem{Keyword: keyword, Line: i + 1})
	}
	return &SliceSource{items: items}
}

func (s *SliceSource) Next(ctx context.Context) (core.WorkItem, bool, error) {
	if err := ctx.Err(); err != nil {
		return core.WorkItem{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.items) {
		return core.WorkItem{}, false, nil
	}
	item := s.items[s.pos]
	s.pos++
	return item, true, nil
}

// Len returns the total number of items.
func (s *SliceSource) Len() int {
	return len(s.items)
}

// LineSource reads one keyword per line. Blank lines and lines starting with
// '#' are skipped.
type LineSource struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
	line    int
}

func NewLineSource(r io.Reader) *LineSource {
	return &LineSource{scanner: bufio.NewScanner(r)}
}

func (s *LineSource) Next(ctx context.Context) (core.WorkItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return core.WorkItem{}, false, err
		}
		if !s.scanner.Scan() {
			return core.WorkItem{}, false, s.scanner.Err()
		}
		s.line++
		keyword := strings.TrimSpace(s.scanner.Text())
		if keyword == "" || strings.HasPrefix(keyword, "#") {
			continue
		}
		return core.WorkItem{Keyword: keyword, Line: s.line}, true, nil
	}
}
