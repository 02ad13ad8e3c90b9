package help

import (
	"strings"
	"testing"

	"github.com/nhle/kanban/internal/keys"
	"github.com/nhle/kanban/internal/model"
)

func TestViewListsColumnsAndPriorities(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 120, 60)
	view := m.View()

	for _, s := range model.Columns {
		if !strings.Contains(view, s.Label()) {
			t.Errorf("view missing column %q", s.Label())
		}
	}
	for _, p := range model.Priorities {
		if !strings.Contains(view, p.Label()) {
			t.Errorf("view missing priority %q", p.Label())
		}
	}
}

func TestShortViewIsOneLine(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 200, 60)
	if short := m.ShortView(); strings.Contains(short, "\n") {
		t.Fatalf("short view spans lines: %q", short)
	}
}
