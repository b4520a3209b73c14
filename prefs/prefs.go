// Package prefs persists small pieces of UI state between runs. The only value kept
// today is the last active tab.
package prefs

import (
	"context"
	"fmt"
)

const ActiveTabKey = "activeTab"

type Tab string

const (
	TabChat  Tab = "chat"
	TabShift Tab = "shift"
)

// ParseTab maps a stored value to a Tab. Missing or unknown values read as chat.
func ParseTab(v string) Tab {
	switch Tab(v) {
	case TabShift:
		return TabShift
	default:
		return TabChat
	}
}

func (t Tab) Valid() bool {
	return t == TabChat || t == TabShift
}

// Store keeps the active tab. Implementations: RedisStore, MemoryStore (for -dev
// without Redis).
type Store interface {
	ActiveTab(ctx context.Context) (Tab, error)
	SetActiveTab(ctx context.Context, tab Tab) error
	Close() error
}

func checkTab(tab Tab) error {
	if !tab.Valid() {
		return fmt.Errorf("prefs: unknown tab %q", tab)
	}
	return nil
}
