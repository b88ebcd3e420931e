package source

import (
	"context"
	"strings"

	"github.com/sahilm/fuzzy"
)

// AppSource lists launchable applications. Entries come from the record's
// "apps" map and from the catalog supplied by the desktop-entry scanner.
type AppSource struct {
	apps  map[string]string // name -> exec line
	names []string
}

// NewAppSource builds an AppSource from a name->exec mapping.
func NewAppSource(apps map[string]string) *AppSource {
	return &AppSource{apps: apps, names: sortedKeys(apps)}
}

// Produce returns the apps fuzzy-matching the keyword, or all apps in name
// order when the keyword is empty.
func (a *AppSource) Produce(_ context.Context, req Request) ([]Item, error) {
	return fuzzyItems(a.names, a.apps, req.Keyword, "Application"), nil
}

// CommandSource is a fixed list of named shell commands.
type CommandSource struct {
	commands map[string]string
	names    []string
}

// NewCommandSource builds a CommandSource from a name->exec mapping.
func NewCommandSource(commands map[string]string) *CommandSource {
	return &CommandSource{commands: commands, names: sortedKeys(commands)}
}

func (c *CommandSource) Produce(_ context.Context, req Request) ([]Item, error) {
	return fuzzyItems(c.names, c.commands, req.Keyword, "Command"), nil
}

func fuzzyItems(names []string, execs map[string]string, keyword, subtitle string) []Item {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		items := make([]Item, 0, len(names))
		for _, name := range names {
			items = append(items, Item{Title: name, Subtitle: subtitle, Exec: execs[name]})
		}
		return items
	}

	matches := fuzzy.Find(keyword, names)
	items := make([]Item, 0, len(matches))
	for _, m := range matches {
		items = append(items, Item{Title: m.Str, Subtitle: subtitle, Exec: execs[m.Str]})
	}
	return items
}
