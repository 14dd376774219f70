package ai

import "strings"

// CatalogEntry is an automation the assistant may suggest.
type CatalogEntry struct {
	Name           string
	Description    string
	DefaultContent string
}

var catalog = []CatalogEntry{
	{Name: "Welcome Message", Description: "Sends a welcome message to new members.", DefaultContent: "Welcome, {{user}}!"},
	{Name: "Scheduled Event Invite", Description: "Sends invites for scheduled events.", DefaultContent: "Event reminder: {{eventName}} at {{time}}"},
	{Name: "Ice Breaker", Description: "Prompts users with an ice breaker question.", DefaultContent: "What's your favorite weekend activity?"},
}

// Catalog returns the supported automations in display order.
func Catalog() []CatalogEntry {
	out := make([]CatalogEntry, len(catalog))
	copy(out, catalog)
	return out
}

// LookupCatalog finds an automation by name, ignoring case and surrounding space.
func LookupCatalog(name string) (CatalogEntry, bool) {
	name = strings.TrimSpace(name)
	for _, entry := range catalog {
		if strings.EqualFold(entry.Name, name) {
			return entry, true
		}
	}
	return CatalogEntry{}, false
}

// CatalogNames lists the supported automation names.
func CatalogNames() []string {
	names := make([]string, 0, len(catalog))
	for _, entry := range catalog {
		names = append(names, entry.Name)
	}
	return names
}
