package shape

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DisplayName returns Name, or the ID in title case with underscores and
// hyphens read as spaces ("rusted_sword" -> "Rusted Sword").
func (m *Mask) DisplayName() string {
	if m == nil {
		return ""
	}
	if m.Name != "" {
		return m.Name
	}
	id := strings.NewReplacer("_", " ", "-", " ").Replace(m.ID)
	return cases.Title(language.English).String(strings.TrimSpace(id))
}
