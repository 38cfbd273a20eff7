package extraction

import (
	"slices"
	"strings"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

const minEntityLength = 3

// entityStoplist drops address and contact boilerplate picked up as names.
var entityStoplist = []string{
	"attn", "fax", "email", "e-mail", "phone", "telephone", "tel:",
	"address", "street", "suite", "floor", "www.", "http", "@",
	"unknown", "usd",
}

func extractNames(entities []domain.Entity) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, ent := range entities {
		if ent.Label != domain.EntityOrganization && ent.Label != domain.EntityPerson {
			continue
		}
		name := strings.Join(strings.Fields(ent.Text), " ")
		if len(name) < minEntityLength || isStoplisted(name) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func isStoplisted(name string) bool {
	lower := strings.ToLower(name)
	for _, token := range entityStoplist {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}
