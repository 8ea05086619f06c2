// Package tenant выбирает проект бэкенда, с которым работает сессия.
package tenant

import (
	"errors"
	"fmt"
	"strings"

	"github.com/magabrotheeeer/tarot-miniapp/internal/models"
)

// ErrEmptyProjectSet список проектов пуст, выбрать нечего.
var ErrEmptyProjectSet = errors.New("empty project set")

// Rule правило, по которому выбран проект.
type Rule string

// Правила в порядке приоритета.
const (
	RuleExplicitID   Rule = "explicit_id"
	RuleExplicitName Rule = "explicit_name"
	RuleDefaultName  Rule = "default_name"
	RuleFirstActive  Rule = "first_active"
	RuleFirst        Rule = "first"
)

// Context явный контекст запроса. Нулевой ExplicitID и пустые строки означают "не задано".
type Context struct {
	ExplicitID   int
	ExplicitName string
	DefaultName  string
}

// Resolve детерминированно выбирает один проект из непустого списка.
// Первое сработавшее правило побеждает:
// точный id, вхождение explicit name без учёта регистра, проект по умолчанию,
// первый активный, первый в списке.
func Resolve(projects []models.Project, rc Context) (models.Project, Rule, error) {
	const op = "tenant.Resolve"

	if len(projects) == 0 {
		return models.Project{}, "", fmt.Errorf("%s: %w", op, ErrEmptyProjectSet)
	}

	if rc.ExplicitID != 0 {
		for _, p := range projects {
			if p.ID == rc.ExplicitID {
				return p, RuleExplicitID, nil
			}
		}
	}

	if name := strings.ToLower(strings.TrimSpace(rc.ExplicitName)); name != "" {
		for _, p := range projects {
			if strings.Contains(strings.ToLower(p.Name), name) {
				return p, RuleExplicitName, nil
			}
		}
	}

	if rc.DefaultName != "" {
		for _, p := range projects {
			if strings.Contains(p.Name, rc.DefaultName) {
				return p, RuleDefaultName, nil
			}
		}
	}

	for _, p := range projects {
		if p.IsActive() {
			return p, RuleFirstActive, nil
		}
	}

	return projects[0], RuleFirst, nil
}
