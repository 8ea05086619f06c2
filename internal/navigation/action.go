package navigation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ActionKind тип пользовательского действия.
type ActionKind string

// Действия, которые Renderer передаёт машине.
const (
	ActionMenu           ActionKind = "menu"
	ActionSpreads        ActionKind = "spreads"
	ActionSelectSpread   ActionKind = "spread"
	ActionSubmitQuestion ActionKind = "question"
	ActionPackages       ActionKind = "packages"
	ActionBuyPackage     ActionKind = "buy"
	ActionCredential     ActionKind = "pin"
	ActionHistory        ActionKind = "history"
	ActionHistoryEntry   ActionKind = "entry"
	ActionCardOfDay      ActionKind = "cod"
)

// Action действие пользователя. ID выбранный элемент, Text введённый текст.
type Action struct {
	Kind ActionKind
	ID   int
	Text string
}

// Dispatcher принимает действия пользователя.
type Dispatcher interface {
	Dispatch(a Action)
}

var errBadActionData = errors.New("bad action data")

// Encode кодирует действие выбора в компактную строку "kind" или "kind:id".
func (a Action) Encode() string {
	switch a.Kind {
	case ActionSelectSpread, ActionBuyPackage, ActionHistoryEntry:
		return string(a.Kind) + ":" + strconv.Itoa(a.ID)
	default:
		return string(a.Kind)
	}
}

// ParseAction разбирает строку, полученную из Encode. Текст действия не кодируется:
// "question" означает вопрос без текста.
func ParseAction(data string) (Action, error) {
	const op = "navigation.ParseAction"

	kind, rawID, hasID := strings.Cut(data, ":")
	a := Action{Kind: ActionKind(kind)}
	switch a.Kind {
	case ActionSelectSpread, ActionBuyPackage, ActionHistoryEntry:
		if !hasID {
			return Action{}, fmt.Errorf("%s: %w: %q", op, errBadActionData, data)
		}
		id, err := strconv.Atoi(rawID)
		if err != nil {
			return Action{}, fmt.Errorf("%s: %w: %q", op, errBadActionData, data)
		}
		a.ID = id
	case ActionMenu, ActionSpreads, ActionPackages, ActionHistory, ActionCardOfDay, ActionSubmitQuestion:
		if hasID {
			return Action{}, fmt.Errorf("%s: %w: %q", op, errBadActionData, data)
		}
	default:
		return Action{}, fmt.Errorf("%s: %w: %q", op, errBadActionData, data)
	}
	return a, nil
}
