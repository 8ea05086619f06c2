package navigation

import "context"

// Region часть экрана, обновляемая без полной перерисовки.
type Region string

// RegionInterpretation область толкования на экранах с картами.
const RegionInterpretation Region = "interpretation"

// PatchState состояние области.
type PatchState string

const (
	PatchLoading PatchState = "loading"
	PatchReady   PatchState = "ready"
	PatchFailed  PatchState = "failed"
)

// Patch обновление одной области текущего экрана.
type Patch struct {
	Region  Region
	State   PatchState
	Markup  string
	Message string
}

// PromptPurpose назначение запроса ввода.
type PromptPurpose string

// PromptCredential PIN для тестовой оплаты.
const PromptCredential PromptPurpose = "credential"

// PromptRequest модальный запрос текста. Ответ приходит действием ActionCredential.
type PromptRequest struct {
	Purpose PromptPurpose
	Text    string
}

// Renderer выводит экраны и владеет привязкой событий интерфейса.
// Бизнес-логики не содержит.
type Renderer interface {
	// Bind регистрирует получателя действий пользователя.
	Bind(d Dispatcher)
	Render(ctx context.Context, s Screen) error
	Patch(ctx context.Context, p Patch) error
	Prompt(ctx context.Context, req PromptRequest) error
}

// MarkdownFunc преобразует markdown толкования в разметку Renderer.
type MarkdownFunc func(text string) string
