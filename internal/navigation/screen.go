package navigation

import "github.com/magabrotheeeer/tarot-miniapp/internal/models"

// Kind тег экрана.
type Kind string

// Экраны мини-приложения.
const (
	KindMenu             Kind = "menu"
	KindLoading          Kind = "loading"
	KindSpreads          Kind = "spreads"
	KindQuestionInput    Kind = "question_input"
	KindCardsResult      Kind = "cards_result"
	KindPackages         Kind = "packages"
	KindPaymentSuccess   Kind = "payment_success"
	KindHistory          Kind = "history"
	KindHistoryDetail    Kind = "history_detail"
	KindCardOfDayLoading Kind = "card_of_day_loading"
	KindCardOfDayResult  Kind = "card_of_day_result"
	KindError            Kind = "error"
)

// Screen декларативное описание экрана для Renderer.
type Screen interface {
	Kind() Kind
}

// Menu главное меню.
type Menu struct {
	Project models.Project
	User    models.User
	Theme   models.Theme
}

// Loading индикатор ожидания ответа бэкенда.
type Loading struct {
	Message string
}

// Spreads список доступных раскладов без карты дня.
type Spreads struct {
	Spreads []models.Spread
}

// QuestionInput ввод вопроса к раскладу.
type QuestionInput struct {
	Spread models.Spread
}

// CardsResult вытянутые карты. Толкование приходит отдельным Patch.
type CardsResult struct {
	Spread   models.Spread
	Question string
	Drawn    models.DrawnCardSet
	Balance  int
}

// Packages пакеты для покупки.
type Packages struct {
	Packages []models.Package
	Balance  int
}

// PaymentSuccess успешная оплата, через паузу возврат в меню.
type PaymentSuccess struct {
	Package         models.Package
	Balance         int
	SubscriptionEnd *models.Date
}

// History история толкований.
type History struct {
	Entries []models.Interpretation
}

// HistoryDetail запись истории с картами и готовой разметкой толкования.
type HistoryDetail struct {
	Index  int
	Entry  models.Interpretation
	Cards  []models.DrawnCard
	Markup string
}

// CardOfDayLoading карта дня тянется.
type CardOfDayLoading struct{}

// CardOfDayResult карта дня. Cached означает, что запись взята из хранилища.
type CardOfDayResult struct {
	Record  models.DailyCardRecord
	Cached  bool
	Balance int
}

// Error полноэкранная ошибка. Восстановление только перезапуском.
type Error struct {
	Message string
}

func (Menu) Kind() Kind             { return KindMenu }
func (Loading) Kind() Kind          { return KindLoading }
func (Spreads) Kind() Kind          { return KindSpreads }
func (QuestionInput) Kind() Kind    { return KindQuestionInput }
func (CardsResult) Kind() Kind      { return KindCardsResult }
func (Packages) Kind() Kind         { return KindPackages }
func (PaymentSuccess) Kind() Kind   { return KindPaymentSuccess }
func (History) Kind() Kind          { return KindHistory }
func (HistoryDetail) Kind() Kind    { return KindHistoryDetail }
func (CardOfDayLoading) Kind() Kind { return KindCardOfDayLoading }
func (CardOfDayResult) Kind() Kind  { return KindCardOfDayResult }
func (Error) Kind() Kind            { return KindError }
