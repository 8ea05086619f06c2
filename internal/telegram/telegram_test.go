package telegram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/tarot-miniapp/internal/models"
	"github.com/magabrotheeeer/tarot-miniapp/internal/navigation"
	"github.com/magabrotheeeer/tarot-miniapp/internal/session"
)

func NewNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
	err      error
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return tgbotapi.Message{}, s.err
	}
	s.sent = append(s.sent, c)
	s.nextID++
	return tgbotapi.Message{MessageID: s.nextID}, nil
}

func (s *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (s *fakeSender) messages() []tgbotapi.Chattable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tgbotapi.Chattable(nil), s.sent...)
}

func (s *fakeSender) lastText() string {
	msgs := s.messages()
	if len(msgs) == 0 {
		return ""
	}
	switch m := msgs[len(msgs)-1].(type) {
	case tgbotapi.MessageConfig:
		return m.Text
	case tgbotapi.EditMessageTextConfig:
		return m.Text
	}
	return ""
}

type recordingDispatcher struct {
	mu      sync.Mutex
	actions []navigation.Action
}

func (d *recordingDispatcher) Dispatch(a navigation.Action) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions = append(d.actions, a)
}

func (d *recordingDispatcher) all() []navigation.Action {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]navigation.Action(nil), d.actions...)
}

func TestMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "Карта говорит", want: "Карта говорит"},
		{name: "escape", in: "a < b & c", want: "a &lt; b &amp; c"},
		{name: "header", in: "## Итог", want: "<b>Итог</b>"},
		{name: "bold", in: "это **Маг**", want: "это <b>Маг</b>"},
		{name: "italic", in: "это *перевёрнутая*", want: "это <i>перевёрнутая</i>"},
		{name: "code", in: "`Шут`", want: "<code>Шут</code>"},
		{name: "bullets", in: "- первое\n* второе", want: "• первое\n• второе"},
		{name: "trim", in: "  текст \n", want: "текст"},
		{name: "underscore italic", in: "это _важно_ сейчас", want: "это <i>важно</i> сейчас"},
		{name: "snake case in url", in: "https://example.com/some_long_path_name", want: "https://example.com/some_long_path_name"},
		{name: "snake case word", in: "поле user_question пустое", want: "поле user_question пустое"},
		{name: "code is not formatted", in: "`snake_case_name` и `**x**`", want: "<code>snake_case_name</code> и <code>**x**</code>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Markdown(tt.in))
		})
	}
}

func TestPlural(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "карта"}, {3, "карты"}, {5, "карт"}, {11, "карт"}, {21, "карта"}, {104, "карты"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cardsWord(tt.n), "n=%d", tt.n)
	}
}

func TestTruncate(t *testing.T) {
	short := "коротко"
	assert.Equal(t, short, truncate(short))

	long := strings.Repeat("я", maxMessageLen+10)
	got := truncate(long)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), maxMessageLen)
	assert.True(t, strings.HasSuffix(got, "…"))
}

// assertTelegramHTML проверяет, что теги сбалансированы и сущности не разрезаны.
func assertTelegramHTML(t *testing.T, s string) {
	t.Helper()
	var open []string
	for i := 0; i < len(s); {
		switch s[i] {
		case '<':
			end := strings.IndexByte(s[i:], '>')
			require.Positive(t, end, "unterminated tag at %d", i)
			tag := s[i : i+end+1]
			name := tagName(tag)
			if strings.HasPrefix(tag, "</") {
				require.NotEmpty(t, open, "unexpected %s", tag)
				require.Equal(t, open[len(open)-1], name)
				open = open[:len(open)-1]
			} else {
				open = append(open, name)
			}
			i += end + 1
		case '&':
			assert.Regexp(t, `^&(amp|lt|gt|quot|#[0-9]+);`, s[i:min(len(s), i+8)])
			i++
		default:
			i++
		}
	}
	assert.Empty(t, open, "unclosed tags")
}

func TestTruncate_LongInterpretationKeepsMarkup(t *testing.T) {
	body := strings.Repeat("**Карта** — значение & смысл. ", 200)
	for pad := 0; pad < 40; pad++ {
		text := "🔮 <b>Толкование</b>\n\n" + Markdown(strings.Repeat("x", pad)+body)
		got := truncate(text)

		assert.LessOrEqual(t, utf8.RuneCountInString(got), maxMessageLen, "pad=%d", pad)
		assertTelegramHTML(t, got)
	}
}

func TestTruncate_ClosesNestedTags(t *testing.T) {
	text := "<b>" + strings.Repeat("<i>слово</i> ", maxMessageLen) + "</b>"
	got := truncate(text)

	assertTelegramHTML(t, got)
	assert.True(t, strings.HasSuffix(got, "</b>"))
}

func TestChatRenderer_PatchLongInterpretation(t *testing.T) {
	bot := &fakeSender{}
	r := NewChatRenderer(42, bot, NewNoopLogger())
	ctx := context.Background()

	require.NoError(t, r.Patch(ctx, navigation.Patch{State: navigation.PatchLoading, Message: "..."}))
	require.NoError(t, r.Patch(ctx, navigation.Patch{
		State:  navigation.PatchReady,
		Markup: Markdown(strings.Repeat("**Маг** & _Жрица_ ", 400)),
	}))

	edit, ok := bot.messages()[1].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.LessOrEqual(t, utf8.RuneCountInString(edit.Text), maxMessageLen)
	assertTelegramHTML(t, edit.Text)
}

func TestScreenView(t *testing.T) {
	end := models.Date{Time: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)}

	menu := screenView(navigation.Menu{
		Theme: models.DefaultTheme(),
		User:  models.User{Balance: 3, SubscriptionEnd: &end},
	})
	assert.Contains(t, menu.text, "Осталось раскладов: 3")
	assert.Contains(t, menu.text, "01.04.2025")
	require.NotNil(t, menu.keyboard)
	assert.Len(t, menu.keyboard.InlineKeyboard, 3)

	spreads := screenView(navigation.Spreads{Spreads: []models.Spread{{ID: 4, Name: "Три карты", NumCards: 3}}})
	require.NotNil(t, spreads.keyboard)
	btn := spreads.keyboard.InlineKeyboard[0][0]
	assert.Equal(t, "Три карты (3 карты)", btn.Text)
	require.NotNil(t, btn.CallbackData)
	assert.Equal(t, "spread:4", *btn.CallbackData)

	result := screenView(navigation.CardsResult{
		Spread:  models.Spread{Name: "Три карты"},
		Drawn:   models.DrawnCardSet{Cards: []models.DrawnCard{{Name: "Шут <0>", IsReversed: true}}},
		Balance: 2,
	})
	assert.Contains(t, result.text, "Шут &lt;0&gt;")
	assert.Contains(t, result.text, "перевёрнутая")
	assert.Nil(t, result.keyboard)

	errView := screenView(navigation.Error{Message: "Проекты не найдены"})
	require.NotNil(t, errView.keyboard)
	assert.Equal(t, reloadData, *errView.keyboard.InlineKeyboard[0][0].CallbackData)
}

func TestChatRenderer_QuestionInput(t *testing.T) {
	bot := &fakeSender{}
	r := NewChatRenderer(42, bot, NewNoopLogger())
	d := &recordingDispatcher{}
	r.Bind(d)

	require.NoError(t, r.Render(context.Background(), navigation.QuestionInput{Spread: models.Spread{ID: 4, Name: "Три карты"}}))
	r.HandleText("Что меня ждёт?")
	// ввод принимается один раз
	r.HandleText("ещё текст")

	assert.Equal(t, []navigation.Action{{Kind: navigation.ActionSubmitQuestion, Text: "Что меня ждёт?"}}, d.all())
	assert.Equal(t, textOutsideFlow, bot.lastText())

	msg, ok := bot.messages()[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
}

func TestChatRenderer_PromptCredential(t *testing.T) {
	bot := &fakeSender{}
	r := NewChatRenderer(42, bot, NewNoopLogger())
	d := &recordingDispatcher{}
	r.Bind(d)

	require.NoError(t, r.Prompt(context.Background(), navigation.PromptRequest{
		Purpose: navigation.PromptCredential,
		Text:    "Введите PIN-код",
	}))
	r.HandleText("0000")

	assert.Equal(t, []navigation.Action{{Kind: navigation.ActionCredential, Text: "0000"}}, d.all())
	msg, ok := bot.messages()[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.IsType(t, tgbotapi.ForceReply{}, msg.ReplyMarkup)
}

func TestChatRenderer_PatchEditsLoadingMessage(t *testing.T) {
	bot := &fakeSender{}
	r := NewChatRenderer(42, bot, NewNoopLogger())
	ctx := context.Background()

	require.NoError(t, r.Render(ctx, navigation.CardsResult{Spread: models.Spread{Name: "Три карты"}}))
	require.NoError(t, r.Patch(ctx, navigation.Patch{
		Region: navigation.RegionInterpretation, State: navigation.PatchLoading, Message: "Толкуем...",
	}))
	require.NoError(t, r.Patch(ctx, navigation.Patch{
		Region: navigation.RegionInterpretation, State: navigation.PatchReady, Markup: "<b>Ответ</b>",
	}))

	msgs := bot.messages()
	require.Len(t, msgs, 3)
	edit, ok := msgs[2].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, 2, edit.MessageID)
	assert.Contains(t, edit.Text, "<b>Ответ</b>")
	require.NotNil(t, edit.ReplyMarkup)
}

func TestChatRenderer_PatchWithoutLoading(t *testing.T) {
	bot := &fakeSender{}
	r := NewChatRenderer(42, bot, NewNoopLogger())
	ctx := context.Background()

	require.NoError(t, r.Patch(ctx, navigation.Patch{
		Region: navigation.RegionInterpretation, State: navigation.PatchFailed, Message: "Сервис недоступен",
	}))

	msgs := bot.messages()
	require.Len(t, msgs, 1)
	msg, ok := msgs[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Contains(t, msg.Text, "Сервис недоступен")
}

func TestChatRenderer_RenderResetsRegion(t *testing.T) {
	bot := &fakeSender{}
	r := NewChatRenderer(42, bot, NewNoopLogger())
	ctx := context.Background()

	require.NoError(t, r.Patch(ctx, navigation.Patch{State: navigation.PatchLoading, Message: "..."}))
	require.NoError(t, r.Render(ctx, navigation.Menu{Theme: models.DefaultTheme()}))
	require.NoError(t, r.Patch(ctx, navigation.Patch{State: navigation.PatchReady, Markup: "x"}))

	_, isEdit := bot.messages()[2].(tgbotapi.EditMessageTextConfig)
	assert.False(t, isEdit)
}

func TestChatRenderer_SendError(t *testing.T) {
	bot := &fakeSender{err: errors.New("telegram down")}
	r := NewChatRenderer(42, bot, NewNoopLogger())

	err := r.Render(context.Background(), navigation.Menu{})
	assert.ErrorContains(t, err, "telegram down")
}

func TestChatRenderer_HandleCallback(t *testing.T) {
	r := NewChatRenderer(42, &fakeSender{}, NewNoopLogger())
	d := &recordingDispatcher{}
	r.Bind(d)

	queued, err := r.HandleCallback("spread:7")
	require.NoError(t, err)
	assert.False(t, queued)
	_, err = r.HandleCallback("pin")
	assert.Error(t, err)
	_, err = r.HandleCallback("nonsense")
	assert.Error(t, err)

	assert.Equal(t, []navigation.Action{{Kind: navigation.ActionSelectSpread, ID: 7}}, d.all())
}

type BootstrapperMock struct{ mock.Mock }

func (m *BootstrapperMock) Bootstrap(ctx context.Context, identity models.Identity) (*session.Session, error) {
	args := m.Called(ctx, identity)
	s, _ := args.Get(0).(*session.Session)
	return s, args.Error(1)
}

// blockingRunner стоит до отмены ctx, как настоящая машина.
type blockingRunner struct {
	started chan *session.Session
	s       *session.Session
}

func (b *blockingRunner) Run(ctx context.Context) error {
	b.started <- b.s
	<-ctx.Done()
	return ctx.Err()
}

func startCommand(chatID int64, from *tgbotapi.User) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		From:     from,
		Text:     "/start",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}},
	}}
}

func newTestRouter(t *testing.T, boot Bootstrapper) (*Router, *fakeSender, chan *session.Session) {
	t.Helper()
	bot := &fakeSender{}
	started := make(chan *session.Session, 4)
	factory := func(s *session.Session, _ navigation.Renderer) Runner {
		return &blockingRunner{started: started, s: s}
	}
	r := NewRouter(context.Background(), bot, boot, factory, NewNoopLogger())
	t.Cleanup(r.Shutdown)
	return r, bot, started
}

func TestRouter_StartBootstrapsSession(t *testing.T) {
	boot := &BootstrapperMock{}
	sess := &session.Session{User: models.User{ID: 5}}
	boot.On("Bootstrap", mock.Anything, models.Identity{ID: 77, Username: "anna"}).Return(sess, nil).Once()

	r, _, started := newTestRouter(t, boot)
	r.HandleUpdate(startCommand(10, &tgbotapi.User{ID: 77, UserName: "anna"}))

	select {
	case got := <-started:
		assert.Same(t, sess, got)
	case <-time.After(time.Second):
		t.Fatal("machine not started")
	}
	boot.AssertExpectations(t)
}

func TestRouter_BootstrapFailureShowsError(t *testing.T) {
	boot := &BootstrapperMock{}
	boot.On("Bootstrap", mock.Anything, models.TestIdentity).Return(nil, session.ErrNoProjectsAvailable)

	r, bot, started := newTestRouter(t, boot)
	r.HandleUpdate(startCommand(10, nil))

	require.Eventually(t, func() bool {
		return strings.Contains(bot.lastText(), "Проекты не найдены")
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, started)
}

func TestRouter_ReloadCallbackRestarts(t *testing.T) {
	boot := &BootstrapperMock{}
	sess := &session.Session{User: models.User{ID: 5}}
	boot.On("Bootstrap", mock.Anything, mock.Anything).Return(sess, nil)

	r, bot, started := newTestRouter(t, boot)
	r.HandleUpdate(startCommand(10, &tgbotapi.User{ID: 77}))
	<-started

	r.HandleUpdate(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 77},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 10}},
		Data:    reloadData,
	}})

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("session not restarted")
	}
	boot.AssertNumberOfCalls(t, "Bootstrap", 2)

	bot.mu.Lock()
	defer bot.mu.Unlock()
	require.Len(t, bot.requests, 1)
	cb, ok := bot.requests[0].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	assert.Equal(t, "cb1", cb.CallbackQueryID)
}

func TestRouter_TextWithoutSessionStarts(t *testing.T) {
	boot := &BootstrapperMock{}
	boot.On("Bootstrap", mock.Anything, mock.Anything).Return(&session.Session{}, nil)

	r, _, started := newTestRouter(t, boot)
	r.HandleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 11},
		Text: "привет",
	}})

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("session not started")
	}
}

type runnerFunc func(ctx context.Context) error

func (f runnerFunc) Run(ctx context.Context) error { return f(ctx) }

func TestRouter_TapDuringBootstrapIsQueued(t *testing.T) {
	release := make(chan struct{})
	boot := &BootstrapperMock{}
	boot.On("Bootstrap", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			select {
			case <-release:
			case <-args.Get(0).(context.Context).Done():
			}
		}).
		Return(&session.Session{}, nil)

	bot := &fakeSender{}
	d := &recordingDispatcher{}
	bound := make(chan struct{})
	factory := func(_ *session.Session, rend navigation.Renderer) Runner {
		return runnerFunc(func(ctx context.Context) error {
			rend.Bind(d)
			close(bound)
			<-ctx.Done()
			return ctx.Err()
		})
	}
	r := NewRouter(context.Background(), bot, boot, factory, NewNoopLogger())
	t.Cleanup(r.Shutdown)

	r.HandleUpdate(startCommand(10, &tgbotapi.User{ID: 77}))
	r.HandleUpdate(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 10}},
		Data:    "spreads",
	}})

	bot.mu.Lock()
	require.Len(t, bot.requests, 1)
	cb, ok := bot.requests[0].(tgbotapi.CallbackConfig)
	bot.mu.Unlock()
	require.True(t, ok)
	assert.Equal(t, loadingNotice, cb.Text)
	assert.Empty(t, d.all())

	close(release)
	select {
	case <-bound:
	case <-time.After(time.Second):
		t.Fatal("machine not started")
	}
	assert.Equal(t, []navigation.Action{{Kind: navigation.ActionSpreads}}, d.all())
}
