package webhook

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockUpdates struct {
	mock.Mock
}

func (m *MockUpdates) HandleUpdate(u tgbotapi.Update) {
	m.Called(u)
}

func TestWebhookHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockUpdates)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "сообщение",
			body: `{"update_id":7,"message":{"message_id":1,"chat":{"id":10},"text":"/start"}}`,
			setupMock: func(m *MockUpdates) {
				m.On("HandleUpdate", mock.MatchedBy(func(u tgbotapi.Update) bool {
					return u.UpdateID == 7 && u.Message != nil && u.Message.Chat.ID == 10 && u.Message.Text == "/start"
				})).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK"}`,
		},
		{
			name: "нажатие кнопки",
			body: `{"update_id":8,"callback_query":{"id":"cb","data":"spreads","message":{"message_id":2,"chat":{"id":10}}}}`,
			setupMock: func(m *MockUpdates) {
				m.On("HandleUpdate", mock.MatchedBy(func(u tgbotapi.Update) bool {
					return u.CallbackQuery != nil && u.CallbackQuery.Data == "spreads"
				})).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK"}`,
		},
		{
			name:           "некорректное тело",
			body:           `{not json`,
			setupMock:      func(_ *MockUpdates) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"invalid update"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updates := &MockUpdates{}
			tt.setupMock(updates)

			req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			New(logger, updates).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.JSONEq(t, tt.expectedBody, rec.Body.String())
			updates.AssertExpectations(t)
		})
	}
}
