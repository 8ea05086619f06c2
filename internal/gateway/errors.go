package gateway

import (
	"errors"
	"fmt"
)

// ErrTransport сеть недоступна, ответ не получен или не разобран.
var ErrTransport = errors.New("transport error")

// APIError неуспешный ответ бэкенда. Message содержит поле error ответа без изменений.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

func newAPIError(status int, statusText string, body errorBody) *APIError {
	msg := body.Error
	if msg == "" {
		msg = body.Detail
	}
	if msg == "" {
		msg = fmt.Sprintf("unexpected status: %s", statusText)
	}
	return &APIError{Status: status, Message: msg}
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}
