package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/magabrotheeeer/tarot-miniapp/internal/models"
)

// ListProjects возвращает все проекты бэкенда в порядке ответа.
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	const op = "gateway.ListProjects"
	projects, err := list[models.Project](ctx, c, "projects", "/projects/", nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return projects, nil
}

// ThemeSettings возвращает настройки оформления проекта.
func (c *Client) ThemeSettings(ctx context.Context, projectID int) (models.Theme, error) {
	const op = "gateway.ThemeSettings"
	var theme models.Theme
	path := "/projects/" + itoa(projectID) + "/theme_settings/"
	if err := c.do(ctx, "theme_settings", http.MethodGet, path, nil, nil, &theme); err != nil {
		return models.Theme{}, fmt.Errorf("%s: %w", op, err)
	}
	return theme, nil
}

// FindUser ищет пользователя проекта по telegram id. Возвращает nil, если не найден.
func (c *Client) FindUser(ctx context.Context, telegramUserID int64, projectID int) (*models.User, error) {
	const op = "gateway.FindUser"
	q := url.Values{}
	q.Set("telegram_user_id", fmt.Sprint(telegramUserID))
	q.Set("project", itoa(projectID))
	users, err := list[models.User](ctx, c, "users", "/users/", q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	if err := c.checkPayload(op, users[0]); err != nil {
		return nil, err
	}
	return &users[0], nil
}

type createUserRequest struct {
	TelegramUserID int64  `json:"telegram_user_id"`
	Username       string `json:"username"`
	Project        int    `json:"project"`
}

// CreateUser регистрирует пользователя в проекте.
func (c *Client) CreateUser(ctx context.Context, identity models.Identity, projectID int) (*models.User, error) {
	const op = "gateway.CreateUser"
	body := createUserRequest{
		TelegramUserID: identity.ID,
		Username:       identity.Username,
		Project:        projectID,
	}
	var user models.User
	if err := c.do(ctx, "users_create", http.MethodPost, "/users/", nil, body, &user); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.checkPayload(op, user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListSpreads возвращает расклады проекта.
func (c *Client) ListSpreads(ctx context.Context, projectID int) ([]models.Spread, error) {
	const op = "gateway.ListSpreads"
	q := url.Values{}
	q.Set("project", itoa(projectID))
	spreads, err := list[models.Spread](ctx, c, "spreads", "/tarot/spreads/", q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, s := range spreads {
		if err := c.checkPayload(op, s); err != nil {
			return nil, err
		}
	}
	return spreads, nil
}

type drawRequest struct {
	User         int    `json:"user"`
	Spread       int    `json:"spread"`
	UserQuestion string `json:"user_question,omitempty"`
}

type drawResponse struct {
	CardsNames       []string           `json:"cards_names"`
	CardsImages      []string           `json:"cards_images"`
	CardsUsed        []models.CardUsage `json:"cards_used"`
	InterpretationID int                `json:"interpretation_id"`
}

// DrawCards вытягивает карты расклада. Платная операция: бэкенд списывает один расклад.
func (c *Client) DrawCards(ctx context.Context, userID, spreadID int, question string) (*models.DrawnCardSet, error) {
	const op = "gateway.DrawCards"
	body := drawRequest{User: userID, Spread: spreadID, UserQuestion: question}
	var resp drawResponse
	if err := c.do(ctx, "draw", http.MethodPost, "/tarot/interpretations/get_cards/", nil, body, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	set := &models.DrawnCardSet{
		Cards:            models.ZipCards(resp.CardsNames, resp.CardsImages, resp.CardsUsed),
		InterpretationID: resp.InterpretationID,
	}
	if err := c.checkPayload(op, set); err != nil {
		return nil, err
	}
	return set, nil
}

type interpretationRequest struct {
	User             int    `json:"user"`
	Spread           int    `json:"spread"`
	InterpretationID int    `json:"interpretation_id"`
	UserQuestion     string `json:"user_question,omitempty"`
}

// FetchInterpretation запрашивает толкование ранее вытянутых карт.
func (c *Client) FetchInterpretation(ctx context.Context, userID, spreadID, interpretationID int, question string) (*models.Interpretation, error) {
	const op = "gateway.FetchInterpretation"
	body := interpretationRequest{
		User:             userID,
		Spread:           spreadID,
		InterpretationID: interpretationID,
		UserQuestion:     question,
	}
	var it models.Interpretation
	if err := c.do(ctx, "interpretation", http.MethodPost, "/tarot/interpretations/create_interpretation/", nil, body, &it); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &it, nil
}

// ListInterpretations возвращает историю толкований пользователя.
func (c *Client) ListInterpretations(ctx context.Context, userID int) ([]models.Interpretation, error) {
	const op = "gateway.ListInterpretations"
	q := url.Values{}
	q.Set("user", itoa(userID))
	items, err := list[models.Interpretation](ctx, c, "interpretations", "/tarot/interpretations/", q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, nil
}

// ListPackages возвращает пакеты проекта.
func (c *Client) ListPackages(ctx context.Context, projectID int) ([]models.Package, error) {
	const op = "gateway.ListPackages"
	q := url.Values{}
	q.Set("project", itoa(projectID))
	pkgs, err := list[models.Package](ctx, c, "packages", "/packages/", q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return pkgs, nil
}

type paymentRequest struct {
	User    int    `json:"user"`
	Project int    `json:"project"`
	Package int    `json:"package"`
	PinCode string `json:"pin_code"`
}

// CreateTestPayment проводит тестовую оплату пакета и возвращает новый баланс.
func (c *Client) CreateTestPayment(ctx context.Context, userID, projectID, packageID int, pin string) (*models.PaymentResult, error) {
	const op = "gateway.CreateTestPayment"
	body := paymentRequest{User: userID, Project: projectID, Package: packageID, PinCode: pin}
	var res models.PaymentResult
	if err := c.do(ctx, "test_payment", http.MethodPost, "/payments/test_payment/", nil, body, &res); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.checkPayload(op, res); err != nil {
		return nil, err
	}
	return &res, nil
}
