package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"festival/internal/logger"
	"festival/internal/models"

	"github.com/google/uuid"
)

// APIValidator - smoke-проверка работающего экземпляра API.
// Создает тестового пользователя, но не открывает платежные сессии.
type APIValidator struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// NewAPIValidator создает новый валидатор
func NewAPIValidator(baseURL string) *APIValidator {
	return &APIValidator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     logger.WithFields("component", "validator"),
	}
}

// ValidateAll проверяет endpoints по очереди и останавливается на первой ошибке
func (v *APIValidator) ValidateAll(ctx context.Context) error {
	v.log.Info("Starting API validation", "base_url", v.baseURL)

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"health", v.validateHealth},
		{"catalog", v.validateCatalog},
		{"auth", v.validateAuth},
		{"checkout", v.validateCheckout},
		{"webhook", v.validateWebhook},
	}

	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("%s validation failed: %w", step.name, err)
		}
		v.log.Info("Endpoints valid", "group", step.name)
	}

	v.log.Info("All endpoints passed validation")
	return nil
}

func (v *APIValidator) validateHealth(ctx context.Context) error {
	return v.expectStatus(ctx, http.MethodGet, "/health", nil, "", http.StatusOK, nil)
}

func (v *APIValidator) validateCatalog(ctx context.Context) error {
	for _, path := range []string{"/api/ticket-types", "/api/auctions", "/api/projects", "/api/lineup", "/api/schedule"} {
		var list []json.RawMessage
		if err := v.expectStatus(ctx, http.MethodGet, path, nil, "", http.StatusOK, &list); err != nil {
			return err
		}
	}

	if err := v.expectStatus(ctx, http.MethodGet, "/api/schedule?day=not-a-day", nil, "", http.StatusBadRequest, nil); err != nil {
		return err
	}
	return v.expectStatus(ctx, http.MethodGet, "/api/auctions/999999999", nil, "", http.StatusNotFound, nil)
}

func (v *APIValidator) validateAuth(ctx context.Context) error {
	email := fmt.Sprintf("validator-%s@example.com", uuid.NewString()[:8])
	password := uuid.NewString()

	var registered models.TokenResponse
	err := v.expectStatus(ctx, http.MethodPost, "/api/auth/register", models.RegisterRequest{
		Email:     email,
		Password:  password,
		FirstName: "Smoke",
		LastName:  "Test",
	}, "", http.StatusCreated, &registered)
	if err != nil {
		return err
	}
	if registered.AccessToken == "" {
		return fmt.Errorf("POST /api/auth/register: expected access token")
	}

	if err := v.expectStatus(ctx, http.MethodPost, "/api/auth/login",
		models.LoginRequest{Email: email, Password: "wrong-password"}, "", http.StatusUnauthorized, nil); err != nil {
		return err
	}

	var me models.User
	if err := v.expectStatus(ctx, http.MethodGet, "/api/me", nil, registered.AccessToken, http.StatusOK, &me); err != nil {
		return err
	}
	if me.Email != email {
		return fmt.Errorf("GET /api/me: expected %s, got %s", email, me.Email)
	}

	return v.expectStatus(ctx, http.MethodGet, "/api/admin/dashboard", nil, registered.AccessToken, http.StatusForbidden, nil)
}

// validateCheckout проверяет только отказы, чтобы не создавать платежей
func (v *APIValidator) validateCheckout(ctx context.Context) error {
	if err := v.expectStatus(ctx, http.MethodPost, "/api/checkout/tickets",
		models.TicketCheckoutRequest{TicketTypeID: 1, Quantity: 1}, "", http.StatusUnauthorized, nil); err != nil {
		return err
	}
	return v.expectStatus(ctx, http.MethodPost, "/api/checkout/donations",
		map[string]any{"amount": -100}, "", http.StatusBadRequest, nil)
}

func (v *APIValidator) validateWebhook(ctx context.Context) error {
	return v.expectStatus(ctx, http.MethodPost, "/api/webhooks/payments",
		map[string]any{"type": "checkout.session.completed"}, "", http.StatusBadRequest, nil)
}

func (v *APIValidator) expectStatus(ctx context.Context, method, path string, body any, token string, want int, out any) error {
	resp, err := v.makeRequest(ctx, method, path, body, token)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: expected %d, got %d: %s", method, path, want, resp.StatusCode, bytes.TrimSpace(msg))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
		}
	}
	return nil
}

func (v *APIValidator) makeRequest(ctx context.Context, method, path string, body any, token string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, v.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	return resp, nil
}

// RunValidation запускает валидацию API; адрес берется из VALIDATE_URL
func RunValidation() {
	baseURL := os.Getenv("VALIDATE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := NewAPIValidator(baseURL).ValidateAll(ctx); err != nil {
		logger.Fatal("Validation failed", "error", err)
	}
}
