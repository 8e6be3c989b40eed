package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"flight-alert-service/internal/domain/repository"
	"flight-alert-service/pkg/logger"
	"flight-alert-service/pkg/utils"
)

// DefaultPushEndpoint is the PushPlus send API
const DefaultPushEndpoint = "https://www.pushplus.plus/send"

// PushPlusRepository sends notifications through PushPlus
type PushPlusRepository struct {
	logger    logger.Logger
	endpoint  string
	token     string
	userAgent string
	client    *http.Client
	now       func() time.Time
}

// NewPushPlusRepository creates a new PushPlus notification repository
func NewPushPlusRepository(endpoint, token, userAgent string, logger logger.Logger) repository.NotificationRepository {
	if endpoint == "" {
		endpoint = DefaultPushEndpoint
	}
	if token == "" {
		logger.Warn("PUSH_TOKEN not set, notifications are disabled")
	}

	return &PushPlusRepository{
		logger:    logger,
		endpoint:  endpoint,
		token:     token,
		userAgent: userAgent,
		client:    &http.Client{Timeout: 30 * time.Second},
		now:       time.Now,
	}
}

type pushPlusRequest struct {
	Token    string `json:"token"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Template string `json:"template"`
}

type pushPlusResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Send pushes title and message. Failures are logged and reported as false.
func (r *PushPlusRepository) Send(ctx context.Context, title, message string) bool {
	if r.token == "" {
		r.logger.Warn("No push token provided, cannot send notification", "title", title)
		return false
	}

	if err := r.send(ctx, title, message); err != nil {
		r.logger.Error("Failed to send notification", "title", title, "error", err)
		return false
	}

	r.logger.Info("Notification sent successfully", "title", title)
	return true
}

func (r *PushPlusRepository) send(ctx context.Context, title, message string) error {
	content := fmt.Sprintf("[%s]\n\n%s", r.now().Format(utils.TIMESTAMP_LAYOUT), message)

	jsonData, err := json.Marshal(pushPlusRequest{
		Token:    r.token,
		Title:    title,
		Content:  content,
		Template: "html",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("push service returned status %d", resp.StatusCode)
	}

	var response pushPlusResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if response.Code != 200 {
		return fmt.Errorf("push service rejected message: %s (code: %d)", response.Msg, response.Code)
	}

	return nil
}
