package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tripdesk-service/internal/domain/repository"
	"tripdesk-service/pkg/logger"
)

// WhatsappRepository sends customer notices through the WhatsApp messaging service
type WhatsappRepository struct {
	logger      logger.Logger
	baseURL     string
	bearerToken string
	companyID   string
	agentID     string
	client      *http.Client
}

// NewWhatsappRepository creates a new WhatsApp repository
func NewWhatsappRepository(baseURL, bearerToken, companyID, agentID string, logger logger.Logger) repository.WhatsappRepository {
	return &WhatsappRepository{
		logger:      logger,
		baseURL:     baseURL,
		bearerToken: bearerToken,
		companyID:   companyID,
		agentID:     agentID,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

type whatsappMessage struct {
	CompanyID   string      `json:"companyId"`
	AgentID     string      `json:"agentId"`
	PhoneNumber string      `json:"phoneNumber"`
	Message     messageBody `json:"message"`
	ScheduleAt  string      `json:"scheduleAt"`
	Type        string      `json:"type"`
}

type messageBody struct {
	Text string `json:"text"`
}

// SendText queues a text message for immediate delivery and returns the task ID
func (r *WhatsappRepository) SendText(ctx context.Context, phone, text string) (string, error) {
	if phone == "" || text == "" {
		return "", fmt.Errorf("invalid message: phone and text are required")
	}

	msg := whatsappMessage{
		CompanyID:   r.companyID,
		AgentID:     r.agentID,
		PhoneNumber: phone,
		Message:     messageBody{Text: text},
		ScheduleAt:  time.Now().UTC().Format(time.RFC3339),
		Type:        "text",
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/messages/send", r.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+r.bearerToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var errorBody map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errorBody)
		return "", fmt.Errorf("WhatsApp service returned status %d: %v", resp.StatusCode, errorBody)
	}

	var response struct {
		Success bool `json:"success"`
		Data    struct {
			TaskID string `json:"taskId"`
			Status string `json:"status"`
		} `json:"data"`
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if !response.Success {
		return "", fmt.Errorf("failed to queue message: %s (code: %s)", response.Error.Message, response.Error.Code)
	}

	r.logger.Info("WhatsApp task created",
		"taskId", response.Data.TaskID,
		"phone", phone)

	return response.Data.TaskID, nil
}
