package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"lprserver/internal/dto"
	"lprserver/internal/logger"
	"lprserver/internal/model"
	"lprserver/internal/service/storage"
	"lprserver/internal/service/websocket"
)

// NoRecognizerMessage is attached to results that carry no recognition.
const NoRecognizerMessage = "No OCR model loaded. Install weights to enable recognition."

// Manager ties the pipeline to the authorized list, the read history and the
// event feed. It is what the HTTP layer talks to.
type Manager struct {
	inference    *InferenceService
	authorized   *AuthorizedService
	readBuffer   *storage.ReadBuffer
	hub          *websocket.HubService
	capabilities model.Capabilities
	logger       *logger.Logger
}

// NewManager wires the services. readBuffer and hub may be nil.
func NewManager(inference *InferenceService, authorized *AuthorizedService, readBuffer *storage.ReadBuffer,
	hub *websocket.HubService, capabilities model.Capabilities, logger *logger.Logger) *Manager {
	return &Manager{
		inference:    inference,
		authorized:   authorized,
		readBuffer:   readBuffer,
		hub:          hub,
		capabilities: capabilities,
		logger:       logger,
	}
}

func (m *Manager) GetInferenceService() *InferenceService {
	return m.inference
}

func (m *Manager) GetAuthorizedService() *AuthorizedService {
	return m.authorized
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.hub
}

func (m *Manager) Capabilities() model.Capabilities {
	return m.capabilities
}

// HandleImage runs inference on an uploaded image, checks the recognized
// plate against the authorized list and records the outcome.
func (m *Manager) HandleImage(ctx context.Context, raw []byte, source string) (*model.InferenceResult, error) {
	result, err := m.inference.InferFromBytes(ctx, raw)
	if err != nil {
		return nil, err
	}

	if result.Recognition == nil {
		message := NoRecognizerMessage
		result.Message = &message
	} else {
		authorized, err := m.authorized.IsAuthorized(result.Recognition.Text)
		if err != nil {
			return nil, err
		}
		result.Authorized = &authorized
		m.logger.Info("Plate %q read from %s (authorized: %t)", result.Recognition.Text, source, authorized)
	}

	m.publish(m.record(result, source), result, source)
	return result, nil
}

// record buffers reads that produced text and returns the read ID.
func (m *Manager) record(result *model.InferenceResult, source string) string {
	if m.readBuffer == nil || result.Recognition == nil || result.Recognition.Text == "" {
		return uuid.NewString()
	}

	return m.readBuffer.Add(model.PlateRead{
		PlateText:  result.Recognition.Text,
		Confidence: result.Recognition.Confidence,
		Authorized: result.Authorized != nil && *result.Authorized,
		Source:     source,
		Detections: result.Detections,
	})
}

func (m *Manager) publish(id string, result *model.InferenceResult, source string) {
	if m.hub == nil {
		return
	}

	message, err := json.Marshal(dto.InferenceEvent{
		ID:        id,
		Timestamp: time.Now().UTC(),
		Source:    source,
		Result:    result,
	})
	if err != nil {
		m.logger.Error("Failed to encode inference event: %v", err)
		return
	}
	m.hub.Broadcast(message)
}
