package telegram

import (
	"context"
	"sync"

	"alpd/api/internal/plate"
)

// EngineManager remembers the engine each chat switched to with /engine.
type EngineManager struct {
	def plate.Engine
	m   sync.Map // chatID -> plate.Engine
}

func NewEngineManager(defaultEngine plate.Engine) *EngineManager {
	return &EngineManager{def: defaultEngine}
}

func (m *EngineManager) Get(chatID int64) plate.Engine {
	if v, ok := m.m.Load(chatID); ok {
		return v.(plate.Engine)
	}
	return m.def
}

func (m *EngineManager) Set(chatID int64, e plate.Engine) {
	m.m.Store(chatID, e)
}

// chatRecognizer resolves the chat's engine on every call, so /engine takes
// effect for the next photo without recreating the session.
type chatRecognizer struct {
	m      *EngineManager
	chatID int64
}

func (c chatRecognizer) Recognize(ctx context.Context, image []byte, mime string) (plate.DetectionResult, error) {
	return c.m.Get(c.chatID).Recognize(ctx, image, mime)
}
