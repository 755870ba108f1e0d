package bot

import "sync"

// StateManager хранит состояние диалога пользователя между апдейтами:
// сейчас единственное состояние — «ждём текст обращения».
type StateManager struct {
	mu       sync.RWMutex
	awaiting map[int64]bool
}

func NewStateManager() *StateManager {
	return &StateManager{awaiting: make(map[int64]bool)}
}

func (sm *StateManager) SetAwaitingRequest(userID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.awaiting[userID] = true
}

func (sm *StateManager) IsAwaitingRequest(userID int64) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.awaiting[userID]
}

func (sm *StateManager) Clear(userID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.awaiting, userID)
}
