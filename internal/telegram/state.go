package telegram

import "sync"

// ChatState links a chat to the response it is filling in.
type ChatState struct {
	ResponseID string
	FormID     string
}

// StateManager keeps one ChatState per chat and serializes the handling of
// each chat's updates.
type StateManager struct {
	mu    sync.Mutex
	chats map[int64]ChatState
	locks map[int64]*chatLock
}

// chatLock is dropped from the map once no update holds or waits for it.
type chatLock struct {
	mu   sync.Mutex
	refs int
}

func NewStateManager() *StateManager {
	return &StateManager{
		chats: make(map[int64]ChatState),
		locks: make(map[int64]*chatLock),
	}
}

func (m *StateManager) Get(chatID int64) (ChatState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.chats[chatID]
	return s, ok
}

func (m *StateManager) Set(chatID int64, state ChatState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[chatID] = state
}

func (m *StateManager) Clear(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chats, chatID)
}

// Lock blocks until no other update for chatID is being handled. Call the
// returned func to release it.
func (m *StateManager) Lock(chatID int64) func() {
	m.mu.Lock()
	l, ok := m.locks[chatID]
	if !ok {
		l = &chatLock{}
		m.locks[chatID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, chatID)
		}
		m.mu.Unlock()
	}
}
