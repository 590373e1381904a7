package telegram

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateManagerLockSerializesAndShrinks(t *testing.T) {
	m := NewStateManager()

	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		counter sync.Mutex
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock(7)
			defer unlock()

			counter.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			counter.Unlock()

			counter.Lock()
			inside--
			counter.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)

	for chat := int64(1); chat <= 100; chat++ {
		m.Lock(chat)()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.locks)
}
