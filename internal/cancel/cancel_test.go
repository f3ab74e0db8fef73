package cancel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFlagIsMonotonic(t *testing.T) {
	f := New()
	assert.False(t, f.Cancelled())
	f.Cancel()
	f.Cancel()
	assert.True(t, f.Cancelled())
}

func TestSleepCompletes(t *testing.T) {
	start := time.Now()
	assert.True(t, Sleep(New(), 30*time.Millisecond, 5*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestSleepReturnsEarlyOnCancel(t *testing.T) {
	f := New()
	go func() {
		time.Sleep(20 * time.Millisecond)
		f.Cancel()
	}()

	start := time.Now()
	assert.False(t, Sleep(f, 5*time.Second, 10*time.Millisecond))
	assert.Less(t, time.Since(start), time.Second)
}

func TestSleepAlreadyCancelled(t *testing.T) {
	f := New()
	f.Cancel()
	assert.False(t, Sleep(f, time.Second, 100*time.Millisecond))
}

func TestSleepNilSignal(t *testing.T) {
	assert.True(t, Sleep(nil, time.Millisecond, 0))
}
