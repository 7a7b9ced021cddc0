package workerpool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnqueueRunsAllTasks(t *testing.T) {
	p := New(4)
	defer p.Stop()

	var count int64
	const n = 100
	for i := 0; i < n; i++ {
		err := p.Enqueue(func() { atomic.AddInt64(&count, 1) })
		assert.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&count) == n
	}, time.Second, time.Millisecond)
}

func TestStopJoinsWorkersAndDrainsQueue(t *testing.T) {
	p := New(2)

	var ran int32
	for i := 0; i < 5; i++ {
		_ = p.Enqueue(func() { atomic.AddInt32(&ran, 1) })
	}
	p.Stop()

	assert.EqualValues(t, 5, atomic.LoadInt32(&ran))
}

func TestEnqueueAfterStopFails(t *testing.T) {
	p := New(1)
	p.Stop()

	err := p.Enqueue(func() {})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestPanicInTaskDoesNotKillWorker(t *testing.T) {
	p := New(1)
	defer p.Stop()

	_ = p.Enqueue(func() { panic("boom") })

	var ran int32
	_ = p.Enqueue(func() { atomic.StoreInt32(&ran, 1) })

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&ran) == 1
	}, time.Second, time.Millisecond)
}
