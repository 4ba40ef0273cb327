package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_AdvanceRunsDueCallsInOrder(t *testing.T) {
	clk := NewFake(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	var fired []string
	clk.AfterFunc(2*time.Second, func() { fired = append(fired, "late") })
	clk.AfterFunc(time.Second, func() { fired = append(fired, "early") })
	require.Equal(t, 2, clk.Pending())

	clk.Advance(999 * time.Millisecond)
	assert.Empty(t, fired)

	clk.Advance(5 * time.Second)
	assert.Equal(t, []string{"early", "late"}, fired)
	assert.Zero(t, clk.Pending())
}

func TestFake_StopCancelsPendingCall(t *testing.T) {
	clk := NewFake(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	ran := false
	timer := clk.AfterFunc(time.Second, func() { ran = true })
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	clk.Advance(time.Minute)
	assert.False(t, ran)
}

func TestFake_CallMaySchedule(t *testing.T) {
	clk := NewFake(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	count := 0
	clk.AfterFunc(time.Second, func() {
		count++
		clk.AfterFunc(time.Second, func() { count++ })
	})

	clk.Advance(time.Second)
	assert.Equal(t, 1, count)
	clk.Advance(time.Second)
	assert.Equal(t, 2, count)
}

func TestSystem_AfterFunc(t *testing.T) {
	done := make(chan struct{})
	System{}.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduled call did not run")
	}
}
