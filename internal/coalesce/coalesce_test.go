package coalesce

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/vault-risk-engine/internal/metrics"
)

func TestConcurrentCallsShareOneRun(t *testing.T) {
	c := New(metrics.New(prometheus.NewRegistry()))

	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})

	const callers = 8
	var wg sync.WaitGroup
	results := make([]int, callers)
	joinedCount := atomic.Int32{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		v, joined, err := Do(c, "risk", "risk:1:0xabc:detailed", func() (int, error) {
			calls.Add(1)
			close(started)
			<-release
			return 42, nil
		})
		assert.NoError(t, err)
		if joined {
			joinedCount.Add(1)
		}
		results[0] = v
	}()
	<-started
	require.True(t, c.InFlight("risk:1:0xabc:detailed"))

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, joined, err := Do(c, "risk", "risk:1:0xabc:detailed", func() (int, error) {
				calls.Add(1)
				return -1, nil
			})
			assert.NoError(t, err)
			if joined {
				joinedCount.Add(1)
			}
			results[i] = v
		}(i)
	}

	// let the followers reach the group before the leader finishes
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(callers-1), joinedCount.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
	assert.False(t, c.InFlight("risk:1:0xabc:detailed"))
}

func TestFailureReleasesKey(t *testing.T) {
	c := New(nil)
	boom := errors.New("upstream down")

	_, _, err := Do(c, "risk", "k", func() (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, c.InFlight("k"))

	v, joined, err := Do(c, "risk", "k", func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.False(t, joined)
	assert.Equal(t, "ok", v)
}

func TestDistinctKeysRunIndependently(t *testing.T) {
	c := New(nil)
	var calls atomic.Int32

	var wg sync.WaitGroup
	for _, key := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, _, _ = Do(c, "risk", key, func() (string, error) {
				calls.Add(1)
				return key, nil
			})
		}(key)
	}
	wg.Wait()
	assert.Equal(t, int32(3), calls.Load())
}

func TestNilPointerResult(t *testing.T) {
	c := New(nil)
	v, _, err := Do(c, "risk", "k", func() (*int, error) { return nil, nil })
	require.NoError(t, err)
	assert.Nil(t, v)
}
