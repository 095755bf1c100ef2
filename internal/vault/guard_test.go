package vault

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationGuard_AcquireAndRelease(t *testing.T) {
	guard := NewOperationGuard()
	assert.Empty(t, guard.Current())

	release, err := guard.TryAcquire("export-20260101-120000-aaaa1111")
	require.NoError(t, err)
	assert.Equal(t, "export-20260101-120000-aaaa1111", guard.Current())

	release()
	assert.Empty(t, guard.Current())
}

func TestOperationGuard_RejectsConcurrentAcquire(t *testing.T) {
	guard := NewOperationGuard()

	release, err := guard.TryAcquire("export-20260101-120000-aaaa1111")
	require.NoError(t, err)

	_, err = guard.TryAcquire("import-20260101-120001-bbbb2222")
	require.Error(t, err)
	assert.True(t, IsType(err, ErrorTypeBusy))

	var vaultErr *VaultError
	require.True(t, errors.As(err, &vaultErr))
	assert.Equal(t, "export-20260101-120000-aaaa1111", vaultErr.Context["operation_id"])

	// The holder is unaffected by the rejected attempt
	assert.Equal(t, "export-20260101-120000-aaaa1111", guard.Current())

	release()
	_, err = guard.TryAcquire("import-20260101-120001-bbbb2222")
	require.NoError(t, err)
}

func TestOperationGuard_ReleaseIsIdempotent(t *testing.T) {
	guard := NewOperationGuard()

	releaseFirst, err := guard.TryAcquire("export-1")
	require.NoError(t, err)
	releaseFirst()
	releaseFirst()

	releaseSecond, err := guard.TryAcquire("export-2")
	require.NoError(t, err)
	assert.Equal(t, "export-2", guard.Current())

	// A stale release function must not free the new holder's claim
	releaseFirst()
	assert.Equal(t, "export-2", guard.Current())

	releaseSecond()
	assert.Empty(t, guard.Current())
}

func TestOperationGuard_ConcurrentAcquire(t *testing.T) {
	guard := NewOperationGuard()

	const attempts = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	var releases []func()
	var busy int

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := guard.TryAcquire("export-racer")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				busy++
				assert.True(t, IsType(err, ErrorTypeBusy))
				return
			}
			// Hold the claim until every attempt has finished
			releases = append(releases, release)
		}()
	}
	wg.Wait()

	assert.Len(t, releases, 1)
	assert.Equal(t, attempts-1, busy)

	for _, release := range releases {
		release()
	}
	assert.Empty(t, guard.Current())
}
