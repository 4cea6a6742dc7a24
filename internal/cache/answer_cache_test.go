package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zerotrust-rag/internal/access"
)

func TestKeyDeterministic(t *testing.T) {
	first := Key(access.RoleCFO, "What is the merger budget?")
	second := Key(access.RoleCFO, "What is the merger budget?")
	assert.Equal(t, first, second)
}

func TestKeyWidth(t *testing.T) {
	key := Key(access.RoleIntern, "any question at all")
	// Hex SHA-256: 64 characters, lowercase hex only.
	require.Len(t, key, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", key)
}

func TestKeyNormalizesQuery(t *testing.T) {
	base := Key(access.RoleHRManager, "what is the leave policy?")

	assert.Equal(t, base, Key(access.RoleHRManager, "What Is The Leave Policy?"))
	assert.Equal(t, base, Key(access.RoleHRManager, "  what is the leave policy?  "))
}

func TestKeyBindsRole(t *testing.T) {
	query := "what is the merger budget?"

	cfoKey := Key(access.RoleCFO, query)
	internKey := Key(access.RoleIntern, query)
	hrKey := Key(access.RoleHRManager, query)

	assert.NotEqual(t, cfoKey, internKey)
	assert.NotEqual(t, cfoKey, hrKey)
	assert.NotEqual(t, internKey, hrKey)
}

func TestKeyBindsQuery(t *testing.T) {
	role := access.RoleIntern

	assert.NotEqual(t, Key(role, "first question"), Key(role, "second question"))
	assert.NotEqual(t, Key(role, "question"), Key(role, "question!"))
}

func TestKeySeparatorNotAmbiguous(t *testing.T) {
	// The role::query concatenation must not let a crafted query collide
	// with another role's keyspace.
	assert.NotEqual(t,
		Key(access.Role("hr"), "manager::question"),
		Key(access.Role("hr_manager"), ":question"),
	)
}

func keyStream(keys []string) func(context.Context) (string, bool, error) {
	i := 0
	return func(context.Context) (string, bool, error) {
		if i >= len(keys) {
			return "", false, nil
		}
		key := keys[i]
		i++
		return key, true, nil
	}
}

func TestDeleteInBatchesDrainsEveryKey(t *testing.T) {
	keys := make([]string, 450)
	for i := range keys {
		keys[i] = fmt.Sprintf(answerKeyPrefix+"%03d", i)
	}

	var batches [][]string
	remaining := make(map[string]bool, len(keys))
	for _, k := range keys {
		remaining[k] = true
	}

	deleted, err := deleteInBatches(context.Background(), clearScanCount, keyStream(keys),
		func(_ context.Context, batch []string) error {
			copied := make([]string, len(batch))
			copy(copied, batch)
			batches = append(batches, copied)
			for _, k := range copied {
				delete(remaining, k)
			}
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, 450, deleted)
	assert.Empty(t, remaining, "every key must be deleted, across batch boundaries")
	// 450 keys at a batch size of 200: two full batches plus the remainder.
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 200)
	assert.Len(t, batches[1], 200)
	assert.Len(t, batches[2], 50)
}

func TestDeleteInBatchesEmptyKeyspace(t *testing.T) {
	deleted, err := deleteInBatches(context.Background(), clearScanCount, keyStream(nil),
		func(context.Context, []string) error {
			t.Fatal("delete must not be called with no keys")
			return nil
		})
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestDeleteInBatchesDeleteErrorStops(t *testing.T) {
	keys := make([]string, 250)
	for i := range keys {
		keys[i] = fmt.Sprintf(answerKeyPrefix+"%03d", i)
	}

	calls := 0
	deleted, err := deleteInBatches(context.Background(), clearScanCount, keyStream(keys),
		func(context.Context, []string) error {
			calls++
			if calls == 2 {
				return errors.New("del failed")
			}
			return nil
		})
	require.Error(t, err)
	assert.Equal(t, 200, deleted, "count reflects only batches that were deleted")
}

func TestDeleteInBatchesScanErrorPropagates(t *testing.T) {
	scanErr := errors.New("scan failed")
	_, err := deleteInBatches(context.Background(), clearScanCount,
		func(context.Context) (string, bool, error) { return "", false, scanErr },
		func(context.Context, []string) error { return nil })
	assert.ErrorIs(t, err, scanErr)
}
