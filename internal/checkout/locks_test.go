package checkout

import (
    "context"
    "sync"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesAndForgets(t *testing.T) {
    var k keyedMutex
    var wg sync.WaitGroup
    counter := 0
    for i := 0; i < 50; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            unlock := k.lock("s1")
            counter++
            unlock()
        }()
    }
    wg.Wait()
    assert.Equal(t, 50, counter)
    assert.Zero(t, k.size())
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
    var k keyedMutex
    unlockA := k.lock("a")
    unlockB := k.lock("b")
    assert.Equal(t, 2, k.size())
    unlockA()
    unlockB()
    assert.Zero(t, k.size())
}

func TestMachineLeavesNoLocksBehind(t *testing.T) {
    f := newFixture(t)
    ctx := context.Background()
    sess := f.paying(t)
    _, err := f.m.CompletePayment(ctx, sess.ID, "user-1", sess.ClientSecret, false)
    require.NoError(t, err)
    _, err = f.m.Close(ctx, sess.ID)
    require.NoError(t, err)

    _, err = f.m.Select(ctx, "missing", []string{"A2"}, nil)
    require.Error(t, err)
    assert.Zero(t, f.m.locks.size())
}
