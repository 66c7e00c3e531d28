package keylock

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/check"
)

func TestSerializesPerKey(t *testing.T) {
	kl := New()
	id := uuid.New()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kl.Lock(id)
			defer kl.Unlock(id)
			counter++
		}()
	}
	wg.Wait()
	check.Equal(t, 50, counter)
}

func TestIndependentKeysDoNotBlock(t *testing.T) {
	kl := New()
	a, b := uuid.New(), uuid.New()

	kl.Lock(a)
	done := make(chan struct{})
	go func() {
		kl.Lock(b)
		kl.Unlock(b)
		close(done)
	}()
	<-done
	kl.Unlock(a)
}

func TestUnlockWithoutLockPanics(t *testing.T) {
	kl := New()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	kl.Unlock(uuid.New())
}

func TestEntriesAreReleased(t *testing.T) {
	kl := New()
	id := uuid.New()

	kl.Lock(id)
	kl.Unlock(id)
	check.Equal(t, 0, kl.Len())
}
