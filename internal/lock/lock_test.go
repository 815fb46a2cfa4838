package lock

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestMutexMap_IndependentKeys(t *testing.T) {
	m := NewMutexMap()
	done := make(chan struct{})

	m.Lock("chl_a")
	go func() {
		m.Lock("chl_b")
		m.Unlock("chl_b")
		close(done)
	}()
	<-done
	m.Unlock("chl_a")

	m.Lock("chl_a")
	m.Unlock("chl_a")
}

func TestMutexMap_DoSerialisesSameKey(t *testing.T) {
	m := NewMutexMap()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Do("chl_shared", func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("expected counter=100, got %d", counter)
	}
}

func TestMutexMap_DoReturnsError(t *testing.T) {
	want := errors.New("boom")
	if err := NewMutexMap().Do("k", func() error { return want }); err != want {
		t.Errorf("Do err = %v, want %v", err, want)
	}
}

func TestFileLock_RecordsPID(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "locks", "chl_1.lock")

	fl := NewFileLock(lockPath)
	if err := fl.TryLock(); err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	defer fl.Unlock()

	pid, ok := ReadHolder(lockPath)
	if !ok || pid != os.Getpid() {
		t.Errorf("holder = %d, %v; want %d", pid, ok, os.Getpid())
	}
}

func TestFileLock_SecondHolderRejected(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "chl_1.lock")

	fl1 := NewFileLock(lockPath)
	if err := fl1.TryLock(); err != nil {
		t.Fatalf("first TryLock failed: %v", err)
	}
	defer fl1.Unlock()

	fl2 := NewFileLock(lockPath)
	err := fl2.TryLock()
	if err == nil {
		fl2.Unlock()
		t.Fatal("expected second TryLock to fail")
	}
	if !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}
}

func TestFileLock_UnlockAllowsRelock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "chl_1.lock")

	fl1 := NewFileLock(lockPath)
	if err := fl1.TryLock(); err != nil {
		t.Fatalf("first TryLock failed: %v", err)
	}
	if err := fl1.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("lock file should be removed on unlock")
	}
	if err := fl1.Unlock(); err != nil {
		t.Fatalf("double unlock should be safe, got: %v", err)
	}

	fl2 := NewFileLock(lockPath)
	if err := fl2.TryLock(); err != nil {
		t.Fatalf("re-lock after unlock failed: %v", err)
	}
	fl2.Unlock()
}

func TestReadHolder_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.lock")
	os.WriteFile(path, []byte("not-a-pid\n"), 0600)
	if _, ok := ReadHolder(path); ok {
		t.Error("expected garbage PID to be rejected")
	}
	if _, ok := ReadHolder(path + ".missing"); ok {
		t.Error("expected missing file to be rejected")
	}
}
