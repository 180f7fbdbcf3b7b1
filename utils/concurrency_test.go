package utils

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestIDSetNoDuplicates(t *testing.T) {
	s := NewIDSet()

	added := s.Add("https://example.com/imovel/1")
	if !added {
		t.Error("first Add should return true")
	}

	added = s.Add("https://example.com/imovel/1")
	if added {
		t.Error("second Add of same id should return false")
	}

	if !s.Add("https://example.com/imovel/2") {
		t.Error("Add of a different id should return true")
	}
}

func TestIDSetConcurrency(t *testing.T) {
	s := NewIDSet()
	var added int64

	pool := NewWorkerPool(10)
	for i := 0; i < 100; i++ {
		id := "https://example.com/same"
		pool.Submit(func() {
			if s.Add(id) {
				atomic.AddInt64(&added, 1)
			}
		})
	}
	pool.Wait()

	if added != 1 {
		t.Errorf("expected exactly 1 successful add, got %d", added)
	}
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	pool := NewWorkerPool(2)

	var running, peak int64
	for i := 0; i < 8; i++ {
		pool.Submit(func() {
			n := atomic.AddInt64(&running, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&running, -1)
		})
	}
	pool.Wait()

	if peak > 2 {
		t.Errorf("peak concurrency = %d; want at most 2", peak)
	}
}

func TestWorkerPoolClampsWorkers(t *testing.T) {
	pool := NewWorkerPool(0)
	var ran int64
	pool.Submit(func() { atomic.AddInt64(&ran, 1) })
	pool.Wait()
	if ran != 1 {
		t.Errorf("job did not run with a zero-sized pool request")
	}
}
