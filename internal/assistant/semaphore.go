package assistant

import "context"

// Semaphore bounds concurrent outbound model calls process-wide. Acquire
// blocks until a slot frees up or the context ends; Release must be called
// exactly once per successful Acquire, error or not.
type Semaphore struct {
	slots chan struct{}
}

func NewSemaphore(capacity int) *Semaphore {
	if capacity < 1 {
		capacity = 1
	}
	return &Semaphore{slots: make(chan struct{}, capacity)}
}

func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Semaphore) Release() {
	<-s.slots
}
