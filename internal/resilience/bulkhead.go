package resilience

import (
	"context"
)

// Bulkhead limits the number of concurrent calls admitted to a resource.
// A non-positive limit other than zero is treated as unlimited; limits of
// 0 and 1 both mean strictly sequential execution.
type Bulkhead struct {
	name string
	sem  chan struct{}
}

// NewBulkhead creates a bulkhead with the given concurrency limit.
// limit < 0 means unlimited admission.
func NewBulkhead(name string, limit int) *Bulkhead {
	if limit < 0 {
		return &Bulkhead{name: name}
	}
	if limit == 0 {
		limit = 1
	}
	return &Bulkhead{
		name: name,
		sem:  make(chan struct{}, limit),
	}
}

// Execute runs fn once a slot is available, waiting as long as ctx allows.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()
	return fn()
}

// Acquire blocks until a slot is available or ctx is cancelled.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	if b.sem == nil {
		return ctx.Err()
	}
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a previously acquired slot.
func (b *Bulkhead) Release() {
	if b.sem == nil {
		return
	}
	<-b.sem
}

// InUse returns the number of slots currently in use.
func (b *Bulkhead) InUse() int {
	if b.sem == nil {
		return 0
	}
	return len(b.sem)
}

// Limit returns the maximum concurrent calls allowed, or -1 for unlimited.
func (b *Bulkhead) Limit() int {
	if b.sem == nil {
		return -1
	}
	return cap(b.sem)
}
