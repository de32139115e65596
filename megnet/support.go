package megnet

import "sync"

func NewStoreContext() StoreContext {
	ctx := &storeContext{
		openStores: make(map[ModelStore]struct{}),
		closing:    make(chan struct{}),
		closed:     make(chan struct{}),
	}
	ctx.openCount.Add(1)
	go func() {
		<-ctx.closing
		ctx.openCount.Done()
		ctx.openCount.Wait()
		close(ctx.closed)
	}()
	return ctx
}

type storeContext struct {
	mu         sync.Mutex
	openCount  sync.WaitGroup
	openStores map[ModelStore]struct{}
	closing    chan struct{}
	closed     chan struct{}
}

func (ctx *storeContext) AttachStore(st ModelStore) {
	ctx.openCount.Add(1)
	ctx.mu.Lock()
	ctx.openStores[st] = struct{}{}
	ctx.mu.Unlock()
}

func (ctx *storeContext) DetachStore(st ModelStore) {
	ctx.mu.Lock()
	if _, exists := ctx.openStores[st]; exists {
		delete(ctx.openStores, st)
		ctx.openCount.Done()
	}
	ctx.mu.Unlock()
}

func (ctx *storeContext) Done() <-chan struct{} {
	return ctx.closed
}

func (ctx *storeContext) Close() {
	close(ctx.closing)
	ctx.mu.Lock()
	for st := range ctx.openStores {
		go st.Close()
	}
	ctx.mu.Unlock()
}
