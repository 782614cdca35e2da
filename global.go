package threadhop

import (
	"fmt"
	"sync"

	"github.com/Swind/go-threadhop/core"
)

// =============================================================================
// Global Registry Helper (Singleton)
// =============================================================================

var (
	globalRegistry *core.Registry
	globalMu       sync.Mutex
)

// InitGlobalRegistry creates the global registry. A nil cfg uses
// DefaultRegistryConfig. Calling it again is a no-op.
func InitGlobalRegistry(cfg *RegistryConfig) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalRegistry != nil {
		return
	}
	globalRegistry = core.NewRegistry(cfg)
}

// GlobalRegistry returns the global registry instance.
// It panics if InitGlobalRegistry has not been called.
func GlobalRegistry() *Registry {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalRegistry == nil {
		panic("GlobalRegistry not initialized. Call InitGlobalRegistry() first.")
	}
	return globalRegistry
}

// ShutdownGlobalRegistry drops the global registry. It refuses while owners
// are still registered; clean them up first on their own foregrounds.
func ShutdownGlobalRegistry() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalRegistry == nil {
		return nil
	}
	if n := globalRegistry.Owners(); n > 0 {
		return fmt.Errorf("shutdown global registry: %d owners not cleaned up", n)
	}
	globalRegistry = nil
	return nil
}

// Start runs body as a task of owner on the global registry.
func Start(owner Owner, name string, body TaskFunc) TaskID {
	return GlobalRegistry().Start(owner, name, body)
}

// Busy reports whether owner has tasks on the background side.
func Busy(owner Owner) bool {
	return GlobalRegistry().Busy(owner)
}

// Cleanup tears down owner's state in the global registry.
func Cleanup(owner Owner) error {
	return GlobalRegistry().Cleanup(owner)
}

// Handler wraps fn so each call starts a task on the global registry.
func Handler[O Owner, A any](name string, fn func(t *Task, owner O, arg A) error) func(owner O, arg A) {
	return core.Handler(GlobalRegistry(), name, fn)
}

// PostTaskAndReply runs work in the background of owner and reply on its
// foreground, using the global registry.
func PostTaskAndReply[T any](owner Owner, work TaskWithResult[T], reply ReplyWithResult[T]) TaskID {
	return core.PostTaskAndReply(GlobalRegistry(), owner, work, reply)
}
