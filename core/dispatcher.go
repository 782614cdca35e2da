package core

import (
	"fmt"
	"reflect"
)

// Dispatcher runs callbacks on the foreground context: FIFO, one at a time,
// never reentrant with itself. ForegroundLoop is the bundled implementation.
type Dispatcher interface {
	Post(callback func())
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(callback func())

// Post calls f.
func (f DispatcherFunc) Post(callback func()) { f(callback) }

// Owner is the object a group of tasks is attached to. Owners are compared by
// identity, so implementations should be pointer types.
type Owner interface {
	Dispatcher() Dispatcher
}

type namedOwner interface {
	Name() string
}

func ownerName(o Owner) string {
	if n, ok := o.(namedOwner); ok {
		if name := n.Name(); name != "" {
			return name
		}
	}
	if reflect.ValueOf(o).Kind() == reflect.Pointer {
		return fmt.Sprintf("%T@%p", o, o)
	}
	return fmt.Sprintf("%T", o)
}
