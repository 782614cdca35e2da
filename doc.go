// Package threadhop runs straight-line task bodies that hop between an
// owner's foreground context and a background worker.
//
// An owner is anything with a Dispatcher: typically a UI window or a
// component bound to a single event loop. Tasks of an owner start on that
// owner's foreground, may call Background to continue on a worker goroutine
// and Foreground to come back. Background segments of the same owner run one
// at a time, in the order they were requested.
//
// # Quick Start
//
//	loop := threadhop.NewForegroundLoop()
//	defer loop.Stop()
//
//	threadhop.InitGlobalRegistry(nil)
//	defer threadhop.ShutdownGlobalRegistry()
//
//	loop.Post(func() {
//		threadhop.Start(win, "load", func(t *threadhop.Task) error {
//			if err := t.Background(); err != nil {
//				return err
//			}
//			data := readFile()
//			if err := t.Foreground(); err != nil {
//				return err
//			}
//			win.Show(data)
//			return nil
//		})
//	})
//
// # Teardown
//
// Cleanup(owner) must run on the owner's foreground before the owner goes
// away. Tasks still in the background are interrupted at their next switch
// point: Background and Foreground return an error wrapping
// ErrTaskInterrupted, which the body is expected to return.
//
// Most types live in the core package and are re-exported here.
package threadhop
