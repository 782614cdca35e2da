package core

import "time"

// =============================================================================
// Task and Reply
// =============================================================================

// TaskWithResult is background work producing a value.
type TaskWithResult[T any] func() (T, error)

// ReplyWithResult receives the result of a TaskWithResult on the foreground.
type ReplyWithResult[T any] func(result T, err error)

// PostTaskAndReply runs work on owner's worker, then reply with its result on
// owner's foreground. It is a task like any other: Busy reports it while work
// runs, and cleaning up the owner drops the reply.
//
// If work panics the reply does not run and the panic surfaces on the
// foreground as a *TaskError.
//
// Example:
//
//	PostTaskAndReply(reg, window,
//	    func() (*UserData, error) {
//	        return fetchUserFromDB()
//	    },
//	    func(user *UserData, err error) {
//	        window.Show(user)
//	    },
//	)
func PostTaskAndReply[T any](r *Registry, owner Owner, work TaskWithResult[T], reply ReplyWithResult[T]) TaskID {
	return r.Start(owner, "task-and-reply", func(t *Task) error {
		if err := t.Background(); err != nil {
			return err
		}

		// Captured by the reply below; the foreground switch orders the write
		// before the read.
		result, err := work()

		if serr := t.Foreground(); serr != nil {
			return serr
		}
		if reply != nil {
			reply(result, err)
		}
		return nil
	})
}

// PostDelayedTaskAndReply is PostTaskAndReply with work starting after delay.
// The delay is spent on the worker, so later jobs of the same owner wait too.
// The reply is not delayed.
func PostDelayedTaskAndReply[T any](r *Registry, owner Owner, work TaskWithResult[T], delay time.Duration, reply ReplyWithResult[T]) TaskID {
	return PostTaskAndReply(r, owner, func() (T, error) {
		if delay > 0 {
			time.Sleep(delay)
		}
		return work()
	}, reply)
}
