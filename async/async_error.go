// Async provides tools for running background work whose completion can be observed.
package async

// AsyncError is an async value that will eventually return an error
// It is similar to a Promise/Future which returns an error
// The value is supplied by calling SetValue.
// Once the value is supplied AsyncError is considered completed
// The value can be retrieved once AsyncError is completed via TryGetValue or Wait
type AsyncError struct {
	done chan struct{}
	val  error
}

func newAsyncError() *AsyncError {
	return &AsyncError{
		done: make(chan struct{}),
	}
}

// Sets the value for the AsyncError.  Marks AsyncError as Completed or Fulfilled.
// This method should only ever be called once per AsyncError instance.
// Calling this method more than once will panic
func (e *AsyncError) SetValue(err error) {
	e.val = err
	close(e.done)
}

// Returns the Status of this AsyncError:
// Completed(true) or Pending(false)
// and the value of the AsyncError if it is Completed.
func (e *AsyncError) TryGetValue() (bool, error) {
	select {
	case <-e.done:
		return true, e.val
	default:
		return false, nil
	}
}

// Done is closed once the value is set.
func (e *AsyncError) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the value is set and returns it.
func (e *AsyncError) Wait() error {
	<-e.done
	return e.val
}

// Completed returns an AsyncError that already holds err.
func Completed(err error) *AsyncError {
	e := newAsyncError()
	e.SetValue(err)
	return e
}
