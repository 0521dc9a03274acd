package resilience

// Result holds either a value or the error that prevented producing it.
type Result[T any] struct {
	val T
	err error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] { return Result[T]{val: v} }

// Fail wraps an error.
func Fail[T any](err error) Result[T] { return Result[T]{err: err} }

// From builds a Result from a (value, error) pair.
func From[T any](v T, err error) Result[T] {
	if err != nil {
		return Fail[T](err)
	}
	return Ok(v)
}

// Err returns the failure, or nil.
func (r Result[T]) Err() error { return r.err }

// Get returns the underlying pair.
func (r Result[T]) Get() (T, error) { return r.val, r.err }

// OrElse returns the value, or the output of fallback when r failed.
// fallback receives the original error so it can record why it ran.
func (r Result[T]) OrElse(fallback func(error) T) T {
	if r.err != nil {
		return fallback(r.err)
	}
	return r.val
}
