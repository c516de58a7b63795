// Package retry provides a small bounded retry helper for operations where
// blind re-execution is safe, such as search navigation. It must not be
// used for bid submission, where a retried submit could double-bid.
package retry

import "time"

// Do runs fn up to attempts times, sleeping delay between tries, and
// returns the last error if every attempt fails.
func Do(attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}
