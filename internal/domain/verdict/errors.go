// Package verdict holds the validation result contract shared by the
// evidence, oracle and validation packages, and the error taxonomy used to
// normalize failures into results.
package verdict

import "errors"

var (
	// ErrCodeNotFound means a diagnosis or procedure code is absent from the registry.
	ErrCodeNotFound = errors.New("code not found")

	// ErrMalformedOracleResponse means the reasoning service replied but violated the response contract.
	ErrMalformedOracleResponse = errors.New("malformed oracle response")

	// ErrOracleUnavailable means the reasoning service could not be reached or timed out.
	ErrOracleUnavailable = errors.New("oracle unavailable")

	// ErrStoreUnavailable means the backing store failed. It is the only error
	// that escapes the pipeline.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Recoverable reports whether err can be normalized into a Result.
func Recoverable(err error) bool {
	return errors.Is(err, ErrCodeNotFound) ||
		errors.Is(err, ErrMalformedOracleResponse) ||
		errors.Is(err, ErrOracleUnavailable)
}
