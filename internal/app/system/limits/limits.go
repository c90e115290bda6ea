// internal/app/system/limits/limits.go
package limits

import (
	"fmt"

	"github.com/dalemusser/curriculum/internal/app/system/apperr"
)

// Request size limits for batch reads. Each batch is answered with a
// fixed number of queries, but the result size grows with the input.
const (
	// MaxBatchCodes caps the module codes in one batch request.
	MaxBatchCodes = 200

	// MaxBatchTerms caps the terms in one multi-term mapping request.
	MaxBatchTerms = 20
)

// Check returns a validation error when n exceeds max.
func Check(what string, n, max int) error {
	if n > max {
		return apperr.Validation(fmt.Sprintf("too many %s: %d (limit %d)", what, n, max))
	}
	return nil
}
