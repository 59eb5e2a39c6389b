// Package policy derives the post-release access restriction applied to
// requests containing sensitive records.
package policy

import (
	"time"

	"github.com/noah-isme/school-docs-api/internal/models"
)

// AccessWindowMonths is the length of the restriction window applied when a
// request includes a sensitive document.
const AccessWindowMonths = 3

// ComputeAccessWindow returns the timestamp until which the requester's
// account stays under review, or nil when no document in the set is
// sensitive. Evaluated once at creation over the request's full type set;
// a single window covers the whole request regardless of how many items
// qualify.
func ComputeAccessWindow(types map[models.DocumentType]struct{}, now time.Time) *time.Time {
	for t := range types {
		if t.Sensitive() {
			until := now.AddDate(0, AccessWindowMonths, 0)
			return &until
		}
	}
	return nil
}
