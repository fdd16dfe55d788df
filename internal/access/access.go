// Package access decides whether a verified caller may act on an owner's
// resources. The decision is pure string comparison; it runs before any
// storage access and storage re-checks ownership independently.
package access

import (
	"fmt"

	"github.com/taskhive/taskhive/internal/errs"
	"github.com/taskhive/taskhive/internal/model"
)

// Check returns nil when the identity's subject exactly matches ownerID.
// Empty values never match anything.
func Check(ownerID string, id model.Identity) error {
	if ownerID == "" || id.Subject == "" || id.Subject != ownerID {
		return fmt.Errorf("%w: subject does not own resource", errs.ErrForbidden)
	}
	return nil
}
