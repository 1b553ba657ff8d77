package model

import (
	"errors"
	"fmt"
)

// NotFoundError: the id does not resolve within the tenant.
type NotFoundError struct {
	Kind     string // "contact" or "relationship"
	ID       string
	TenantID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found in tenant %s", e.Kind, e.ID, e.TenantID)
}

// CrossTenantError: an operation was handed ids that span tenants. Callers
// should never construct this case; the engine checks anyway.
type CrossTenantError struct {
	ID         string
	WantTenant string
	GotTenant  string
}

func (e *CrossTenantError) Error() string {
	return fmt.Sprintf("contact %s belongs to tenant %s, not %s", e.ID, e.GotTenant, e.WantTenant)
}

// ConflictError: a concurrent mutation was detected via version check. The
// caller may re-read and retry; the engine never retries on its own.
type ConflictError struct {
	ID     string
	Detail string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent modification of %s: %s", e.ID, e.Detail)
}

// ArbitrationUnavailableError: the external arbiter failed or timed out.
// Always recovered internally by falling back to prefer_complete.
type ArbitrationUnavailableError struct {
	Err error
}

func (e *ArbitrationUnavailableError) Error() string {
	return fmt.Sprintf("external arbitration unavailable: %v", e.Err)
}

func (e *ArbitrationUnavailableError) Unwrap() error { return e.Err }

// ValidationError: malformed caller input (threshold, strategy, metadata).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

func IsCrossTenant(err error) bool {
	var ct *CrossTenantError
	return errors.As(err, &ct)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
