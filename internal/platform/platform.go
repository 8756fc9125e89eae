// Package platform abstracts the privileged OS operations: reading and
// writing the hardware address of a network interface. The engine only
// consumes the Adapter interface and interprets error categories; all
// OS-specific logic lives behind build tags.
package platform

import (
	"fmt"

	"github.com/macshift/macshift/internal/macaddr"
)

// Category classifies adapter failures for the engine and the CLI.
type Category string

// Failure categories.
const (
	CategoryNotFound         Category = "not_found"
	CategoryPermissionDenied Category = "permission_denied"
	CategoryUnsupported      Category = "unsupported"
	CategoryCardIncompatible Category = "card_incompatible"
)

// Error is a categorized platform failure. It supports errors.Is
// matching by category.
type Error struct {
	Category  Category
	Interface string
	Err       error
}

// Error returns the formatted error string.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("platform: %s: interface %s: %v", e.Category, e.Interface, e.Err)
	}
	return fmt.Sprintf("platform: %s: interface %s", e.Category, e.Interface)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same category.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Category == t.Category
}

// Sentinels for errors.Is checks against each category.
var (
	ErrNotFound         = &Error{Category: CategoryNotFound}
	ErrPermissionDenied = &Error{Category: CategoryPermissionDenied}
	ErrUnsupported      = &Error{Category: CategoryUnsupported}
	ErrCardIncompatible = &Error{Category: CategoryCardIncompatible}
)

// Adapter performs the privileged address operations. Implementations
// must treat ApplyMAC as atomic: it either completes or reports failure
// before returning.
type Adapter interface {
	// ApplyMAC writes the address to the interface. When permanent is
	// true the implementation also persists the change across reboots
	// if the platform supports it.
	ApplyMAC(iface string, addr macaddr.Address, permanent bool) error

	// CurrentMAC reads the interface's current address.
	CurrentMAC(iface string) (macaddr.Address, error)

	// ListInterfaces returns the platform-stable names of all
	// non-loopback interfaces.
	ListInterfaces() ([]string, error)
}
