//go:build !linux

package platform

import (
	"log/slog"
	"runtime"

	"github.com/macshift/macshift/internal/macaddr"
)

// unsupportedAdapter rejects every operation with CategoryUnsupported.
type unsupportedAdapter struct{}

// NewAdapter returns the platform adapter for this OS.
func NewAdapter(_ *slog.Logger) Adapter {
	return unsupportedAdapter{}
}

func (unsupportedAdapter) err(iface string) error {
	return &Error{Category: CategoryUnsupported, Interface: iface,
		Err: &unsupportedOSError{os: runtime.GOOS}}
}

func (u unsupportedAdapter) ApplyMAC(iface string, _ macaddr.Address, _ bool) error {
	return u.err(iface)
}

func (u unsupportedAdapter) CurrentMAC(iface string) (macaddr.Address, error) {
	return macaddr.Address{}, u.err(iface)
}

func (u unsupportedAdapter) ListInterfaces() ([]string, error) {
	return nil, u.err("")
}

type unsupportedOSError struct{ os string }

func (e *unsupportedOSError) Error() string {
	return "MAC address changes are not supported on " + e.os
}
