//go:build linux

package platform

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/macshift/macshift/internal/macaddr"
)

// udevRulePath is where permanent changes are persisted across reboots.
const udevRulePath = "/etc/udev/rules.d/70-macshift-persistent.rules"

// NetlinkAdapter implements Adapter using Linux netlink: the interface
// is brought down, the hardware address replaced, and the interface
// brought back up.
type NetlinkAdapter struct {
	logger *slog.Logger
}

// NewNetlinkAdapter returns a new NetlinkAdapter.
func NewNetlinkAdapter(logger *slog.Logger) *NetlinkAdapter {
	return &NetlinkAdapter{logger: logger.With("component", "platform")}
}

// NewAdapter returns the platform adapter for this OS.
func NewAdapter(logger *slog.Logger) Adapter {
	return NewNetlinkAdapter(logger)
}

// ApplyMAC sets the hardware address on the named interface. The
// original up/down state is restored: an interface that was up is
// brought back up after the change.
func (a *NetlinkAdapter) ApplyMAC(iface string, addr macaddr.Address, permanent bool) error {
	link, err := a.linkByName(iface)
	if err != nil {
		return err
	}

	wasUp := link.Attrs().OperState == netlink.OperUp ||
		link.Attrs().Flags&net.FlagUp != 0

	if wasUp {
		if err := netlink.LinkSetDown(link); err != nil {
			return a.classify(iface, fmt.Errorf("set link down: %w", err))
		}
	}

	hw := net.HardwareAddr(addr[:])
	if err := netlink.LinkSetHardwareAddr(link, hw); err != nil {
		// Bring the link back up before reporting; the address is unchanged.
		if wasUp {
			if upErr := netlink.LinkSetUp(link); upErr != nil {
				a.logger.Error("failed to restore link state after apply failure",
					"interface", iface,
					"error", upErr,
				)
			}
		}
		return a.classify(iface, fmt.Errorf("set hardware address: %w", err))
	}

	if wasUp {
		if err := netlink.LinkSetUp(link); err != nil {
			return a.classify(iface, fmt.Errorf("set link up: %w", err))
		}
	}

	if permanent {
		if err := a.persistUdevRule(iface, addr); err != nil {
			return err
		}
	}

	a.logger.Info("hardware address applied",
		"interface", iface,
		"address", addr.String(),
		"permanent", permanent,
	)
	return nil
}

// CurrentMAC reads the interface's current hardware address.
func (a *NetlinkAdapter) CurrentMAC(iface string) (macaddr.Address, error) {
	link, err := a.linkByName(iface)
	if err != nil {
		return macaddr.Address{}, err
	}
	hw := link.Attrs().HardwareAddr
	if len(hw) != 6 {
		return macaddr.Address{}, &Error{
			Category:  CategoryCardIncompatible,
			Interface: iface,
			Err:       fmt.Errorf("hardware address length %d, want 6", len(hw)),
		}
	}
	var addr macaddr.Address
	copy(addr[:], hw)
	return addr, nil
}

// ListInterfaces returns all non-loopback link names.
func (a *NetlinkAdapter) ListInterfaces() ([]string, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, a.classify("", fmt.Errorf("list links: %w", err))
	}
	var names []string
	for _, l := range links {
		if l.Attrs().Flags&net.FlagLoopback != 0 {
			continue
		}
		names = append(names, l.Attrs().Name)
	}
	return names, nil
}

func (a *NetlinkAdapter) linkByName(iface string) (netlink.Link, error) {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if errors.As(err, &notFound) {
			return nil, &Error{Category: CategoryNotFound, Interface: iface, Err: err}
		}
		return nil, a.classify(iface, err)
	}
	return link, nil
}

// classify maps syscall-level failures onto the adapter's error
// categories.
func (a *NetlinkAdapter) classify(iface string, err error) error {
	switch {
	case errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES), errors.Is(err, os.ErrPermission):
		return &Error{Category: CategoryPermissionDenied, Interface: iface, Err: err}
	case errors.Is(err, unix.EOPNOTSUPP), errors.Is(err, unix.ENOTSUP):
		return &Error{Category: CategoryUnsupported, Interface: iface, Err: err}
	case errors.Is(err, unix.EBUSY), errors.Is(err, unix.EINVAL):
		return &Error{Category: CategoryCardIncompatible, Interface: iface, Err: err}
	default:
		return &Error{Category: CategoryUnsupported, Interface: iface, Err: err}
	}
}

// persistUdevRule writes a udev rule that reapplies the address on
// boot, replacing any previous macshift rule for the interface.
func (a *NetlinkAdapter) persistUdevRule(iface string, addr macaddr.Address) error {
	rule := fmt.Sprintf(
		"ACTION==\"add\", SUBSYSTEM==\"net\", ATTR{dev_id}==\"0x0\", ATTR{type}==\"1\", KERNEL==\"%s\", ATTR{address}=\"%s\"\n",
		iface, addr.String(),
	)
	dir := filepath.Dir(udevRulePath)
	if _, err := os.Stat(dir); err != nil {
		return &Error{Category: CategoryUnsupported, Interface: iface,
			Err: fmt.Errorf("udev rules directory: %w", err)}
	}
	if err := os.WriteFile(udevRulePath, []byte(rule), 0o644); err != nil {
		return a.classify(iface, fmt.Errorf("write udev rule: %w", err))
	}
	a.logger.Info("udev persistence rule written",
		"interface", iface,
		"path", udevRulePath,
	)
	return nil
}
