// Package discovery locates garage-door controllers on the local
// network via mDNS. Controllers advertise the _esphomelib._tcp service
// with TXT records describing the firmware.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

const (
	// ServiceType is the mDNS service advertised by the native API.
	ServiceType = "_esphomelib._tcp"

	// Domain is the mDNS domain to browse.
	Domain = "local."

	// DefaultBrowseTimeout bounds a single browse pass.
	DefaultBrowseTimeout = 10 * time.Second
)

// ErrNoDevices is returned when a browse pass finds no controllers.
var ErrNoDevices = errors.New("discovery: no devices found")

// Device describes a discovered controller.
type Device struct {
	// Name is the mDNS instance name ("ratgdov25i-fa241c").
	Name string

	// Host is the advertised hostname ("ratgdov25i-fa241c.local.").
	Host string

	// Port is the native API port.
	Port int

	// Addresses holds the resolved IP addresses, IPv4 first.
	Addresses []string

	// MAC is the device MAC address from the TXT records, if present.
	MAC string

	// Version is the firmware version from the TXT records.
	Version string

	// Platform is the chip platform ("ESP8266", "ESP32").
	Platform string

	// Board is the board identifier.
	Board string

	// FriendlyName is the human-readable device name, if advertised.
	FriendlyName string

	// Project is the firmware project name ("ratgdo.ratgdov25i"), if
	// advertised.
	Project string
}

// Address returns the host:port dial target for the device, preferring
// a resolved IP address over the mDNS hostname.
func (d *Device) Address() string {
	host := strings.TrimSuffix(d.Host, ".")
	if len(d.Addresses) > 0 {
		host = d.Addresses[0]
	}
	return fmt.Sprintf("%s:%d", host, d.Port)
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout is the default timeout for browse operations.
	// Default: 10 seconds.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		BrowseTimeout: DefaultBrowseTimeout,
	}
}

// Browser browses for controllers using zeroconf.
type Browser struct {
	config BrowserConfig

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
}

// NewBrowser creates a new mDNS browser.
func NewBrowser(config BrowserConfig) *Browser {
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = DefaultBrowseTimeout
	}
	return &Browser{config: config}
}

// Browse searches for controllers until the context is cancelled.
// Devices are aggregated by instance name so that announcements from
// multiple interfaces produce a single entry. The returned channel is
// closed when browsing ends.
func (b *Browser) Browse(ctx context.Context) (<-chan *Device, error) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil, errors.New("discovery: browser stopped")
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.mu.Unlock()

	out := make(chan *Device)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)

		seen := make(map[string]*Device)

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				dev := entryToDevice(entry)
				if dev == nil {
					continue
				}
				existing, found := seen[dev.Name]
				if found {
					existing.Addresses = mergeAddresses(existing.Addresses, dev.Addresses)
					continue
				}
				seen[dev.Name] = dev
				select {
				case out <- dev:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				delete(seen, entry.Instance)

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, b.browserOptions()...)
	}()

	return out, nil
}

// FindFirst browses until the first controller is found or the browse
// timeout elapses.
func (b *Browser) FindFirst(ctx context.Context) (*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.BrowseTimeout)
	defer cancel()

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case dev, ok := <-results:
			if !ok {
				return nil, ErrNoDevices
			}
			return dev, nil
		case <-ctx.Done():
			return nil, ErrNoDevices
		}
	}
}

// FindByName browses until a controller with the given instance name is
// found or the browse timeout elapses.
func (b *Browser) FindByName(ctx context.Context, name string) (*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.BrowseTimeout)
	defer cancel()

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case dev, ok := <-results:
			if !ok {
				return nil, ErrNoDevices
			}
			if strings.EqualFold(dev.Name, name) {
				return dev, nil
			}
		case <-ctx.Done():
			return nil, ErrNoDevices
		}
	}
}

// Stop cancels any active browse.
func (b *Browser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	if b.cancel != nil {
		b.cancel()
	}
}

func (b *Browser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}

	return opts
}

// entryToDevice converts a zeroconf entry to a Device. Returns nil for
// entries without a usable port.
func entryToDevice(entry *zeroconf.ServiceEntry) *Device {
	if entry.Port <= 0 {
		return nil
	}

	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	dev := &Device{
		Name:      entry.Instance,
		Host:      entry.HostName,
		Port:      entry.Port,
		Addresses: addrs,
	}
	applyTXT(dev, entry.Text)
	return dev
}

// applyTXT fills device metadata from mDNS TXT records. Records use a
// key=value format; unknown keys are ignored.
func applyTXT(dev *Device, txt []string) {
	for _, record := range txt {
		key, value, ok := strings.Cut(record, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(key) {
		case "mac":
			dev.MAC = value
		case "version":
			dev.Version = value
		case "platform":
			dev.Platform = value
		case "board":
			dev.Board = value
		case "friendly_name":
			dev.FriendlyName = value
		case "project_name":
			dev.Project = value
		}
	}
}

func mergeAddresses(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, a := range existing {
		seen[a] = struct{}{}
	}
	for _, a := range incoming {
		if _, ok := seen[a]; !ok {
			existing = append(existing, a)
			seen[a] = struct{}{}
		}
	}
	return existing
}
