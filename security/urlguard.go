package security

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/kbukum/flowkit/errors"
)

const (
	// DefaultMaxDataImageBytes bounds inline data:image URLs.
	DefaultMaxDataImageBytes = 10 << 20

	uploadsPrefix   = "/uploads/"
	dataImagePrefix = "data:image/"
)

var blockedHostnames = []string{
	"localhost",
	"metadata.google.internal",
	"metadata",
	"instance-data",
	"169.254.169.254",
	"100.100.100.200",
	"::1",
}

var blockedPorts = []int{22, 25, 53, 3306, 5432, 6379, 27017, 9200, 11211}

var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::/128"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// Resolver looks up host addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// GuardConfig configures a URLGuard.
type GuardConfig struct {
	// ResolveHosts also rejects hostnames whose DNS answers include a
	// blocked address.
	ResolveHosts bool `mapstructure:"resolve_hosts"`
	// MaxDataImageBytes bounds decoded data:image URLs. Defaults to 10 MiB.
	MaxDataImageBytes int `mapstructure:"max_data_image_bytes"`
	// Resolver overrides net.DefaultResolver.
	Resolver Resolver `mapstructure:"-"`
}

// URLGuard vets outbound media URLs.
type URLGuard struct {
	config GuardConfig
}

// NewURLGuard creates a guard.
func NewURLGuard(cfg GuardConfig) *URLGuard {
	if cfg.MaxDataImageBytes <= 0 {
		cfg.MaxDataImageBytes = DefaultMaxDataImageBytes
	}
	if cfg.Resolver == nil {
		cfg.Resolver = net.DefaultResolver
	}
	return &URLGuard{config: cfg}
}

// CheckImage accepts data:image URLs within the size bound, local upload
// paths and safe remote URLs.
func (g *URLGuard) CheckImage(ctx context.Context, raw string) error {
	if raw == "" {
		return errors.MissingField("imageUrl")
	}
	if strings.HasPrefix(raw, dataImagePrefix) {
		return g.checkDataImage(raw)
	}
	if strings.HasPrefix(raw, uploadsPrefix) {
		return nil
	}
	return g.CheckRemote(ctx, raw)
}

// CheckVideo accepts local upload paths and safe remote URLs.
func (g *URLGuard) CheckVideo(ctx context.Context, raw string) error {
	if raw == "" {
		return errors.MissingField("videoUrl")
	}
	if strings.HasPrefix(raw, uploadsPrefix) {
		return nil
	}
	return g.CheckRemote(ctx, raw)
}

// CheckRemote accepts only http(s) URLs whose host, port and (optionally)
// resolved addresses are all allowed.
func (g *URLGuard) CheckRemote(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return errors.UnsafeURL(raw, "invalid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.UnsafeURL(raw, fmt.Sprintf("blocked protocol: %s:", u.Scheme))
	}
	if u.User != nil {
		return errors.UnsafeURL(raw, "URLs with credentials are not allowed")
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return errors.UnsafeURL(raw, "invalid URL")
	}
	if slices.Contains(blockedHostnames, host) || strings.HasSuffix(host, ".localhost") {
		return errors.UnsafeURL(raw, "blocked hostname: "+host)
	}
	addr, parseErr := netip.ParseAddr(host)
	switch {
	case parseErr == nil && blockedAddr(addr):
		return errors.UnsafeURL(raw, "blocked private IP: "+host)
	case parseErr != nil && numericHost(host):
		return errors.UnsafeURL(raw, "non-canonical IP address: "+host)
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return errors.UnsafeURL(raw, "invalid port")
		}
		if slices.Contains(blockedPorts, port) {
			return errors.UnsafeURL(raw, fmt.Sprintf("blocked port: %d", port))
		}
	}

	if g.config.ResolveHosts && parseErr != nil {
		return g.checkResolved(ctx, raw, host)
	}
	return nil
}

// DialControl rejects connections to blocked addresses. It is meant for
// net.Dialer.Control, where the address is the one actually dialled, so
// hostnames that resolve or rebind to a private address are caught too.
func (g *URLGuard) DialControl(_, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return errors.UnsafeURL(address, "unparseable dial address")
	}
	if blockedAddr(ap.Addr()) {
		return errors.UnsafeURL(address, "dial to blocked address: "+ap.Addr().String())
	}
	return nil
}

// Check adapts the guard to the httpclient guard hook, which only ever
// sees absolute URLs.
func (g *URLGuard) Check(raw string) error {
	return g.CheckRemote(context.Background(), raw)
}

func (g *URLGuard) checkResolved(ctx context.Context, raw, host string) error {
	addrs, err := g.config.Resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return errors.UnsafeURL(raw, "host does not resolve")
	}
	for _, addr := range addrs {
		if blockedAddr(addr) {
			return errors.UnsafeURL(raw, fmt.Sprintf("host %s resolves to blocked address %s", host, addr))
		}
	}
	return nil
}

func (g *URLGuard) checkDataImage(raw string) error {
	_, payload, ok := strings.Cut(raw, ",")
	if !ok {
		return nil
	}
	if size := base64.StdEncoding.DecodedLen(len(payload)); size > g.config.MaxDataImageBytes {
		return errors.UnsafeURL("data:image", fmt.Sprintf("image data exceeds %dMB limit", g.config.MaxDataImageBytes>>20))
	}
	return nil
}

// numericHost reports whether the last label of host is a number, decimal
// or 0x hex. URL parsers and resolvers read such hosts as IPv4 in a legacy
// form (2130706433, 0x7f.1, 127.1) that netip does not accept.
func numericHost(host string) bool {
	last := host[strings.LastIndexByte(host, '.')+1:]
	if hex, ok := strings.CutPrefix(last, "0x"); ok {
		return strings.Trim(hex, "0123456789abcdef") == ""
	}
	return last != "" && strings.Trim(last, "0123456789") == ""
}

func blockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap().WithZone("")
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
