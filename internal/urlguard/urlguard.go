// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package urlguard is the SSRF gate every outbound fetch performed on
// behalf of user code or agentic tool calls must pass through first. It
// classifies a URL as safe or unsafe without resolving DNS: it only
// inspects the parsed host.
package urlguard

import (
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
)

// blockedCIDR pairs a blocked IPv4 range with the human-readable name used
// in rejection reasons.
type blockedCIDR struct {
	prefix netip.Prefix
	name   string
}

// blockedIPv4 are the CIDR ranges that make an IPv4 host unsafe.
var blockedIPv4 = mustParsePrefixes(
	blockedCIDR{mustPrefix("0.0.0.0/8"), "this-network"},
	blockedCIDR{mustPrefix("10.0.0.0/8"), "private-use"},
	blockedCIDR{mustPrefix("127.0.0.0/8"), "loopback"},
	blockedCIDR{mustPrefix("169.254.0.0/16"), "link-local"},
	blockedCIDR{mustPrefix("172.16.0.0/12"), "private-use"},
	blockedCIDR{mustPrefix("192.168.0.0/16"), "private-use"},
)

func mustPrefix(cidr string) netip.Prefix {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		panic(fmt.Sprintf("urlguard: invalid built-in CIDR %q: %v", cidr, err))
	}
	return p
}

func mustParsePrefixes(cidrs ...blockedCIDR) []blockedCIDR {
	return cidrs
}

// Validate classifies rawURL as safe (ok=true) or unsafe (ok=false, with a
// human-readable reason) for outbound fetch. It is referentially
// transparent: the same input always produces the same output.
func Validate(rawURL string) (ok bool, reason string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, "unparseable URL"
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false, fmt.Sprintf("scheme %q is not http or https", u.Scheme)
	}

	host := u.Hostname()

	if scheme == "http" {
		lh := strings.ToLower(host)
		if lh != "localhost" && lh != "127.0.0.1" && lh != "::1" {
			return false, "http scheme only allowed for localhost/127.0.0.1/::1"
		}
	}

	if host == "" {
		return false, "missing host"
	}

	if reason, blocked := classifyHost(host); blocked {
		return false, reason
	}

	return true, ""
}

// classifyHost applies rejection rules 5-7 to an already-extracted host.
func classifyHost(host string) (reason string, blocked bool) {
	// Rule 7: bare decimal/octal/hex integer hosts are IPv4-encoding tricks.
	if addr, ok := parseIntegerHost(host); ok {
		if r, blocked := ipv4Blocked(addr); blocked {
			return r, true
		}
		return "", false
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		// Not an IP literal (a regular hostname) — accepted; DNS is not
		// resolved here.
		return "", false
	}

	if addr.Is4() || addr.Is4In6() {
		v4 := addr
		if addr.Is4In6() {
			v4 = addr.Unmap()
		}
		if r, blocked := ipv4Blocked(v4); blocked {
			if addr.Is4In6() {
				return "blocked IPv4-mapped address: " + r, true
			}
			return r, true
		}
		return "", false
	}

	// IPv6.
	if addr == netip.IPv6Unspecified() || addr == netip.IPv6Loopback() {
		return "loopback or unspecified IPv6 address", true
	}
	if isWithinPrefix(addr, "fc00::/7") {
		return "unique local IPv6 address (fc00::/7)", true
	}
	if isWithinPrefix(addr, "fe80::/10") {
		return "link-local IPv6 address (fe80::/10)", true
	}

	return "", false
}

func ipv4Blocked(addr netip.Addr) (string, bool) {
	for _, b := range blockedIPv4 {
		if b.prefix.Contains(addr) {
			return fmt.Sprintf("address %s is within blocked %s range %s", addr, b.name, b.prefix), true
		}
	}
	return "", false
}

func isWithinPrefix(addr netip.Addr, cidr string) bool {
	p := netip.MustParsePrefix(cidr)
	return p.Contains(addr)
}

// parseIntegerHost recognizes a bare decimal, octal (0-prefixed), or hex
// (0x-prefixed) 32-bit integer host and converts it to the IPv4 address it
// encodes, the way browsers and curl historically have.
func parseIntegerHost(host string) (netip.Addr, bool) {
	if host == "" {
		return netip.Addr{}, false
	}
	// net.ParseIP/netip reject bare integers, so do our own base detection.
	base := 10
	digits := host
	switch {
	case strings.HasPrefix(host, "0x") || strings.HasPrefix(host, "0X"):
		base = 16
		digits = host[2:]
	case len(host) > 1 && host[0] == '0':
		base = 8
		digits = host[1:]
	}
	if digits == "" {
		return netip.Addr{}, false
	}
	n, err := strconv.ParseUint(digits, base, 64)
	if err != nil || n > 0xFFFFFFFF {
		return netip.Addr{}, false
	}
	b := [4]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
	return netip.AddrFrom4(b), true
}

// ValidateParsed is a convenience wrapper for callers that already hold a
// net.IP (e.g. after their own DNS resolution) and want the same range
// classification C1 applies to literals.
func ValidateParsed(ip net.IP) (ok bool, reason string) {
	addr, ok2 := netip.AddrFromSlice(ip)
	if !ok2 {
		return false, "invalid IP"
	}
	addr = addr.Unmap()
	r, blocked := ipv4Blocked(addr)
	if addr.Is4() && blocked {
		return false, r
	}
	if !addr.Is4() {
		if addr == netip.IPv6Unspecified() || addr == netip.IPv6Loopback() {
			return false, "loopback or unspecified IPv6 address"
		}
		if isWithinPrefix(addr, "fc00::/7") || isWithinPrefix(addr, "fe80::/10") {
			return false, "private or link-local IPv6 address"
		}
	}
	return true, ""
}
