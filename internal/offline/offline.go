// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"errors"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrNonLocalhost is returned for a remote engine host in local-only mode.
	ErrNonLocalhost = errors.New("engine must run on this machine (localhost or a loopback address)")

	// ErrInvalidURLScheme is returned for anything but http and https.
	ErrInvalidURLScheme = errors.New("engine URL scheme must be http or https")

	// ErrInvalidURL is returned when the URL does not parse or has no host.
	ErrInvalidURL = errors.New("engine URL must be an absolute URL")
)

// IsLocalhost reports whether host, with or without a port, is
// "localhost" or a loopback IP.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))

	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// ValidateEngineURL checks the engine base URL. The scheme must be http or
// https; with localOnly the host must also be local.
func ValidateEngineURL(rawURL string, localOnly bool) error {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ErrInvalidURL
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return ErrInvalidURLScheme
	}

	if localOnly && !IsLocalhost(parsed.Hostname()) {
		return ErrNonLocalhost
	}
	return nil
}

// Badge is the status line marker for the engine location.
func Badge(localOnly bool) string {
	if localOnly {
		return "[LOCAL]"
	}
	return "[REMOTE OK]"
}
