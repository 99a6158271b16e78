/*
Copyright 2022-Present Couchbase, Inc.

Use of this software is governed by the Business Source License included in
the file licenses/BSL-Couchbase.txt.  As of the Change Date specified in that
file, in accordance with the Business Source License, use of this software will
be governed by the Apache License, Version 2.0, included in the file
licenses/APL2.txt.
*/

package netutils

import (
	"net"
	"strconv"
)

// IsInAddrAny reports whether host is empty or a wildcard bind address,
// neither of which other instances can connect to.
func IsInAddrAny(host string) bool {
	switch host {
	case "", "0.0.0.0", "::", "[::]", "::/0":
		return true
	}
	return false
}

// AdvertiseHost returns the first candidate which can be advertised to
// peers, or "" when none can.
func AdvertiseHost(candidates ...string) string {
	for _, host := range candidates {
		if !IsInAddrAny(host) {
			return host
		}
	}
	return ""
}

// JoinPort joins host and port the way instances expect them in URIs.
func JoinPort(host string, port uint16) string {
	return net.JoinHostPort(host, strconv.FormatUint(uint64(port), 10))
}

// ListenAll is the wildcard listen address for port.
func ListenAll(port string) string {
	return net.JoinHostPort("0.0.0.0", port)
}
