// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package listener

import (
	"errors"
	"net"
	"os"
)

// ErrNoIPv4Address is returned by ExternalIPv4 if the machine has no usable IPv4 address.
var ErrNoIPv4Address = errors.New("no ipv4 address found")

// ExternalIPv4 returns the first IPv4 address the host name of the machine
// resolves to. If that fails, the first non loopback IPv4 address assigned
// to a network interface is returned instead.
func ExternalIPv4() (net.IP, error) {
	if ip := hostnameIPv4(); ip != nil {
		return ip, nil
	}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		ips = append(ips, ipnet.IP)
	}
	if ip := firstIPv4(ips); ip != nil {
		return ip, nil
	}
	return nil, ErrNoIPv4Address
}

func hostnameIPv4() net.IP {
	host, err := os.Hostname()
	if err != nil {
		return nil
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil
	}
	return firstIPv4(ips)
}

func firstIPv4(ips []net.IP) net.IP {
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4
		}
	}
	return nil
}
