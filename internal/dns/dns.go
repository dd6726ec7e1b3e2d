package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// publicDNS are queried directly if the system resolver fails. All of these
// are well-known, high-availability providers.
var publicDNS = []string{
	"1.1.1.1",              // Cloudflare
	"1.0.0.1",              // Cloudflare
	"2606:4700:4700::1111", // Cloudflare
	"8.8.8.8",              // Google
	"8.8.4.4",              // Google
	"2001:4860:4860::8888", // Google
	"9.9.9.9",              // Quad9
	"149.112.112.112",      // Quad9
}

// Lookup resolves a hostname to an IP address. It first tries the system
// resolver and falls back to racing the public DNS providers.
func Lookup(address string) (string, error) {
	if ip, err := systemLookup(address); err == nil {
		return ip, nil
	}
	return raceLookup(address)
}

func systemLookup(address string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ips, err := new(net.Resolver).LookupHost(ctx, address)
	if err != nil {
		return "", err
	}
	return pickIP(ips)
}

// pickIP prefers IPv4 addresses for widest reachability.
func pickIP(ips []string) (string, error) {
	if len(ips) == 0 {
		return "", errors.New("no IP addresses found")
	}
	for _, ip := range ips {
		if net.ParseIP(ip).To4() != nil {
			return ip, nil
		}
	}
	return ips[0], nil
}

// raceLookup queries every public provider concurrently and returns the first
// successful answer.
func raceLookup(address string) (string, error) {
	type result struct {
		ip  string
		err error
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	results := make(chan result, len(publicDNS))
	for _, server := range publicDNS {
		go func(server string) {
			ip, err := providerLookup(ctx, address, server)
			results <- result{ip: ip, err: err}
		}(server)
	}

	for range publicDNS {
		select {
		case res := <-results:
			if res.err == nil && res.ip != "" {
				return res.ip, nil
			}
		case <-ctx.Done():
			return "", fmt.Errorf("public DNS race timed out resolving %s", address)
		}
	}
	return "", fmt.Errorf("failed to resolve %s: all public DNS providers failed", address)
}

func providerLookup(ctx context.Context, address, server string) (string, error) {
	r := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			return new(net.Dialer).DialContext(ctx, network, net.JoinHostPort(server, "53"))
		},
	}

	ips, err := r.LookupHost(ctx, address)
	if err != nil {
		return "", err
	}
	return pickIP(ips)
}
