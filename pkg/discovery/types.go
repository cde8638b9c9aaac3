package discovery

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Service defaults.
const (
	// ServiceType is the DNS-SD service advertised for obs-websocket.
	ServiceType = "_obs-websocket._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// BrowseTimeout is the default duration of Find.
	BrowseTimeout = 3 * time.Second
)

// TXT record keys.
const (
	TXTKeyPath = "path"
	TXTKeyTLS  = "tls"
	TXTKeyAuth = "auth"
)

// ErrNoAddress is returned by URL for a target without host or address.
var ErrNoAddress = errors.New("target has no address")

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// StringsToTXTRecords parses key=value strings. A string without "=" is a
// key with an empty value.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		key, value, _ := strings.Cut(s, "=")
		if key == "" {
			continue
		}
		txt[key] = value
	}
	return txt
}

// Target is one discovered mixer endpoint.
type Target struct {
	// Instance is the advertised instance name.
	Instance string

	// Host is the advertised host name.
	Host string

	Port      uint16
	Addresses []string

	// Path is the websocket path, "/" unless advertised.
	Path string

	// TLS is set when the endpoint expects wss://.
	TLS bool

	// AuthRequired is set when the mixer advertises password protection.
	AuthRequired bool
}

// URL returns the websocket URL of the target. IPv4 addresses are preferred
// over IPv6; the host name is used when no address is known.
func (t Target) URL() (string, error) {
	host := t.preferredAddress()
	if host == "" {
		host = strings.TrimSuffix(t.Host, ".")
	}
	if host == "" {
		return "", ErrNoAddress
	}

	scheme := "ws"
	if t.TLS {
		scheme = "wss"
	}
	path := t.Path
	if path == "" {
		path = "/"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(int(t.Port))),
		Path:   path,
	}
	return u.String(), nil
}

func (t Target) preferredAddress() string {
	var v6 string
	for _, addr := range t.Addresses {
		ip := net.ParseIP(addr)
		if ip == nil {
			continue
		}
		if ip.To4() != nil {
			return addr
		}
		if v6 == "" {
			v6 = addr
		}
	}
	return v6
}

func applyTXT(t *Target, txt TXTRecordMap) {
	if p, ok := txt[TXTKeyPath]; ok && p != "" {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		t.Path = p
	}
	t.TLS = txt[TXTKeyTLS] == "1"
	t.AuthRequired = txt[TXTKeyAuth] == "1"
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses drops gone from addresses.
func removeAddresses(addresses, gone []string) []string {
	toRemove := make(map[string]bool, len(gone))
	for _, addr := range gone {
		toRemove[addr] = true
	}
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}
