package session

import (
	"context"
	"net"
	"net/url"
	"time"
)

// DialConnectivity considers the network available when a TCP connection to
// Address can be opened.
type DialConnectivity struct {
	Address string
	Timeout time.Duration
}

// NewDialConnectivity checks reachability by dialing the host of baseURL.
func NewDialConnectivity(baseURL string) *DialConnectivity {
	address := "www.netflix.com:443"
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		port := u.Port()
		if port == "" {
			port = "443"
			if u.Scheme == "http" {
				port = "80"
			}
		}
		address = net.JoinHostPort(u.Hostname(), port)
	}
	return &DialConnectivity{Address: address, Timeout: 5 * time.Second}
}

func (c *DialConnectivity) Connected(ctx context.Context) bool {
	d := net.Dialer{Timeout: c.Timeout}
	conn, err := d.DialContext(ctx, "tcp", c.Address)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
