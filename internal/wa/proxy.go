package wa

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/matheus3301/telesync/internal/td"
)

const proxiesKey = "wa.proxies"

func (c *Client) loadProxies() ([]td.Proxy, error) {
	raw, ok, err := c.db.GetValue(proxiesKey)
	if err != nil || !ok {
		return nil, err
	}
	var proxies []td.Proxy
	if err := json.Unmarshal(raw, &proxies); err != nil {
		return nil, fmt.Errorf("decode proxies: %w", err)
	}
	return proxies, nil
}

func (c *Client) saveProxies(proxies []td.Proxy) error {
	raw, err := json.Marshal(proxies)
	if err != nil {
		return fmt.Errorf("encode proxies: %w", err)
	}
	return c.db.SetValue(proxiesKey, raw)
}

// ProxyURL renders p as a socks5:// or http:// URL.
func ProxyURL(p td.Proxy) (string, error) {
	var scheme string
	switch p.Kind {
	case td.ProxySocks5:
		scheme = "socks5"
	case td.ProxyHTTP:
		scheme = "http"
	default:
		return "", fmt.Errorf("proxy kind %q not supported", p.Kind)
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(p.Server, strconv.Itoa(int(p.Port))),
	}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u.String(), nil
}

// applyProxy points the connection at the enabled proxy, or at none.
func (c *Client) applyProxy(proxies []td.Proxy) error {
	for _, p := range proxies {
		if !p.IsEnabled {
			continue
		}
		addr, err := ProxyURL(p)
		if err != nil {
			return err
		}
		return c.conn.SetProxyAddress(addr)
	}
	return c.conn.SetProxyAddress("")
}

func (c *Client) restoreProxy() error {
	proxies, err := c.loadProxies()
	if err != nil {
		return err
	}
	if len(proxies) == 0 {
		return nil
	}
	return c.applyProxy(proxies)
}

// commitProxies saves and applies a new proxy table.
func (c *Client) commitProxies(proxies []td.Proxy) *td.Error {
	if err := c.saveProxies(proxies); err != nil {
		return internalError(err)
	}
	if err := c.applyProxy(proxies); err != nil {
		return &td.Error{Code: 400, Message: err.Error()}
	}
	return nil
}

func (c *Client) addProxy(r td.AddProxy) td.Response {
	if _, err := ProxyURL(r.Proxy); err != nil {
		return &td.Error{Code: 400, Message: err.Error()}
	}
	proxies, err := c.loadProxies()
	if err != nil {
		return internalError(err)
	}
	p := r.Proxy
	p.ID = 1
	for _, existing := range proxies {
		p.ID = max(p.ID, existing.ID+1)
	}
	p.IsEnabled = r.Enable
	if r.Enable {
		for i := range proxies {
			proxies[i].IsEnabled = false
		}
	}
	proxies = append(proxies, p)
	if tdErr := c.commitProxies(proxies); tdErr != nil {
		return tdErr
	}
	return &p
}

func (c *Client) removeProxy(id int32) td.Response {
	proxies, err := c.loadProxies()
	if err != nil {
		return internalError(err)
	}
	kept := proxies[:0]
	for _, p := range proxies {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(proxies) {
		return notFound("proxy")
	}
	if tdErr := c.commitProxies(kept); tdErr != nil {
		return tdErr
	}
	return &td.Ok{}
}

func (c *Client) enableProxy(id int32) td.Response {
	proxies, err := c.loadProxies()
	if err != nil {
		return internalError(err)
	}
	found := false
	for i := range proxies {
		proxies[i].IsEnabled = proxies[i].ID == id
		found = found || proxies[i].IsEnabled
	}
	if !found {
		return notFound("proxy")
	}
	if tdErr := c.commitProxies(proxies); tdErr != nil {
		return tdErr
	}
	return &td.Ok{}
}

func (c *Client) disableProxy() td.Response {
	proxies, err := c.loadProxies()
	if err != nil {
		return internalError(err)
	}
	for i := range proxies {
		proxies[i].IsEnabled = false
	}
	if tdErr := c.commitProxies(proxies); tdErr != nil {
		return tdErr
	}
	return &td.Ok{}
}

func (c *Client) getProxies() td.Response {
	proxies, err := c.loadProxies()
	if err != nil {
		return internalError(err)
	}
	return &td.Proxies{Proxies: proxies}
}
