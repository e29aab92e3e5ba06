// Package mail sends transactional email (verification links, password
// resets) through the configured SMTP relay.
package mail

import (
	"fmt"
	"net/smtp"
	"net/url"
	"strings"
)

// Client is a thin SMTP sender. send is injectable for tests.
type Client struct {
	addr string // host:port
	host string
	from string
	auth smtp.Auth

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewClient builds a client from an smtp:// or smtps:// URL plus SMTP
// credentials. The URL form matches the relay console:
// smtp://email-smtp.us-east-1.amazonaws.com:587.
func NewClient(rawURL, username, accessKey, from string) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("mail: parse smtp url: %w", err)
	}
	if u.Scheme != "smtp" && u.Scheme != "smtps" {
		return nil, fmt.Errorf("mail: unsupported scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("mail: smtp url %q has no host", rawURL)
	}
	port := u.Port()
	if port == "" {
		port = "587"
	}
	return &Client{
		addr: host + ":" + port,
		host: host,
		from: from,
		auth: smtp.PlainAuth("", username, accessKey, host),
		send: smtp.SendMail,
	}, nil
}

// Send delivers one plain-text message.
func (c *Client) Send(to, subject, body string) error {
	if !strings.Contains(to, "@") {
		return fmt.Errorf("mail: recipient %q is not an address", to)
	}
	msg := buildMessage(c.from, to, subject, body)
	if err := c.send(c.addr, c.auth, c.from, []string{to}, msg); err != nil {
		return fmt.Errorf("mail: send to %s: %w", to, err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
