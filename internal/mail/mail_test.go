package mail

import (
	"bytes"
	"net/smtp"
	"testing"
)

func TestNewClient(t *testing.T) {
	c, err := NewClient("smtp://email-smtp.us-east-1.amazonaws.com:587", "user", "key", "noreply@cyhdev.com")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.addr != "email-smtp.us-east-1.amazonaws.com:587" {
		t.Fatalf("addr = %q", c.addr)
	}

	// Port defaults to 587.
	c, err = NewClient("smtp://relay.example.com", "user", "key", "noreply@cyhdev.com")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.addr != "relay.example.com:587" {
		t.Fatalf("addr = %q", c.addr)
	}

	for _, bad := range []string{"http://relay.example.com", "smtp://", "://x"} {
		if _, err := NewClient(bad, "u", "k", "f"); err == nil {
			t.Errorf("NewClient(%q) accepted", bad)
		}
	}
}

func TestSend(t *testing.T) {
	c, err := NewClient("smtp://relay.example.com:587", "user", "key", "noreply@cyhdev.com")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	c.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	if err := c.Send("alice@example.com", "Verify your email", "Click the link."); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAddr != "relay.example.com:587" || gotFrom != "noreply@cyhdev.com" {
		t.Fatalf("addr=%q from=%q", gotAddr, gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "alice@example.com" {
		t.Fatalf("to = %v", gotTo)
	}
	for _, want := range []string{"Subject: Verify your email", "Click the link.", "charset=utf-8"} {
		if !bytes.Contains(gotMsg, []byte(want)) {
			t.Fatalf("message missing %q:\n%s", want, gotMsg)
		}
	}
}

func TestSendRejectsNonAddress(t *testing.T) {
	c, _ := NewClient("smtp://relay.example.com", "u", "k", "f@x.com")
	if err := c.Send("not-an-address", "s", "b"); err == nil {
		t.Fatal("bad recipient accepted")
	}
}
