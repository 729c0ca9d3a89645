package email

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPSendBuildsHTMLMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	p := NewSMTP(Config{Host: "mail.local", Port: 2525, From: "boutique@example.com", FromName: "L'Atelier"})
	p.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	p.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		assert.Nil(t, a, "no auth without username")
		return nil
	}

	err := p.Send(context.Background(), []string{"jeanne@example.com"}, "Commande expédiée", "<p>Bonjour</p>")
	require.NoError(t, err)

	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, "boutique@example.com", gotFrom)
	assert.Equal(t, []string{"jeanne@example.com"}, gotTo)
	msg := string(gotMsg)
	assert.Contains(t, msg, "Content-Type: text/html; charset=\"UTF-8\"\r\n")
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\n<p>Bonjour</p>"))
}

func TestSMTPSendErrors(t *testing.T) {
	p := NewSMTP(Config{Host: "mail.local", Port: 25, Username: "u", Password: "p", From: "a@b.c"})
	p.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("421 try later") }

	assert.ErrorIs(t, p.Send(context.Background(), nil, "s", "b"), ErrNoRecipient)
	assert.ErrorContains(t, p.Send(context.Background(), []string{"x@y.z"}, "s", "b"), "421 try later")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Send(ctx, []string{"x@y.z"}, "s", "b"), context.Canceled)
}
