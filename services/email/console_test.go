package emailsvc

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/orgalumni/alumni/core"
	logsvc "github.com/orgalumni/alumni/services/logger"
)

func newMock() *ConsoleServiceMock {
	conf := core.NewTestConfig()
	return NewConsoleServiceMock(conf, logsvc.NewRollbarLogger(zap.NewNop(), conf))
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	svc := newMock()
	to := []mail.Address{{Name: "Ada", Address: "ada@alumni.io"}}

	svc.SendMessages(
		&core.EmailMessage{To: to, Subject: "plain", BodyStr: "hello"},
		&core.EmailMessage{Subject: "no recipient", BodyStr: "hello"},
		&core.EmailMessage{To: to, Subject: "no content"},
		&core.EmailMessage{To: to, Subject: "unknown template", TemplateName: "lol"},
		&core.EmailMessage{
			To:           to,
			Subject:      "verified",
			TemplateName: core.TmplAccountVerified,
			TemplateData: map[string]string{"Name": "Ada <3", "URL": "http://alumni.test"},
		},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, "hello", sent[0].TextContent)
	assert.Empty(t, sent[0].HTMLContent)

	verified := sent[1]
	assert.True(t, strings.HasPrefix(verified.TextContent, "Hi Ada <3,"), verified.TextContent)
	assert.Contains(t, verified.TextContent, "http://alumni.test")
	assert.Contains(t, verified.HTMLContent, "Ada &lt;3")

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}

func TestConsoleService_send(t *testing.T) {
	svc := newMock()
	msg := core.EmailMessage{
		To:          []mail.Address{{Address: "a@alumni.io"}, {Address: "b@alumni.io"}},
		Subject:     "subject",
		TextContent: "text",
		HTMLContent: "<p>html</p>",
	}
	assert.NoError(t, svc.send(msg))
	assert.Equal(t, "<a@alumni.io>, <b@alumni.io>", svc.joinAddresses(msg.To))
}

func TestSendgridService_prepare(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewSendgridService(conf, logsvc.NewRollbarLogger(zap.NewNop(), conf)).(*sendgridService)

	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Ada", Address: "ada@alumni.io"}},
		Cc:          []mail.Address{{Address: "cc@alumni.io"}},
		Subject:     "Welcome",
		TextContent: "text",
		HTMLContent: "<p>html</p>",
	})
	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "["+conf.AppName+"] Welcome", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "ada@alumni.io", p.To[0].Address)
	assert.Len(t, p.CC, 1)
	assert.Equal(t, "noreply@alumni.test", m.From.Address)
	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "text/html", m.Content[1].Type)
}
