package service

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/phijaro/octo-oauth-demo/internal/config"
	"github.com/phijaro/octo-oauth-demo/internal/domain"
)

// SendMailFunc has the signature of smtp.SendMail.
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// NotificationService emails the operator about each enrollment. It is the
// "email" sink and is enabled only when an SMTP relay is configured.
type NotificationService struct {
	cfg    config.SinkConfig
	logger *zap.Logger
	send   SendMailFunc
}

// NewNotificationService creates the service. A nil send uses smtp.SendMail.
func NewNotificationService(cfg config.SinkConfig, logger *zap.Logger, send SendMailFunc) *NotificationService {
	if send == nil {
		send = smtp.SendMail
	}
	return &NotificationService{cfg: cfg, logger: logger, send: send}
}

func (n *NotificationService) Name() string { return "email" }

func (n *NotificationService) Enabled() bool { return strings.TrimSpace(n.cfg.SMTPServer) != "" }

// Deliver sends the enrollment, including the unredacted refresh token, to the
// configured operator address.
func (n *NotificationService) Deliver(ctx context.Context, enrollment domain.Enrollment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := relayAddr(n.cfg.SMTPServer)
	msg := n.composeMessage(enrollment)
	if err := n.send(addr, nil, n.cfg.EmailFrom, []string{n.cfg.EmailTo}, msg); err != nil {
		return fmt.Errorf("smtp %s: %w", addr, err)
	}
	n.logger.Debug("enrollment notification sent",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("relay", addr))
	return nil
}

func (n *NotificationService) composeMessage(enrollment domain.Enrollment) []byte {
	subject := "Enrolment from the OAuth app: " + enrollment.Email

	body := fmt.Sprintf("\nGreat news! %s (%s) has enrolled in the study.\n\n"+
		"Their refresh token is as follows:\n\n%s\n",
		enrollment.Name, enrollment.Email, enrollment.RefreshToken)

	var buf bytes.Buffer
	writeHeader(&buf, "From", n.cfg.EmailFrom)
	writeHeader(&buf, "To", n.cfg.EmailTo)
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", headerValue(subject)))
	writeHeader(&buf, "MIME-Version", "1.0")
	writeHeader(&buf, "Content-Type", `text/plain; charset="utf-8"`)
	writeHeader(&buf, "Content-Transfer-Encoding", "8bit")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return buf.Bytes()
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(headerValue(value))
	buf.WriteString("\r\n")
}

// headerValue drops line breaks so claim values cannot inject headers.
func headerValue(v string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(v)
}

// relayAddr appends the default SMTP port when the configured relay has none.
func relayAddr(server string) string {
	server = strings.TrimSpace(server)
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, "25")
}
