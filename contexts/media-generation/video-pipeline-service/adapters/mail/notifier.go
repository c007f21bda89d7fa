// Package mailadapter delivers "video ready" notifications.
package mailadapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"

	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

const subjectPrefix = "Your product video is ready"

type Message struct {
	To       string
	Subject  string
	Markdown string
	HTML     string
}

// ComposeVideoReady renders the notification body as markdown and HTML.
func ComposeVideoReady(notification ports.VideoReadyNotification) (Message, error) {
	title := strings.TrimSpace(notification.Title)
	subject := subjectPrefix
	if title != "" {
		subject = subjectPrefix + ": " + title
	}

	var body strings.Builder
	body.WriteString("# Your video is ready\n\n")
	if title != "" {
		fmt.Fprintf(&body, "The turntable video for **%s** has finished rendering.\n\n", escapeMarkdown(title))
	} else {
		body.WriteString("Your turntable video has finished rendering.\n\n")
	}
	fmt.Fprintf(&body, "[Watch or download it here](%s)\n\n", notification.VideoRef)
	fmt.Fprintf(&body, "Reference: `%s`\n", notification.RunID)

	var html bytes.Buffer
	if err := goldmark.New().Convert([]byte(body.String()), &html); err != nil {
		return Message{}, fmt.Errorf("render notification: %w", err)
	}
	return Message{
		To:       notification.Email,
		Subject:  subject,
		Markdown: body.String(),
		HTML:     html.String(),
	}, nil
}

func escapeMarkdown(value string) string {
	replacer := strings.NewReplacer("*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`)
	return replacer.Replace(value)
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (c SMTPConfig) Configured() bool {
	return strings.TrimSpace(c.Host) != "" && strings.TrimSpace(c.From) != ""
}

type sendMailFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

type SMTPSender struct {
	cfg      SMTPConfig
	sendMail sendMailFunc
	logger   *slog.Logger
}

func NewSMTPSender(cfg SMTPConfig, logger *slog.Logger) *SMTPSender {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	return &SMTPSender{cfg: cfg, sendMail: smtp.SendMail, logger: logger}
}

func (s *SMTPSender) SendVideoReady(ctx context.Context, notification ports.VideoReadyNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	message, err := ComposeVideoReady(notification)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := s.sendMail(addr, auth, s.cfg.From, []string{message.To}, buildMIME(s.cfg.From, message)); err != nil {
		if isTemporarySMTP(err) {
			return fmt.Errorf("%w: smtp send: %w", domainerrors.ErrTransient, err)
		}
		return fmt.Errorf("%w: smtp send: %w", domainerrors.ErrCollaboratorFailed, err)
	}

	s.logger.Info("video ready notification sent",
		"event", "video_ready_notification_sent",
		"module", "media-generation/video-pipeline-service",
		"layer", "adapter",
		"run_id", notification.RunID,
	)
	return nil
}

// isTemporarySMTP reports network failures and 4xx SMTP replies.
func isTemporarySMTP(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var reply *textproto.Error
	return errors.As(err, &reply) && reply.Code >= 400 && reply.Code < 500
}

func buildMIME(from string, message Message) []byte {
	boundary := "turntable-notification-boundary"
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", message.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", message.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&buf, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, message.Markdown)
	fmt.Fprintf(&buf, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", boundary, message.HTML)
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes()
}

// LogSender records notifications in the log when no SMTP relay is set up.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendVideoReady(_ context.Context, notification ports.VideoReadyNotification) error {
	message, err := ComposeVideoReady(notification)
	if err != nil {
		return err
	}
	s.logger.Info("video ready notification logged",
		"event", "video_ready_notification_logged",
		"module", "media-generation/video-pipeline-service",
		"layer", "adapter",
		"run_id", notification.RunID,
		"subject", message.Subject,
		"video_ref", notification.VideoRef,
	)
	return nil
}
