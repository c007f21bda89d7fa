package mailadapter

import (
	"context"
	"errors"
	"net/smtp"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "turntable/contexts/media-generation/video-pipeline-service/domain/errors"
	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

func sampleNotification() ports.VideoReadyNotification {
	return ports.VideoReadyNotification{
		RunID:    "run-7",
		Email:    "maker@example.com",
		Title:    "Oak *Side* Table",
		VideoRef: "https://v.fal.media/out.mp4",
	}
}

func TestComposeVideoReadyRendersHTML(t *testing.T) {
	message, err := ComposeVideoReady(sampleNotification())
	require.NoError(t, err)
	assert.Equal(t, "maker@example.com", message.To)
	assert.Equal(t, "Your product video is ready: Oak *Side* Table", message.Subject)
	assert.Contains(t, message.HTML, `<a href="https://v.fal.media/out.mp4">`)
	assert.Contains(t, message.HTML, "<h1>Your video is ready</h1>")
	assert.Contains(t, message.HTML, "<strong>Oak *Side* Table</strong>")
	assert.Contains(t, message.HTML, "<code>run-7</code>")
}

func TestSMTPSenderDeliversMultipartMessage(t *testing.T) {
	sender := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 2525, Username: "u", Password: "p", From: "videos@example.com"}, nil)
	var gotAddr string
	var gotTo []string
	var gotBody string
	sender.sendMail = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotTo = to
		gotBody = string(msg)
		assert.NotNil(t, auth)
		assert.Equal(t, "videos@example.com", from)
		return nil
	}

	require.NoError(t, sender.SendVideoReady(context.Background(), sampleNotification()))
	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.Equal(t, []string{"maker@example.com"}, gotTo)
	assert.Contains(t, gotBody, "multipart/alternative")
	assert.Contains(t, gotBody, "text/html")
}

func TestSMTPSenderClassifiesReplies(t *testing.T) {
	sender := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "videos@example.com"}, nil)

	sender.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return &textproto.Error{Code: 451, Msg: "try again later"}
	}
	assert.ErrorIs(t, sender.SendVideoReady(context.Background(), sampleNotification()), domainerrors.ErrTransient)

	sender.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return &textproto.Error{Code: 550, Msg: "mailbox unavailable"}
	}
	assert.ErrorIs(t, sender.SendVideoReady(context.Background(), sampleNotification()), domainerrors.ErrCollaboratorFailed)

	sender.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("boom")
	}
	err := sender.SendVideoReady(context.Background(), sampleNotification())
	assert.False(t, errors.Is(err, domainerrors.ErrTransient))
}

func TestSMTPConfigConfigured(t *testing.T) {
	assert.False(t, SMTPConfig{}.Configured())
	assert.True(t, SMTPConfig{Host: "smtp", From: "a@b.c"}.Configured())
}

func TestLogSenderNeverFails(t *testing.T) {
	require.NoError(t, NewLogSender(nil).SendVideoReady(context.Background(), sampleNotification()))
}
