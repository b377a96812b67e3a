// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mail_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/palm/internal/platform/mail"
)

/* TestRenderReset verifies the code and greeting reach both bodies and markup is escaped. */
func TestRenderReset(t *testing.T) {
	message, err := mail.RenderReset("ada@palm.app", "Ada <b>", "a1b2c3", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, "ada@palm.app", message.To)
	assert.Equal(t, mail.ResetSubject, message.Subject)
	assert.Contains(t, message.Text, "a1b2c3")
	assert.Contains(t, message.Text, "1 hour")
	assert.Contains(t, message.HTML, "a1b2c3")
	assert.Contains(t, message.HTML, "Ada &lt;b&gt;")
	assert.NotContains(t, message.HTML, "Ada <b>")
}

/* TestMessageSMTP verifies the MIME message carries both alternatives and the addresses. */
func TestMessageSMTP(t *testing.T) {
	message, err := mail.RenderReset("ada@palm.app", "Ada", "a1b2c3", 30*time.Minute)
	require.NoError(t, err)

	msg, err := message.SMTP("PALM Mobile <no-reply@palm.app>")
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)

	payload := buf.String()
	assert.Contains(t, payload, "ada@palm.app")
	assert.Contains(t, payload, "no-reply@palm.app")
	assert.Contains(t, payload, "multipart/alternative")
	assert.Contains(t, payload, "text/plain")
	assert.Contains(t, payload, "text/html")
}

/* TestMessageSMTP_InvalidSender verifies a malformed sender address is rejected before dialing. */
func TestMessageSMTP_InvalidSender(t *testing.T) {
	message, err := mail.RenderReset("ada@palm.app", "Ada", "a1b2c3", time.Hour)
	require.NoError(t, err)

	_, err = message.SMTP("not an address")
	assert.Error(t, err)
}

/* TestNewSMTPSender verifies the relay host is required. */
func TestNewSMTPSender(t *testing.T) {
	_, err := mail.NewSMTPSender(mail.SMTPConfig{Port: 587})
	assert.Error(t, err)

	sender, err := mail.NewSMTPSender(mail.SMTPConfig{Host: "smtp.palm.app", Port: 587, Username: "palm", Password: "pw"})
	require.NoError(t, err)
	assert.NotNil(t, sender)
}

/* TestResendSender verifies the reset e-mail is posted to the Resend API with both bodies. */
func TestResendSender(t *testing.T) {
	var received struct {
		From    string   `json:"from"`
		To      []string `json:"to"`
		Subject string   `json:"subject"`
		HTML    string   `json:"html"`
		Text    string   `json:"text"`
	}
	var authorization string

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		authorization = request.Header.Get("Authorization")
		assert.Equal(t, "/emails", request.URL.Path)
		assert.NoError(t, json.NewDecoder(request.Body).Decode(&received))
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"id":"email-1"}`))
	}))
	defer server.Close()

	sender, err := mail.NewResendSender(mail.ResendConfig{
		APIKey:   "re_test",
		From:     "PALM Mobile <no-reply@palm.app>",
		TokenTTL: time.Hour,
		BaseURL:  server.URL + "/",
	})
	require.NoError(t, err)

	require.NoError(t, sender.SendResetCode(context.Background(), "ada@palm.app", "Ada", "a1b2c3"))

	assert.Equal(t, "Bearer re_test", authorization)
	assert.Equal(t, []string{"ada@palm.app"}, received.To)
	assert.Equal(t, mail.ResetSubject, received.Subject)
	assert.Contains(t, received.HTML, "a1b2c3")
	assert.Contains(t, received.Text, "1 hour")
}

/* TestResendSender_Failure verifies an API rejection surfaces as an error. */
func TestResendSender_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = writer.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"invalid from"}`))
	}))
	defer server.Close()

	sender, err := mail.NewResendSender(mail.ResendConfig{APIKey: "re_test", From: "x@palm.app", TokenTTL: time.Hour, BaseURL: server.URL + "/"})
	require.NoError(t, err)

	assert.Error(t, sender.SendResetCode(context.Background(), "ada@palm.app", "Ada", "a1b2c3"))
}

/* TestLogSender verifies development delivery never writes the code to the log. */
func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	sender := mail.NewLogSender(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, sender.SendResetCode(context.Background(), "ada@palm.app", "Ada", "a1b2c3"))

	assert.Contains(t, buf.String(), "ada@palm.app")
	assert.NotContains(t, buf.String(), "a1b2c3")
}
