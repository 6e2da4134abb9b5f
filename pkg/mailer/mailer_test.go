package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ticketsplit/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.MailConfig {
	return &config.MailConfig{
		APIKey:      "SG.unit-test",
		FromAddress: "no-reply@ticketsplit.app",
		FromName:    "Ticketsplit",
	}
}

func TestSend(t *testing.T) {
	var got sendRequest
	var auth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewWithURL(testConfig(), srv.URL)
	err := c.Send(context.Background(), "bob@example.com", "hello", "greetings from the test")
	require.NoError(t, err)

	assert.Equal(t, "Bearer SG.unit-test", auth)
	require.Len(t, got.Personalizations, 1)
	require.Len(t, got.Personalizations[0].To, 1)
	assert.Equal(t, "bob@example.com", got.Personalizations[0].To[0].Email)
	assert.Equal(t, "no-reply@ticketsplit.app", got.From.Email)
	assert.Equal(t, "hello", got.Subject)
	require.Len(t, got.Content, 1)
	assert.Equal(t, "text/plain", got.Content[0].Type)
	assert.Equal(t, "greetings from the test", got.Content[0].Value)
}

func TestSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	c := NewWithURL(testConfig(), srv.URL)
	err := c.Send(context.Background(), "bob@example.com", "hello", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSendContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewWithURL(testConfig(), srv.URL)
	err := c.Send(ctx, "bob@example.com", "hello", "body")
	assert.Error(t, err)
}
