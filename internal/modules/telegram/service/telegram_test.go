package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// botServer отвечает на getMe; sendMessage отдаёт handler.
func botServer(t *testing.T, sendMessage http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"fx","username":"fx_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			sendMessage(w, r)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/bot%s/%s"
}

func TestTelegram_Send(t *testing.T) {
	got := make(chan string, 1)
	endpoint := botServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		got <- r.Form.Get("text")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":5,"date":0,"chat":{"id":77,"type":"private"}}}`)
	})

	tg, err := NewTelegram(Config{Token: "tkn", ChatID: 77, Endpoint: endpoint, CallTimeout: time.Second}, Deps{})
	require.NoError(t, err)

	require.NoError(t, tg.SendF(context.Background(), "🎯 [%s] закрыта", "EUR_USD"))
	assert.Equal(t, "🎯 [EUR_USD] закрыта", <-got)
}

func TestTelegram_SendIsBoundedByTimeout(t *testing.T) {
	release := make(chan struct{})
	endpoint := botServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	// выполняется раньше srv.Close
	t.Cleanup(func() { close(release) })

	tg, err := NewTelegram(Config{Token: "tkn", ChatID: 77, Endpoint: endpoint, CallTimeout: 50 * time.Millisecond}, Deps{})
	require.NoError(t, err)

	start := time.Now()
	err = tg.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestTelegram_SendWithoutChat(t *testing.T) {
	endpoint := botServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("nothing must be sent without chat_id")
	})
	tg, err := NewTelegram(Config{Token: "tkn", Endpoint: endpoint}, Deps{})
	require.NoError(t, err)

	assert.Error(t, tg.Send(context.Background(), "hello"))
}
