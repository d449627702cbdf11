package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func TestBuildEmbeds(t *testing.T) {
	loc := &Location{City: "Izmir", Country: "Turkey"}

	tests := []struct {
		name      string
		event     Event
		wantTitle string
		wantColor int
		check     func(t *testing.T, e Embed)
	}{
		{
			name:      "site visit",
			event:     Event{EventType: EventSiteVisit, IPAddress: "1.2.3.4", Location: loc},
			wantTitle: "🚀 New site visit",
			wantColor: ColorBlurple,
			check: func(t *testing.T, e Embed) {
				assert.Equal(t, "IP: 1.2.3.4 | Location: Izmir, Turkey", e.Footer.Text)
			},
		},
		{
			name: "guestbook entry",
			event: Event{EventType: EventGuestbookEntry, Data: map[string]any{
				"userDisplay": "ada", "message": "hello",
			}},
			wantTitle: "📝 New guestbook message",
			wantColor: ColorBlue,
			check: func(t *testing.T, e Embed) {
				require.Len(t, e.Fields, 2)
				assert.Equal(t, "ada", e.Fields[0].Value)
				assert.True(t, e.Fields[0].Inline)
				assert.Equal(t, "hello", e.Fields[1].Value)
			},
		},
		{
			name:      "guestbook entry defaults",
			event:     Event{EventType: EventGuestbookEntry},
			wantTitle: "📝 New guestbook message",
			wantColor: ColorBlue,
			check: func(t *testing.T, e Embed) {
				assert.Equal(t, "Anonymous", e.Fields[0].Value)
				assert.Equal(t, "No content", e.Fields[1].Value)
			},
		},
		{
			name:      "visitor note",
			event:     Event{EventType: EventVisitorNote, Data: map[string]any{"noteText": "nice"}},
			wantTitle: "📌 New visitor note",
			wantColor: ColorGreen,
			check: func(t *testing.T, e Embed) {
				assert.Equal(t, "nice", e.Fields[0].Value)
			},
		},
		{
			name: "surprise comment",
			event: Event{EventType: EventSurpriseComment, Data: map[string]any{
				"comment": "wow", "originalMessage": "open me",
			}},
			wantTitle: "💬 New comment in the surprise box",
			wantColor: ColorPurple,
			check: func(t *testing.T, e Embed) {
				require.Len(t, e.Fields, 3)
				assert.Equal(t, "Anonymous", e.Fields[0].Value)
				assert.Equal(t, "open me", e.Fields[1].Value)
				assert.Equal(t, "wow", e.Fields[2].Value)
			},
		},
		{
			name: "emotion with coordinates",
			event: Event{EventType: EventEmotion, Data: map[string]any{
				"emotion": "joy", "coordinates": "38.4237, 27.1428",
			}},
			wantTitle: "💖 New emotion added: joy",
			wantColor: ColorPink,
			check: func(t *testing.T, e Embed) {
				require.Len(t, e.Fields, 1)
				assert.Contains(t, e.Fields[0].Value, "https://www.google.com/maps?q=38.4237,27.1428")
				require.NotNil(t, e.Image)
				assert.Contains(t, e.Image.URL, "center=38.4237,27.1428")
				assert.Contains(t, e.Image.URL, "markers=38.4237,27.1428,blue-pushpin")
			},
		},
		{
			name: "emotion with bad coordinates",
			event: Event{EventType: EventEmotion, Data: map[string]any{
				"emotion": "calm", "coordinates": "somewhere",
			}},
			wantTitle: "💖 New emotion added: calm",
			wantColor: ColorPink,
			check: func(t *testing.T, e Embed) {
				require.Len(t, e.Fields, 1)
				assert.Equal(t, "Coordinates", e.Fields[0].Name)
				assert.Nil(t, e.Image)
			},
		},
		{
			name: "emotion with non-finite coordinates",
			event: Event{EventType: EventEmotion, Data: map[string]any{
				"emotion": "awe", "coordinates": "NaN, Inf",
			}},
			wantTitle: "💖 New emotion added: awe",
			wantColor: ColorPink,
			check: func(t *testing.T, e Embed) {
				require.Len(t, e.Fields, 1)
				assert.Equal(t, "Coordinates", e.Fields[0].Name)
				assert.Equal(t, "NaN, Inf", e.Fields[0].Value)
				assert.Nil(t, e.Image)
			},
		},
		{
			name: "game over",
			event: Event{EventType: EventGameOver, Data: map[string]any{
				"score": float64(20480), "best_tile": 2048, "moves": 900, "variant": "classic",
			}},
			wantTitle: "🎮 Tile merge game finished",
			wantColor: ColorGold,
			check: func(t *testing.T, e Embed) {
				assert.Equal(t, "20480", e.Fields[0].Value)
				assert.Equal(t, "2048", e.Fields[1].Value)
			},
		},
		{
			name:      "unknown type",
			event:     Event{EventType: "mystery", Data: map[string]any{"k": "v"}},
			wantTitle: "⚠️ Unknown event type: mystery",
			wantColor: ColorGrey,
			check: func(t *testing.T, e Embed) {
				assert.Contains(t, e.Description, "```json")
				assert.Contains(t, e.Description, `"k": "v"`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embeds := BuildEmbeds(tt.event, fixedNow)
			require.Len(t, embeds, 1)
			e := embeds[0]
			assert.Equal(t, tt.wantTitle, e.Title)
			assert.Equal(t, tt.wantColor, e.Color)
			assert.Equal(t, "2026-03-14T15:09:26Z", e.Timestamp)
			require.NotNil(t, e.Footer)
			if tt.check != nil {
				tt.check(t, e)
			}
		})
	}
}

func TestFooter(t *testing.T) {
	e := Event{DeviceInfo: "iPhone"}
	assert.Equal(t, "IP: Unknown | Location: Unknown, Unknown | Device: iPhone", e.footer())
}

func TestParseCoordinates(t *testing.T) {
	lat, lng, ok := ParseCoordinates("34.0522, -118.2437")
	require.True(t, ok)
	assert.InDelta(t, 34.0522, lat, 1e-9)
	assert.InDelta(t, -118.2437, lng, 1e-9)

	for _, bad := range []string{"", "1,2,3", "a,b", "0, 12", "NaN, 1", "1, Inf", "-Inf, 5", "NaN, Inf"} {
		_, _, ok := ParseCoordinates(bad)
		assert.False(t, ok, bad)
	}
}

func TestWebhookNotifier_Delivers(t *testing.T) {
	var got map[string][]Embed
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, WithClock(func() time.Time { return fixedNow }))
	err := n.Notify(context.Background(), Event{EventType: EventSiteVisit})
	require.NoError(t, err)
	require.Len(t, got["embeds"], 1)
	assert.Equal(t, "🚀 New site visit", got["embeds"][0].Title)
}

func TestWebhookNotifier_MissingEventType(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	err := n.Notify(context.Background(), Event{})
	assert.ErrorIs(t, err, ErrMissingEventType)
	assert.Equal(t, missingTypeWarning, body["content"])
}

func TestWebhookNotifier_NotConfigured(t *testing.T) {
	err := NewWebhookNotifier("").Notify(context.Background(), Event{EventType: EventSiteVisit})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestWebhookNotifier_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, WithRetry(3, time.Millisecond))
	require.NoError(t, n.Notify(context.Background(), Event{EventType: EventVisitorNote}))
	assert.Equal(t, int32(3), hits.Load())
}

func TestWebhookNotifier_ClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "bad embed", http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, WithRetry(3, time.Millisecond))
	err := n.Notify(context.Background(), Event{EventType: EventVisitorNote})
	require.Error(t, err)

	var derr *DeliveryError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, http.StatusBadRequest, derr.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestNopNotifier(t *testing.T) {
	var n Notifier = NopNotifier{}
	assert.NoError(t, n.Notify(context.Background(), Event{}))
}
