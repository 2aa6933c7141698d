package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestGateway(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/entity", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Telegram-Session") != "sess-token" {
			t.Errorf("missing session header")
		}
		switch r.URL.Query().Get("link") {
		case "t.me/somechannel":
			json.NewEncoder(w).Encode(Entity{ID: 42, Title: "Some Channel", Username: "somechannel"})
		case "t.me/+invite":
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]interface{}{"type": "peer_unresolved", "message": "no such peer"})
		case "t.me/flooded":
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{"type": "flood_wait", "message": "slow down", "seconds": 42})
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	mux.HandleFunc("/v1/invites/import", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]interface{}{"type": "already_participant", "message": "joined before"})
	})
	mux.HandleFunc("/v1/channels/full", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(FullChannel{ID: 42, About: "news", Participants: 100})
	})
	mux.HandleFunc("/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		views := 1000
		json.NewEncoder(w).Encode([]Message{
			{ID: 7, Date: time.Now(), Views: &views},
			{ID: 6, Date: time.Now().Add(-time.Hour)},
		})
	})
	mux.HandleFunc("/v1/photo", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	return httptest.NewServer(mux)
}

func TestGatewayClient(t *testing.T) {
	gw := newTestGateway(t)
	defer gw.Close()

	client := NewGatewayClient(ClientConfig{
		BaseURL: gw.URL,
		Session: "sess-token",
		Timeout: 5 * time.Second,
	})
	ctx := context.Background()

	entity, err := client.ResolveEntity(ctx, "t.me/somechannel")
	if err != nil {
		t.Fatal(err)
	}
	if entity.ID != 42 || entity.Title != "Some Channel" {
		t.Errorf("unexpected entity %+v", entity)
	}

	if _, err := client.ResolveEntity(ctx, "t.me/+invite"); err != ErrPeerUnresolved {
		t.Errorf("expected ErrPeerUnresolved, got %v", err)
	}

	_, err = client.ResolveEntity(ctx, "t.me/flooded")
	flood, ok := err.(*FloodWaitError)
	if !ok {
		t.Fatalf("expected FloodWaitError, got %v", err)
	}
	if flood.Seconds != 42 {
		t.Errorf("expected 42 seconds, got %d", flood.Seconds)
	}

	if err := client.ImportInvite(ctx, "abcdef"); err != ErrAlreadyParticipant {
		t.Errorf("expected ErrAlreadyParticipant, got %v", err)
	}

	full, err := client.FullChannel(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if full.Participants != 100 {
		t.Errorf("unexpected full channel %+v", full)
	}

	messages, err := client.Messages(ctx, 42, 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Views == nil || *messages[0].Views != 1000 {
		t.Errorf("expected views on first message, got %+v", messages[0])
	}
	if messages[1].Views != nil {
		t.Errorf("expected no views on second message, got %+v", messages[1])
	}

	photo, err := client.ProfilePhoto(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if len(photo) != 4 {
		t.Errorf("expected photo bytes, got %d bytes", len(photo))
	}
}
