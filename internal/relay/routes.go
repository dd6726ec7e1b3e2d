package relay

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Peers connect from native clients, not browsers; origin checks buy
	// nothing here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWs upgrades a signaling connection and hands it to the hub.
func ServeWs(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "err", err)
			return
		}

		client := newClient(hub, conn)
		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}

// ServeCaptions upgrades a caption connection. The room is carried as a
// query parameter because caption frames themselves have no routing header.
func ServeCaptions(hub *CaptionHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.URL.Query().Get("room")
		if roomID == "" {
			http.Error(w, "missing room parameter", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("caption upgrade failed", "err", err)
			return
		}

		client := newCaptionClient(hub, conn, roomID)
		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}

// NewMux assembles the relay's HTTP surface.
func NewMux(hub *Hub, captions *CaptionHub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Relay is healthy."))
	})
	mux.HandleFunc("/ws", ServeWs(hub))
	mux.HandleFunc("/captions", ServeCaptions(captions))
	return mux
}
