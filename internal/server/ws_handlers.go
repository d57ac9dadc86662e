package server

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// upgrader upgrades HTTP requests to WebSockets.
//
// CheckOrigin accepts every origin; restrict it before exposing the server
// beyond localhost.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWSSweep streams sweep progress events.
func (s *Server) handleWSSweep(w http.ResponseWriter, r *http.Request) {
	s.handleWSHub(w, r, s.wsSweep)
}

// handleWSHub upgrades, registers and then reads until the client goes away.
// Incoming messages are discarded.
func (s *Server) handleWSHub(w http.ResponseWriter, r *http.Request, hub *WSHub) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := hub.Add(conn)
	_ = client.Send(WSMessage{Type: "hello", Data: map[string]int{"models": s.models.Len()}})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			hub.Remove(client)
			return
		}
	}
}
