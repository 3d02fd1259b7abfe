// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, channel statistics, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Tyrowin/channelrelay/internal/registry"
)

// HealthText is the body served on every plain HTTP request.
const HealthText = "WebSocket server running"

// WebSocketHandler upgrades GET requests to WebSocket connections and hands
// the resulting client to the hub, which starts its pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr, s.cfg)
	if err := s.hub.Register(client); err != nil {
		s.log.Warn("rejecting connection", "addr", r.RemoteAddr, "error", err)
		_ = conn.Close()
	}
}

// HealthHandler answers plain HTTP requests, including CORS preflights.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, HealthText)
}

// StatsResponse is the body of the stats endpoint.
type StatsResponse struct {
	registry.Stats
	Connections int `json:"connections"`
}

// StatsHandler reports channel, membership and connection counts.
func (s *Server) StatsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	resp := StatsResponse{Stats: s.registry.Stats(), Connections: s.hub.ClientCount()}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn("error writing stats response", "error", err)
	}
}

// TestPageHandler serves an HTML page for trying the channel protocol from a
// browser.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPage)
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>Channel Relay Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
        }
        input[type="text"] { width: 200px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:disabled { background-color: #999; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>Channel Relay Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
        <input type="text" id="channelInput" placeholder="Channel" disabled>
        <button id="joinButton" onclick="joinChannel()" disabled>Join</button>
    </div>
    <div style="margin-top: 10px">
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <div id="messages"></div>

    <script>
        let ws = null;
        let requestId = 0;
        const messagesDiv = document.getElementById('messages');
        const channelInput = document.getElementById('channelInput');
        const messageInput = document.getElementById('messageInput');
        const controls = ['channelInput', 'joinButton', 'messageInput', 'sendButton'].map(id => document.getElementById(id));
        const connectButton = document.getElementById('connectButton');
        const statusDiv = document.getElementById('status');

        function addLine(text, color) {
            const line = document.createElement('div');
            line.style.color = color || 'gray';
            line.textContent = text;
            messagesDiv.appendChild(line);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            controls.forEach(el => el.disabled = !connected);
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
                return;
            }
            ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
            ws.onopen = () => updateStatus(true);
            ws.onmessage = (event) => {
                const colors = { system: 'gray', error: 'red', broadcast: 'green' };
                const data = JSON.parse(event.data);
                addLine(event.data, colors[data.type]);
            };
            ws.onclose = () => { addLine('Connection closed'); updateStatus(false); ws = null; };
        }

        function send(payload) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify(payload));
                addLine(JSON.stringify(payload), 'blue');
            }
        }

        function joinChannel() {
            send({ type: 'join', channel: channelInput.value.trim(), id: String(++requestId) });
        }

        function sendMessage() {
            const text = messageInput.value.trim();
            if (!text) {
                return;
            }
            send({ type: 'message', channel: channelInput.value.trim(), message: { text: text } });
            messageInput.value = '';
        }

        messageInput.addEventListener('keypress', (e) => { if (e.key === 'Enter') sendMessage(); });
    </script>
</body>
</html>`
