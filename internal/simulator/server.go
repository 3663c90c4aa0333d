package simulator

import (
	"net/http"
	"time"

	"rpctail/internal/stream"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Push-channel timing.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12 // clients send nothing but control frames
)

// Routes of the simulated gateway.
const (
	PushPath = "/ws/logs"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Routes builds the gin router of the simulated gateway.
func (s *Simulator) Routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "subscribers": s.Subscribers()})
	})
	router.GET(PushPath, s.push)

	api := router.Group("/api")
	{
		api.GET("/stats", func(c *gin.Context) { c.JSON(http.StatusOK, s.Stats()) })
		api.GET("/networks", func(c *gin.Context) { c.JSON(http.StatusOK, s.Networks()) })
	}
	return router
}

// push sends the history as an initial frame, then every new event.
func (s *Simulator) push(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if s.log != nil {
			s.log.Errorw("sim_ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	history, frames, cancel := s.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go s.drain(conn, done)

	initial, err := stream.EncodeSnapshot(history)
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, initial); err != nil {
		if s.log != nil {
			s.log.Infow("sim_ws_write_failed_initial", "err", err)
		}
		return
	}
	if s.log != nil {
		s.log.Infow("sim_ws_subscribed", "remote", c.ClientIP(), "history", len(history))
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case frame, ok := <-frames:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "simulator stopping"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				if s.log != nil {
					s.log.Infow("sim_ws_write_failed", "err", err)
				}
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drain reads control frames and detects disconnects.
func (s *Simulator) drain(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
