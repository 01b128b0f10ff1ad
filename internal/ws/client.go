package ws

import (
	"net/http"
	"time"

	"github.com/Mikhail-2byte/Dnd-version2/internal/auth"
	"github.com/Mikhail-2byte/Dnd-version2/internal/config"
	"github.com/Mikhail-2byte/Dnd-version2/internal/metrics"
	"github.com/Mikhail-2byte/Dnd-version2/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

// Client 代表一条存活的 WebSocket 连接。身份在握手成功后绑定，
// room 与 closed 由 hub.mu 保护；closed 置位时 send 通道同步关闭。
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uuid.UUID
	uname  string
	room   *RoomHub
	closed bool
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Serve 处理 WebSocket 握手：凭证在建立通道时一次性校验，
// 缺失或无效的凭证在处理任何事件之前就拒绝连接。
func Serve(co *Coordinator, db *gorm.DB, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := auth.BearerToken(c)
		if tokenStr == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := auth.ParseAccessToken(tokenStr, cfg.JWTSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		var user models.User
		if err := db.First(&user, "id = ?", claims.UserID).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := &Client{
			hub:    co.Hub(),
			conn:   conn,
			send:   make(chan []byte, 256),
			userID: user.ID,
			uname:  user.Username,
		}
		metrics.WsConnections.Inc()

		go client.writePump()
		client.readPump(co)
	}
}

func (c *Client) readPump(co *Coordinator) {
	defer func() {
		co.Disconnect(c)
		metrics.WsConnections.Dec()
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(1 << 20) // 1MB
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		ev, err := DecodeEvent(data)
		if err != nil {
			co.unicastError(c, "Invalid event")
			continue
		}
		metrics.WsEventsTotal.WithLabelValues(EventName(ev)).Inc()
		c.hub.Submit(ev.game(), action{kind: actionEvent, client: c, event: ev})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			_ = w.Close()
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
