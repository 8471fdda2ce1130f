package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	jwtpkg "mailsight/backend/internal/auth/jwt"
	"mailsight/backend/internal/domain"
	"mailsight/backend/internal/monitoring"
)

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				// 没有 Origin，视为同源请求
				return true
			}

			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}

			return false
		},
	}
}

// MessageType 定义WebSocket消息类型
type MessageType string

const (
	MessageTypeReadEvent MessageType = "read_event"
	MessageTypePing      MessageType = "ping"
	MessageTypePong      MessageType = "pong"
	MessageTypeError     MessageType = "error"
)

// Message 定义WebSocket消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client 代表一个WebSocket客户端连接
type Client struct {
	ID     string
	UserID string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	log    *zap.Logger
}

// Hub 按用户分发打开事件的 WebSocket 连接管理器
type Hub struct {
	clients        map[string]*Client            // clientID -> Client
	users          map[string]map[string]*Client // userID -> clientID -> Client
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *userMessage
	mu             sync.RWMutex
	log            *zap.Logger
	allowedOrigins []string
	jwtManager     *jwtpkg.Manager
	metrics        *monitoring.Metrics
}

// userMessage 发给某个用户全部连接的消息
type userMessage struct {
	UserID  string
	Message *Message
}

// NewHub 创建WebSocket Hub
func NewHub(allowedOrigins []string, jwtManager *jwtpkg.Manager, metrics *monitoring.Metrics, logger *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Hub{
		clients:        make(map[string]*Client),
		users:          make(map[string]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *userMessage, 256),
		log:            logger,
		allowedOrigins: allowedOrigins,
		jwtManager:     jwtManager,
		metrics:        metrics,
	}
}

// Run 启动Hub
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("websocket hub stopped")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			if h.users[client.UserID] == nil {
				h.users[client.UserID] = make(map[string]*Client)
			}
			h.users[client.UserID][client.ID] = client
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.WebsocketClients.Inc()
			}
			h.log.Info("client registered",
				zap.String("id", client.ID),
				zap.String("user_id", client.UserID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				if clients, exists := h.users[client.UserID]; exists {
					delete(clients, client.ID)
					if len(clients) == 0 {
						delete(h.users, client.UserID)
					}
				}
				delete(h.clients, client.ID)
				close(client.send)
				if h.metrics != nil {
					h.metrics.WebsocketClients.Dec()
				}
				h.log.Info("client unregistered", zap.String("id", client.ID))
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.broadcastToUser(msg.UserID, msg.Message)

		case <-ticker.C:
			h.pingAllClients()
		}
	}
}

// ReadEventData 打开事件通知数据
type ReadEventData struct {
	MailID     string `json:"mailId"`
	PixelID    string `json:"pixelId"`
	ReadAt     string `json:"readAt"`
	IPAddress  string `json:"ipAddress"`
	DeviceType string `json:"deviceType"`
	Browser    string `json:"browser"`
	OS         string `json:"os"`
}

// NotifyReadEvent 向邮件拥有者的全部在线连接推送打开事件。
// 实现 service.ReadEventNotifier。
func (h *Hub) NotifyReadEvent(userID string, log *domain.ReadLog) {
	eventData := ReadEventData{
		MailID:     log.MailID,
		PixelID:    log.PixelID,
		ReadAt:     log.ReadAt.Format(time.RFC3339),
		IPAddress:  log.IPAddress,
		DeviceType: string(log.DeviceType),
		Browser:    string(log.Browser),
		OS:         string(log.OS),
	}

	data, err := json.Marshal(eventData)
	if err != nil {
		h.log.Error("failed to marshal read event", zap.Error(err))
		return
	}

	msg := &Message{
		Type:      MessageTypeReadEvent,
		Data:      data,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- &userMessage{UserID: userID, Message: msg}:
	default:
		// 广播队列满时丢弃，像素热路径不能被推送阻塞
		h.log.Warn("broadcast queue full, dropping read event",
			zap.String("user_id", userID))
	}
}

// broadcastToUser 向某个用户的所有客户端广播消息
func (h *Hub) broadcastToUser(userID string, msg *Message) {
	h.mu.RLock()
	clients := h.users[userID]
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	for _, client := range clients {
		select {
		case client.send <- data:
		default:
			// 客户端阻塞，跳过
			h.log.Warn("client channel blocked, skipping", zap.String("clientID", client.ID))
		}
	}
}

// pingAllClients 向所有客户端发送ping
func (h *Hub) pingAllClients() {
	msg := &Message{
		Type:      MessageTypePing,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
			// 跳过阻塞的客户端
		}
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.users = make(map[string]map[string]*Client)
}

// authenticateClient 认证客户端
func (h *Hub) authenticateClient(c *gin.Context) (*Client, error) {
	// 从URL参数或Header获取token
	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}
	}

	if token == "" {
		return nil, errors.New("missing authentication token")
	}

	claims, err := h.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, errors.New("invalid authentication token")
	}

	client := &Client{
		ID:     generateClientID(),
		UserID: claims.UserID,
		log:    h.log,
	}

	return client, nil
}

// HandleWebSocket 处理WebSocket连接
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		client, err := hub.authenticateClient(c)
		if err != nil {
			hub.log.Warn("websocket authentication failed",
				zap.Error(err),
				zap.String("remote_addr", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Error("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client.conn = conn
		client.hub = hub
		client.send = make(chan []byte, 256)

		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}

// readPump 处理客户端消息
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error("websocket error", zap.Error(err))
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump 发送消息给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.conn.WriteMessage(websocket.TextMessage, message)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypePong:
		// 客户端响应pong，更新活动时间
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	default:
		c.log.Warn("unknown message type", zap.String("type", string(msg.Type)))
	}
}

// generateClientID 生成客户端ID
func generateClientID() string {
	return uuid.NewString()
}
