// internal/service/cart/interfaces/stock_feed.go
package interfaces

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bazaar/internal/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { // 管理后台同源部署，简化处理
		return true
	},
}

// stockChangeMessage 是推给管理后台的库存变更消息。
type stockChangeMessage struct {
	ProductID string    `json:"productId"`
	Available int       `json:"available"`
	At        time.Time `json:"at"`
}

// StockFeedHub 维护所有管理后台的 WebSocket 连接并广播库存变更。
// 实现了 port.StockNotifier。推送没有投递保证：
// 发不进去的慢客户端直接丢消息，后台刷新页面即可追平。
type StockFeedHub struct {
	clients    map[*feedClient]struct{}
	register   chan *feedClient
	unregister chan *feedClient
	broadcast  chan []byte
	lock       sync.RWMutex
}

func NewStockFeedHub() *StockFeedHub {
	return &StockFeedHub{
		clients:    make(map[*feedClient]struct{}),
		register:   make(chan *feedClient),
		unregister: make(chan *feedClient),
		broadcast:  make(chan []byte, 64),
	}
}

// Run 启动广播循环，应在独立 goroutine 中调用。
func (h *StockFeedHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.lock.Lock()
			h.clients[client] = struct{}{}
			h.lock.Unlock()
			logger.Logger.Info().Msg("stock feed client connected")
		case client := <-h.unregister:
			h.lock.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.lock.Unlock()
			logger.Logger.Info().Msg("stock feed client disconnected")
		case message := <-h.broadcast:
			h.lock.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// 客户端写不动了，丢这条消息
				}
			}
			h.lock.RUnlock()
		}
	}
}

// NotifyStockChanged 实现 port.StockNotifier。
func (h *StockFeedHub) NotifyStockChanged(productID string, available int) {
	payload, err := json.Marshal(stockChangeMessage{
		ProductID: productID,
		Available: available,
		At:        time.Now(),
	})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		// 广播队列满了就丢，库存推送不追求可靠投递
	}
}

// ServeWs 把 HTTP 连接升级为 WebSocket 并挂进 Hub。
func (h *StockFeedHub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &feedClient{hub: h, conn: conn, send: make(chan []byte, 16)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// feedClient 是一条 WebSocket 连接的代表。
type feedClient struct {
	hub  *StockFeedHub
	conn *websocket.Conn
	send chan []byte
}

func (c *feedClient) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

func (c *feedClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		// 后台只收推送，读循环仅用于感知断连和心跳
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
