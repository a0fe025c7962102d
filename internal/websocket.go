package internal

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// 系統設計問題：
//   如何在單一 WebSocket 端點上承載建房、加入、叫號、重開與觀戰？
//
// 核心挑戰：
//   1. 實時通信：對局變更需要立即推送給房間內所有連接
//   2. 連接身份：匿名連接的識別、斷線讓位、重連補位
//   3. 心跳機制：檢測死連接（網絡異常、客戶端崩潰）
//   4. 訊息分發：同一連接上以 type 欄位分發不同操作
//
// 設計方案：
//   ✅ 單端點 /ws - 房間歸屬由訊息決定，不綁在 URL 上
//   ✅ UUID 連接身份 - 升級時指派，斷線即失效，重連拿新身份補位
//   ✅ Ping/Pong 心跳 - 檢測死連接（54s/60s）
//   ✅ 緩衝 channel - 異步發送（不阻塞對局邏輯）

// WebSocketHub WebSocket 連接中心
//
// Hub 只負責傳輸：升級連接、讀寫泵、訊息分發。
// 房間歸屬由 Manager 決定，推送由 Broadcaster 按訂閱分發，
// Hub 本身不需要知道哪個連接在哪個房間。
type WebSocketHub struct {
	manager     *Manager
	logger      *slog.Logger
	upgrader    websocket.Upgrader
	connections map[string]*Connection // connID -> Connection
	mu          sync.RWMutex
}

// Connection WebSocket 連接
type Connection struct {
	ID        string
	Conn      *websocket.Conn
	Send      chan []byte
	Hub       *WebSocketHub
	LastPing  time.Time
	mu        sync.Mutex
	closeOnce sync.Once // 確保 channel 只關閉一次
}

// NewWebSocketHub 創建 WebSocket Hub
func NewWebSocketHub(manager *Manager, logger *slog.Logger) *WebSocketHub {
	return &WebSocketHub{
		manager: manager,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 在生產環境應該檢查來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[string]*Connection),
	}
}

// ServeWS 處理 WebSocket 連接
//
// 升級無條件成功：建房與加入都發生在連接之後的訊息裡。
// 每個連接指派一個 UUID 作為身份，斷線即失效，重連的是一個新身份。
func (hub *WebSocketHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	connection := &Connection{
		ID:       uuid.NewString(),
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Hub:      hub,
		LastPing: time.Now(),
	}

	hub.register(connection)

	go connection.writePump()
	go connection.readPump()

	hub.logger.Info("WebSocket 連接建立", "conn_id", connection.ID)
}

// register 註冊連接
func (hub *WebSocketHub) register(conn *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.connections[conn.ID] = conn
}

// unregister 取消註冊連接並觸發房間清理
func (hub *WebSocketHub) unregister(conn *Connection) {
	hub.mu.Lock()
	actual, exists := hub.connections[conn.ID]
	if exists && actual == conn {
		delete(hub.connections, conn.ID)
	}
	hub.mu.Unlock()

	if !exists || actual != conn {
		return
	}

	// 先退出所有房間（讓位、通知、退訂），訂閱清空後關閉通道才安全
	hub.manager.HandleDisconnect(conn.ID)

	conn.closeOnce.Do(func() {
		close(conn.Send)
	})

	hub.logger.Info("WebSocket 連接關閉", "conn_id", conn.ID)
}

// ConnectionCount 獲取當前連接數
func (hub *WebSocketHub) ConnectionCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.connections)
}

// Stop 停止 WebSocket Hub
func (hub *WebSocketHub) Stop() {
	hub.mu.Lock()
	conns := make([]*Connection, 0, len(hub.connections))
	for _, conn := range hub.connections {
		conns = append(conns, conn)
	}
	hub.connections = make(map[string]*Connection)
	hub.mu.Unlock()

	for _, conn := range conns {
		hub.manager.HandleDisconnect(conn.ID)
		conn.closeOnce.Do(func() {
			close(conn.Send)
		})
		conn.Conn.Close()
	}

	hub.logger.Info("WebSocket Hub 已停止")
}

// readPump 讀取客戶端消息
//
// 系統設計：心跳機制（讀取端）
//
//  1. 為什麼需要心跳？
//     問題：客戶端異常斷線（網絡故障、瀏覽器崩潰）時，服務器無法察覺
//     影響：死連接佔用資源（內存、goroutine），玩家槽位也一直被佔著
//     方案：定期檢查活性（Ping/Pong）
//
//  2. 超時設置：60 秒
//     - 如果 60 秒內沒有收到任何消息（包括 Pong），關閉連接
//     - 為什麼 60 秒？配合 writePump 的 54 秒 Ping（留 6 秒余量）
//
//  3. Pong 處理器：
//     - 收到 Pong → 重置超時時間（延長 60 秒）
//     - 更新 LastPing（用於監控）
func (c *Connection) readPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	// 設置讀取超時（60 秒）
	if err := c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		c.Hub.logger.Error("設置讀取期限失敗", "error", err)
	}

	// Pong 處理器（收到 Pong 重置超時）
	c.Conn.SetPongHandler(func(string) error {
		if err := c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			c.Hub.logger.Error("設置讀取期限失敗", "error", err)
		}
		c.mu.Lock()
		c.LastPing = time.Now()
		c.mu.Unlock()
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Error("WebSocket 讀取錯誤",
					"error", err,
					"conn_id", c.ID)
			}
			break
		}

		if messageType == websocket.TextMessage {
			c.handleMessage(message)
		}
	}
}

// writePump 寫入消息到客戶端
//
// 系統設計：心跳機制（發送端）
//
//  1. Ping 間隔：54 秒
//     問題：為什麼是 54 秒而非整數（如 50 秒、60 秒）？
//     答案：避開常見的超時閾值
//     - 很多代理服務器默認 60 秒超時
//     - 54 秒確保在超時前發送 Ping
//     - 留 6 秒余量（網絡延遲 + 處理時間）
//
//  2. 異步發送：
//     - 使用 channel（Send）緩衝消息
//     - 不阻塞對局邏輯（狀態提交後立即返回）
//     - 緩衝區滿時跳過（避免慢客戶端拖累整個房間）
//
//  3. 為什麼 Ping/Pong 而非應用層心跳？
//     - WebSocket 協議原生支持（更高效）
//     - 自動處理（客戶端瀏覽器自動回覆 Pong）
//     - 不佔用應用層帶寬（控制幀，非數據幀）
func (c *Connection) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				c.Hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if !ok {
				// Hub 關閉了通道，優雅關閉連接
				deadline := time.Now().Add(time.Second)
				if err := c.Conn.SetWriteDeadline(deadline); err == nil {
					// 嘗試發送關閉消息，忽略錯誤（連接可能已關閉）
					_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				}
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// 批量發送隊列中的消息
			n := len(c.Send)
			for i := 0; i < n; i++ {
				if err := c.Conn.WriteMessage(websocket.TextMessage, <-c.Send); err != nil {
					c.Hub.logger.Error("發送消息失敗", "error", err)
					return
				}
			}

		case <-ticker.C:
			// 發送 ping
			if err := c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				c.Hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 分發客戶端消息
//
// 無法解析或未知類型的消息記錄後忽略，不中斷連接。
func (c *Connection) handleMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.Hub.logger.Error("解析客戶端消息失敗",
			"error", err,
			"conn_id", c.ID)
		return
	}

	switch msg.Type {
	case "create_room":
		roomID, role, snap := c.Hub.manager.CreateRoom(c.ID, c.Send)
		c.reply(ServerMessage{Type: "room_created", RoomID: roomID, Role: role, State: &snap})

	case "join_room":
		role, snap, err := c.Hub.manager.JoinRoom(c.ID, msg.RoomID, c.Send)
		if err != nil {
			c.reply(ServerMessage{Type: "error", Error: err.Error()})
			return
		}
		c.reply(ServerMessage{Type: "room_joined", RoomID: msg.RoomID, Role: role, State: &snap})

	case "select_number":
		if err := c.Hub.manager.SelectNumber(msg.RoomID, c.ID, msg.Role, msg.Number); err != nil {
			// 叫號的對外訊息把「房間不存在」與「已結束」合併
			if errors.Is(err, ErrRoomNotFound) {
				err = ErrGameFinished
			}
			c.reply(ServerMessage{Type: "error", Error: err.Error()})
			return
		}
		c.reply(ServerMessage{Type: "select_ok", OK: true})

	case "restart_game":
		// 不需要直接回覆，新狀態由推送同步；房間不存在時靜默忽略
		c.Hub.manager.RestartGame(msg.RoomID)

	case "ping":
		c.reply(ServerMessage{Type: "pong"})

	default:
		c.Hub.logger.Debug("收到未知消息類型",
			"type", msg.Type,
			"conn_id", c.ID)
	}
}

// reply 發送直接回覆（非阻塞）
func (c *Connection) reply(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.Hub.logger.Error("序列化回覆失敗", "error", err, "conn_id", c.ID)
		return
	}

	select {
	case c.Send <- data:
	default:
		c.Hub.logger.Warn("連接緩衝區滿，丟棄回覆", "conn_id", c.ID)
	}
}
