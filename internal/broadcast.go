package internal

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// 系統設計問題：
//   房間狀態變更後，如何把新狀態推送給房間內的所有連接？
//
// 核心挑戰：
//   1. 解耦：對局邏輯不應該知道 WebSocket 的存在
//   2. 順序：推送順序必須與狀態提交順序一致
//   3. 慢消費者：單一慢連接不能拖住整個房間
//
// 設計方案：
//   ✅ Publisher 介面 - 狀態機在提交變更後呼叫，與傳輸層解耦
//   ✅ 房間鍵訂閱表 - roomID -> connID -> 發送通道
//   ✅ 非阻塞發送 - select default，緩衝滿直接丟棄該幀

// Publisher 房間狀態的發布介面
//
// Room 在每次提交變更後呼叫 PublishState，訂閱與退訂由加入與斷線流程驅動。
// 測試可注入記錄用的假實作，不需要任何網路。
type Publisher interface {
	Subscribe(roomID, connID string, send chan<- []byte)
	Unsubscribe(roomID, connID string)
	PublishState(roomID string, snap Snapshot)
}

// Broadcaster Publisher 的進程內實作
//
// 訂閱者只是發送通道：廣播器不持有連接本身，
// 通道的生命週期（建立、排空、關閉）由 WebSocket 層負責。
type Broadcaster struct {
	logger *slog.Logger
	mu     sync.RWMutex
	subs   map[string]map[string]chan<- []byte // roomID -> connID -> send
}

// NewBroadcaster 創建廣播器
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		logger: logger,
		subs:   make(map[string]map[string]chan<- []byte),
	}
}

// Subscribe 訂閱房間狀態
func (b *Broadcaster) Subscribe(roomID, connID string, send chan<- []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[roomID] == nil {
		b.subs[roomID] = make(map[string]chan<- []byte)
	}
	b.subs[roomID][connID] = send
}

// Unsubscribe 退訂房間狀態
//
// 回傳後不會再有發布路徑持有該通道，呼叫方可以安全關閉它。
func (b *Broadcaster) Unsubscribe(roomID, connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if roomSubs, exists := b.subs[roomID]; exists {
		delete(roomSubs, connID)
		if len(roomSubs) == 0 {
			delete(b.subs, roomID)
		}
	}
}

// PublishState 推送房間狀態給所有訂閱者
//
// 呼叫方可能持有房間鎖：這裡只做序列化與通道發送，沒有阻塞 I/O。
// 發送是 fire-and-forget，緩衝滿的連接丟棄這一幀，靠下一次推送補上。
func (b *Broadcaster) PublishState(roomID string, snap Snapshot) {
	message, err := json.Marshal(ServerMessage{
		Type:   "room_state",
		RoomID: roomID,
		State:  &snap,
	})
	if err != nil {
		b.logger.Error("序列化房間狀態失敗", "room_id", roomID, "error", err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for connID, send := range b.subs[roomID] {
		select {
		case send <- message:
		default:
			b.logger.Warn("連接緩衝區滿，丟棄狀態推送",
				"room_id", roomID,
				"conn_id", connID)
		}
	}
}

// SubscriberCount 獲取房間的訂閱數
func (b *Broadcaster) SubscriberCount(roomID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[roomID])
}
