package internal

import (
	"crypto/rand"
	"log/slog"
	mrand "math/rand"
	"sync"
	"time"
)

// Manager 房間註冊表
//
// 所有狀態都在進程記憶體：服務與測試各自構造自己的實例，沒有全域單例。
// 鎖的順序固定為「註冊表鎖 → 房間鎖」，房間永遠不會回頭呼叫註冊表。
type Manager struct {
	rooms     map[string]*Room               // roomID -> Room
	connRooms map[string]map[string]struct{} // connID -> 參與中的房間集合
	mu        sync.RWMutex
	rng       *mrand.Rand // 房間棋盤的種子來源（受 mu 保護）
	pub       Publisher
	logger    *slog.Logger
}

// NewManager 創建房間註冊表
//
// rng 為 nil 時使用時間種子；測試注入固定種子即可重現所有棋盤。
func NewManager(logger *slog.Logger, rng *mrand.Rand, pub Publisher) *Manager {
	if rng == nil {
		rng = mrand.New(mrand.NewSource(time.Now().UnixNano()))
	}
	return &Manager{
		rooms:     make(map[string]*Room),
		connRooms: make(map[string]map[string]struct{}),
		rng:       rng,
		pub:       pub,
		logger:    logger,
	}
}

// CreateRoom 創建房間並讓創建者入座先手
//
// 房間 ID 是簡短的大寫英數代碼（如 "AB12CD"），方便口頭或訊息分享。
// 創建者立刻加入，所以存活的房間永遠至少有一位參與者。
func (m *Manager) CreateRoom(connID string, send chan<- []byte) (string, Role, Snapshot) {
	m.mu.Lock()
	var roomID string
	for {
		roomID = generateRoomID()
		if _, exists := m.rooms[roomID]; !exists {
			break
		}
	}
	// 每個房間持有獨立的隨機源，重開發牌不用搶共用的 rng
	room := NewRoom(roomID, mrand.New(mrand.NewSource(m.rng.Int63())), m.pub)
	m.rooms[roomID] = room
	m.indexLocked(connID, roomID)
	m.mu.Unlock()

	role, snap := room.Join(connID, send)

	m.logger.Info("房間已創建",
		"room_id", roomID,
		"conn_id", connID,
		"role", role)

	return roomID, role, snap
}

// JoinRoom 加入房間
//
// 同時是斷線重連的對時入口：回覆帶上即時快照，客戶端漏掉的推送由它補齊。
func (m *Manager) JoinRoom(connID, roomID string, send chan<- []byte) (Role, Snapshot, error) {
	m.mu.RLock()
	room, exists := m.rooms[roomID]
	m.mu.RUnlock()
	if !exists {
		return "", Snapshot{}, ErrRoomNotFound
	}

	role, snap := room.Join(connID, send)

	m.mu.Lock()
	// 加入途中房間可能被最後一位離開者銷毀，持鎖後再確認一次
	if _, stillThere := m.rooms[roomID]; !stillThere {
		m.mu.Unlock()
		room.Leave(connID)
		return "", Snapshot{}, ErrRoomNotFound
	}
	m.indexLocked(connID, roomID)
	m.mu.Unlock()

	m.logger.Info("連接加入房間",
		"room_id", roomID,
		"conn_id", connID,
		"role", role)

	return role, snap, nil
}

// SelectNumber 叫號
func (m *Manager) SelectNumber(roomID, connID string, claimed Role, number int) error {
	m.mu.RLock()
	room, exists := m.rooms[roomID]
	m.mu.RUnlock()
	if !exists {
		return ErrRoomNotFound
	}

	return room.SelectNumber(connID, claimed, number)
}

// RestartGame 重開對局，房間不存在時靜默忽略
func (m *Manager) RestartGame(roomID string) {
	m.mu.RLock()
	room, exists := m.rooms[roomID]
	m.mu.RUnlock()
	if !exists {
		return
	}

	room.Restart()
	m.logger.Info("對局已重開", "room_id", roomID)
}

// HandleDisconnect 處理連接斷開
//
// 讓出該連接在所有房間的角色；房間因此清空時立即銷毀。
// 對局狀態不受玩家斷線影響，棋盤、標記與回合都留給補位的連接。
func (m *Manager) HandleDisconnect(connID string) {
	m.mu.Lock()
	roomIDs := m.connRooms[connID]
	delete(m.connRooms, connID)
	m.mu.Unlock()

	for roomID := range roomIDs {
		m.mu.RLock()
		room, exists := m.rooms[roomID]
		m.mu.RUnlock()
		if !exists {
			continue
		}

		role, empty := room.Leave(connID)
		m.logger.Info("連接離開房間",
			"room_id", roomID,
			"conn_id", connID,
			"role", role)

		if empty {
			m.destroyRoom(roomID)
		}
	}
}

// RoomState 查詢房間快照
func (m *Manager) RoomState(roomID string) (Snapshot, error) {
	m.mu.RLock()
	room, exists := m.rooms[roomID]
	m.mu.RUnlock()
	if !exists {
		return Snapshot{}, ErrRoomNotFound
	}

	return room.Snapshot(), nil
}

// Stats 獲取統計資訊
func (m *Manager) Stats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inProgress := 0
	finished := 0
	totalPlayers := 0
	totalSpectators := 0

	for _, room := range m.rooms {
		snap := room.Snapshot()
		if snap.Finished {
			finished++
		} else {
			inProgress++
		}
		if snap.Players.FirstPlayer {
			totalPlayers++
		}
		if snap.Players.SecondPlayer {
			totalPlayers++
		}
		totalSpectators += snap.Spectators
	}

	return map[string]any{
		"total_rooms":       len(m.rooms),
		"rooms_in_progress": inProgress,
		"rooms_finished":    finished,
		"total_players":     totalPlayers,
		"total_spectators":  totalSpectators,
	}
}

// indexLocked 記錄連接參與的房間，呼叫方需持有寫鎖
func (m *Manager) indexLocked(connID, roomID string) {
	if m.connRooms[connID] == nil {
		m.connRooms[connID] = make(map[string]struct{})
	}
	m.connRooms[connID][roomID] = struct{}{}
}

// destroyRoom 銷毀空房間
func (m *Manager) destroyRoom(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, exists := m.rooms[roomID]
	if !exists {
		return
	}

	// 併發加入可能趕在銷毀前補進參與者，持鎖後再確認一次
	if room.ParticipantCount() > 0 {
		return
	}

	delete(m.rooms, roomID)
	m.logger.Info("房間已銷毀", "room_id", roomID)
}

// generateRoomID 生成簡短房間代碼
func generateRoomID() string {
	const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 6)
	for i := range b {
		b[i] = chars[randInt(len(chars))]
	}
	return string(b)
}

// randInt 生成隨機數
func randInt(max int) int {
	b := make([]byte, 1)
	if _, err := rand.Read(b); err != nil {
		// 如果隨機讀取失敗，使用時間作為隨機源
		return int(time.Now().UnixNano()) % max
	}
	return int(b[0]) % max
}
