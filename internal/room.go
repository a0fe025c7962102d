package internal

import (
	"math/rand"
	"sync"
	"time"
)

// 系統設計問題：
//   如何協調雙人賓果對局？獨立棋盤、嚴格輪替、斷線補位與即時同步。
//
// 核心挑戰：
//   1. 回合強制：任一時刻只有一位玩家能叫號，違規必須同步拒絕
//   2. 並發控制：同一房間的「檢查、變更、廣播」必須是不可分割的單元
//   3. 角色管理：兩個玩家槽位各限一個連接，斷線讓位、新連接補位
//   4. 狀態同步：每次變更推送全量狀態，重連方直接拿現況對時
//
// 設計方案：
//   ✅ 房間級 RWMutex - 房間是獨立的加鎖單元，寫操作全程持鎖
//   ✅ 雙向角色映射 - roles(連接→角色) 加 seats(角色→連接)，結構上保證槽位唯一
//   ✅ Publisher 注入 - 提交變更後發布，對局邏輯與傳輸解耦
//   ✅ 全量快照 - 推送、加入回覆與查詢共用同一形狀，重連冪等

// Role 連接在房間內的角色
//
// 封閉的三值標籤：玩家槽位各限一人，觀戰者不限數量。
type Role string

const (
	RoleFirstPlayer  Role = "first_player"  // 先手（創建房間者的初始角色）
	RoleSecondPlayer Role = "second_player" // 後手
	RoleSpectator    Role = "spectator"     // 觀戰者（只收推送，不能叫號）
)

// Seats 玩家槽位的佔用情況
type Seats struct {
	FirstPlayer  bool `json:"first_player"`
	SecondPlayer bool `json:"second_player"`
}

// Snapshot 房間狀態快照
//
// 推送、加入回覆與 HTTP 查詢共用同一形狀。
// lines_p1 與 lines_p2 是展示用高亮（屬於任一完成線的格子），不參與計分。
type Snapshot struct {
	RoomID     string `json:"room_id"`
	BoardP1    Board  `json:"board_p1"`
	BoardP2    Board  `json:"board_p2"`
	MarkedP1   Marks  `json:"marked_p1"`
	MarkedP2   Marks  `json:"marked_p2"`
	Turn       Role   `json:"turn"`
	LettersP1  int    `json:"letters_p1"`
	LettersP2  int    `json:"letters_p2"`
	Finished   bool   `json:"finished"`
	LinesP1    Marks  `json:"lines_p1"`
	LinesP2    Marks  `json:"lines_p2"`
	Players    Seats  `json:"players"`
	Spectators int    `json:"spectators"`
}

// Room 賓果對局房間
//
// 系統設計考量：
//
//  1. 並發控制（RWMutex）：
//     問題：叫號、加入、斷線、重開可能同時落在同一房間
//     方案：sync.RWMutex（讀寫鎖）
//     優勢：
//     - 讀操作並發（查詢快照、統計參與者）
//     - 寫操作互斥（叫號的檢查、標記、判線、換手是一個單元）
//     - 推送在持鎖時進入發送通道，廣播順序必然等於狀態提交順序
//
//  2. 雙向角色映射（roles + seats）：
//     問題：玩家槽位必須「最多一人」，斷線後還要能讓位給新連接
//     方案：roles 記每個連接的角色，seats 記每個玩家槽位的佔用者
//     優勢：
//     - 槽位唯一性由資料結構保證，不靠遍歷檢查
//     - 斷線時 O(1) 讓位，補位時 O(1) 找空槽
//
//  3. 對局規則：
//     - 叫號對雙方棋盤同時生效，雙方用同一串叫號各自完成自己的棋盤
//     - 重複或無效的數字不標記任何格子，但仍然消耗回合（防拖延）
//     - 任一方集滿五條線（五個字母）對局即結束，回合凍結
type Room struct {
	ID string

	BoardP1   Board
	BoardP2   Board
	MarkedP1  Marks
	MarkedP2  Marks
	Turn      Role
	LettersP1 int
	LettersP2 int
	Finished  bool

	Mu    sync.RWMutex
	roles map[string]Role // connID -> 角色
	seats map[Role]string // 玩家槽位 -> connID（觀戰者不入座）
	rng   *rand.Rand      // 棋盤生成的隨機源（房間私有，受 Mu 保護）
	pub   Publisher
}

// NewRoom 創建新房間
//
// rng 為 nil 時使用時間種子；測試注入固定種子即可重現棋盤。
func NewRoom(id string, rng *rand.Rand, pub Publisher) *Room {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Room{
		ID:      id,
		BoardP1: GenerateBoard(rng),
		BoardP2: GenerateBoard(rng),
		Turn:    RoleFirstPlayer,
		roles:   make(map[string]Role),
		seats:   make(map[Role]string),
		rng:     rng,
		pub:     pub,
	}
}

// Join 連接加入房間
//
// 槽位分配：先補 first_player，再補 second_player，都滿了就是觀戰者。
// 已在房間內的連接重複加入視為重連對時：回傳現有角色與即時快照，不做任何變更。
// 訂閱與快照在同一次持鎖內完成，直接回覆的狀態不會落後於任何漏掉的推送。
func (r *Room) Join(connID string, send chan<- []byte) (Role, Snapshot) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	// 重連對時：回傳現況即可
	if role, exists := r.roles[connID]; exists {
		return role, r.snapshotLocked()
	}

	role := RoleSpectator
	if _, taken := r.seats[RoleFirstPlayer]; !taken {
		role = RoleFirstPlayer
	} else if _, taken := r.seats[RoleSecondPlayer]; !taken {
		role = RoleSecondPlayer
	}

	r.roles[connID] = role
	if role != RoleSpectator {
		r.seats[role] = connID
	}

	r.pub.Subscribe(r.ID, connID, send)

	snap := r.snapshotLocked()

	// 只有補上玩家槽位才廣播，觀戰者加入不打擾對局
	if role != RoleSpectator {
		r.pub.PublishState(r.ID, snap)
	}

	return role, snap
}

// SelectNumber 叫號
//
// 前置檢查順序：對局已結束優先回 ErrGameFinished；
// 然後宣稱的角色必須與連接實際持有的一致、且輪到該角色，否則 ErrNotYourTurn。
// 重複叫號或不在盤面上的數字不會標記任何格子，但仍然消耗這個回合。
func (r *Room) SelectNumber(connID string, claimed Role, number int) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.Finished {
		return ErrGameFinished
	}

	actual, exists := r.roles[connID]
	if !exists || actual != claimed || claimed != r.Turn {
		return ErrNotYourTurn
	}

	markNumber(&r.MarkedP1, r.BoardP1, number)
	markNumber(&r.MarkedP2, r.BoardP2, number)

	r.LettersP1, _ = DetectLines(r.MarkedP1)
	r.LettersP2, _ = DetectLines(r.MarkedP2)

	if r.LettersP1 >= MaxLetters || r.LettersP2 >= MaxLetters {
		// 結束後回合凍結在最後叫號者身上
		r.Finished = true
	} else if r.Turn == RoleFirstPlayer {
		r.Turn = RoleSecondPlayer
	} else {
		r.Turn = RoleFirstPlayer
	}

	r.pub.PublishState(r.ID, r.snapshotLocked())
	return nil
}

// markNumber 標記棋盤上等於指定數字的格子
func markNumber(marked *Marks, board Board, number int) {
	for i := 0; i < BoardSize; i++ {
		for j := 0; j < BoardSize; j++ {
			if board[i][j] == number {
				marked[i][j] = true
			}
		}
	}
}

// Restart 重開對局
//
// 重發兩張棋盤、清空標記與字母數、回合重設為先手。
// 不限制呼叫者角色：同一局的雙方（甚至觀戰者）都可以觸發。
func (r *Room) Restart() {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	r.BoardP1 = GenerateBoard(r.rng)
	r.BoardP2 = GenerateBoard(r.rng)
	r.MarkedP1 = Marks{}
	r.MarkedP2 = Marks{}
	r.LettersP1 = 0
	r.LettersP2 = 0
	r.Turn = RoleFirstPlayer
	r.Finished = false

	r.pub.PublishState(r.ID, r.snapshotLocked())
}

// Leave 連接離開房間（由斷線清理呼叫）
//
// 玩家讓出槽位，對局狀態原封不動，棋盤與回合留給補位的連接。
// 回傳離開者的角色與房間是否已無任何參與者，供註冊表決定銷毀。
func (r *Room) Leave(connID string) (Role, bool) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	role, exists := r.roles[connID]
	if !exists {
		return "", len(r.roles) == 0
	}

	delete(r.roles, connID)
	if role != RoleSpectator && r.seats[role] == connID {
		delete(r.seats, role)
	}

	r.pub.Unsubscribe(r.ID, connID)

	if len(r.roles) > 0 {
		r.pub.PublishState(r.ID, r.snapshotLocked())
		return role, false
	}
	return role, true
}

// RoleOf 查詢連接在房間內的角色
func (r *Room) RoleOf(connID string) (Role, bool) {
	r.Mu.RLock()
	defer r.Mu.RUnlock()
	role, exists := r.roles[connID]
	return role, exists
}

// ParticipantCount 獲取參與者總數（玩家加觀戰者）
func (r *Room) ParticipantCount() int {
	r.Mu.RLock()
	defer r.Mu.RUnlock()
	return len(r.roles)
}

// Snapshot 獲取房間狀態快照
func (r *Room) Snapshot() Snapshot {
	r.Mu.RLock()
	defer r.Mu.RUnlock()
	return r.snapshotLocked()
}

// snapshotLocked 組裝快照，呼叫方需持有鎖
func (r *Room) snapshotLocked() Snapshot {
	_, linesP1 := DetectLines(r.MarkedP1)
	_, linesP2 := DetectLines(r.MarkedP2)

	spectators := 0
	for _, role := range r.roles {
		if role == RoleSpectator {
			spectators++
		}
	}

	_, p1 := r.seats[RoleFirstPlayer]
	_, p2 := r.seats[RoleSecondPlayer]

	return Snapshot{
		RoomID:     r.ID,
		BoardP1:    r.BoardP1,
		BoardP2:    r.BoardP2,
		MarkedP1:   r.MarkedP1,
		MarkedP2:   r.MarkedP2,
		Turn:       r.Turn,
		LettersP1:  r.LettersP1,
		LettersP2:  r.LettersP2,
		Finished:   r.Finished,
		LinesP1:    linesP1,
		LinesP2:    linesP2,
		Players:    Seats{FirstPlayer: p1, SecondPlayer: p2},
		Spectators: spectators,
	}
}
