package internal

// ClientMessage 客戶端訊息
//
// 單一信封承載所有操作，type 欄位決定分發：
//   create_room、join_room、select_number、restart_game、ping
type ClientMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id,omitempty"`
	Role   Role   `json:"role,omitempty"`
	Number int    `json:"number,omitempty"`
}

// ServerMessage 伺服器訊息，直接回覆與狀態推送共用
//
//   room_created、room_joined、select_ok、room_state、error、pong
type ServerMessage struct {
	Type   string    `json:"type"`
	RoomID string    `json:"room_id,omitempty"`
	Role   Role      `json:"role,omitempty"`
	OK     bool      `json:"ok,omitempty"`
	Error  string    `json:"error,omitempty"`
	State  *Snapshot `json:"state,omitempty"`
}
