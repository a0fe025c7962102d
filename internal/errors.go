package internal

import "errors"

// 錯誤分類：所有拒絕都是對單一請求的局部回應，不會中斷進程。
// 錯誤訊息就是回給客戶端的文字，不做二次翻譯。
var (
	// ErrRoomNotFound 房間不存在
	ErrRoomNotFound = errors.New("Room not found")

	// ErrNotYourTurn 非當前回合玩家，或宣稱的角色與連接實際持有的不符
	ErrNotYourTurn = errors.New("Not your turn")

	// ErrGameFinished 對局已結束；叫號操作對外與「房間不存在」合併為同一訊息
	ErrGameFinished = errors.New("Invalid room or game finished")
)
