// Package bingoduel 提供了一個即時雙人賓果對戰的協調服務。
//
// 實現了一個支援多房間的回合制對戰服務器，包含以下核心功能：
//
// 對局協調
//
// 提供完整的賓果對局生命週期：
//   - 房間創建與簡短加入碼（如 "AB12CD"）
//   - 雙棋盤發牌（1..25 的隨機排列）
//   - 嚴格輪替叫號，叫號對雙方棋盤同時生效
//   - 12 條候選線判定（5 橫、5 直、2 對角），先集滿五線者勝
//   - 對局結束後可原房間重開
//
// 角色管理
//
// 每個連接在房間內持有一個封閉角色：
//   - first_player / second_player：玩家槽位，各限一個連接
//   - spectator：觀戰者，只收推送，不限數量
//   - 玩家斷線即讓位，新連接依「先手、後手」順序補位
//   - 最後一位參與者離開時房間立即銷毀
//
// WebSocket 通訊
//
// 單一 /ws 端點承載全部操作：
//   - 訊息以 type 欄位分發（create_room、join_room、select_number、restart_game、ping）
//   - 每次狀態提交立即推送全量快照（room_state）
//   - 支援心跳檢測（Ping/Pong）
//   - 重連以 join_room 對時，回覆直接帶上現況
//
// 併發安全設計
//
// 採用了多層次的併發控制策略：
//   - 房間級讀寫鎖：檢查、變更、廣播是不可分割的單元
//   - 雙向角色映射：玩家槽位唯一性由資料結構保證
//   - 發布訂閱解耦：對局邏輯透過 Publisher 介面推送，不觸碰傳輸層
//   - 非阻塞發送：慢連接丟幀，不拖累同房間的其他人
//
// 使用範例
//
// 啟動服務器：
//
//	broadcaster := internal.NewBroadcaster(logger)
//	manager := internal.NewManager(logger, nil, broadcaster)
//	handler := internal.NewHandler(manager, logger)
//	wsHub := internal.NewWebSocketHub(manager, logger)
//
//	mux := http.NewServeMux()
//	mux.Handle("/", handler.Routes())
//	mux.HandleFunc("/ws", wsHub.ServeWS)
//	log.Fatal(http.ListenAndServe(":8080", mux))
//
// 客戶端對局：
//
//	ws 連接後發送 {"type":"create_room"} 取得房間代碼，
//	對手發送 {"type":"join_room","room_id":"AB12CD"} 入座，
//	輪到自己時發送 {"type":"select_number","room_id":"AB12CD","role":"first_player","number":7}。
//
// 架構設計
//
// 系統採用分層架構設計：
//   - Handler 層：唯讀的 HTTP 觀測面（健康檢查、統計、房間查詢）
//   - Manager 層：房間註冊表與連接索引
//   - Room 層：封裝對局規則（輪替、判線、結束、重開）
//   - Broadcaster 層：房間狀態的發布訂閱
//   - WebSocket 層：連接生命週期與訊息分發
//
// 每層都有明確的職責邊界，透過介面進行交互，便於測試與擴展。
//
// 配置選項
//
// 支援多種運行時配置：
//   - -config：YAML 配置檔路徑
//   - -port：服務監聽端口（預設 8080）
//   - -log-level：日誌級別（debug/info/warn/error）
//   - -log-format：日誌格式（text/json）
package bingoduel
