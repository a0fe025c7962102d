package internal_test

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/bingo-duel/internal"
)

// nopPublisher 丟棄所有發布，供基準測試用（記錄型替身會無限累積快照）
type nopPublisher struct{}

func (nopPublisher) Subscribe(roomID, connID string, send chan<- []byte) {}
func (nopPublisher) Unsubscribe(roomID, connID string)                  {}
func (nopPublisher) PublishState(roomID string, snap internal.Snapshot) {}

// TestStress_ConcurrentRoomCreation 測試併發創建房間
func TestStress_ConcurrentRoomCreation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	manager, _ := newTestManager()

	const (
		numGoroutines     = 100
		roomsPerGoroutine = 10
	)

	var (
		wg             sync.WaitGroup
		ids            sync.Map
		createdCount   int32
		duplicateCount int32
	)

	start := time.Now()

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(goroutineID int) {
			defer wg.Done()

			for j := 0; j < roomsPerGoroutine; j++ {
				connID := fmt.Sprintf("conn_%d_%d", goroutineID, j)
				roomID, _, _ := manager.CreateRoom(connID, nil)

				if _, loaded := ids.LoadOrStore(roomID, struct{}{}); loaded {
					atomic.AddInt32(&duplicateCount, 1)
				}
				atomic.AddInt32(&createdCount, 1)
			}
		}(i)
	}

	wg.Wait()
	duration := time.Since(start)

	t.Logf("創建房間壓力測試結果:")
	t.Logf("  總房間數: %d", numGoroutines*roomsPerGoroutine)
	t.Logf("  成功: %d", createdCount)
	t.Logf("  重複 ID: %d", duplicateCount)
	t.Logf("  耗時: %v", duration)
	t.Logf("  速率: %.2f rooms/sec", float64(createdCount)/duration.Seconds())

	assert.Equal(t, int32(numGoroutines*roomsPerGoroutine), createdCount)
	assert.Equal(t, int32(0), duplicateCount)

	stats := manager.Stats()
	assert.Equal(t, numGoroutines*roomsPerGoroutine, stats["total_rooms"])
	// 每位創建者都入座先手
	assert.Equal(t, numGoroutines*roomsPerGoroutine, stats["total_players"])
}

// TestStress_ConcurrentJoinLeave 測試併發加入和離開
func TestStress_ConcurrentJoinLeave(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	manager, _ := newTestManager()

	// 房主一直留著，房間不會中途被銷毀
	roomID, _, _ := manager.CreateRoom("conn_host", nil)

	const (
		numConns      = 100
		numOperations = 10
	)

	var (
		wg         sync.WaitGroup
		joinCount  int32
		errorCount int32
	)

	start := time.Now()

	for i := 0; i < numConns; i++ {
		wg.Add(1)
		go func(connIdx int) {
			defer wg.Done()

			connID := fmt.Sprintf("conn_%d", connIdx)

			for j := 0; j < numOperations; j++ {
				_, _, err := manager.JoinRoom(connID, roomID, nil)
				if err == nil {
					atomic.AddInt32(&joinCount, 1)
				} else {
					atomic.AddInt32(&errorCount, 1)
				}

				time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)

				manager.HandleDisconnect(connID)
			}
		}(i)
	}

	wg.Wait()
	duration := time.Since(start)

	t.Logf("加入離開壓力測試結果:")
	t.Logf("  總操作數: %d", numConns*numOperations*2)
	t.Logf("  加入成功: %d", joinCount)
	t.Logf("  錯誤: %d", errorCount)
	t.Logf("  耗時: %v", duration)
	t.Logf("  速率: %.2f ops/sec", float64(joinCount*2)/duration.Seconds())

	assert.Equal(t, int32(numConns*numOperations), joinCount)
	assert.Equal(t, int32(0), errorCount)

	// 全部退潮後只剩房主
	snap, err := manager.RoomState(roomID)
	require.NoError(t, err)
	assert.True(t, snap.Players.FirstPlayer)
	assert.False(t, snap.Players.SecondPlayer)
	assert.Equal(t, 0, snap.Spectators)
}

// TestStress_MultiRoomGames 測試多房間同時打完整對局
func TestStress_MultiRoomGames(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	manager, _ := newTestManager()

	const numRooms = 50

	var (
		wg            sync.WaitGroup
		finishedGames int32
	)

	start := time.Now()

	for i := 0; i < numRooms; i++ {
		wg.Add(1)
		go func(roomIdx int) {
			defer wg.Done()

			connA := fmt.Sprintf("conn_a_%d", roomIdx)
			connB := fmt.Sprintf("conn_b_%d", roomIdx)

			roomID, _, _ := manager.CreateRoom(connA, nil)
			if _, _, err := manager.JoinRoom(connB, roomID, nil); err != nil {
				return
			}

			// 25 個數字全叫完之前一定會出現五條線
			for n := 1; n <= internal.BoardSize*internal.BoardSize; n++ {
				snap, err := manager.RoomState(roomID)
				if err != nil || snap.Finished {
					break
				}

				conn := connA
				if snap.Turn == internal.RoleSecondPlayer {
					conn = connB
				}
				if err := manager.SelectNumber(roomID, conn, snap.Turn, n); err != nil {
					break
				}
			}

			if snap, err := manager.RoomState(roomID); err == nil && snap.Finished {
				atomic.AddInt32(&finishedGames, 1)
			}
		}(i)
	}

	wg.Wait()
	duration := time.Since(start)

	t.Logf("多房間對局壓力測試結果:")
	t.Logf("  房間數: %d", numRooms)
	t.Logf("  完局數: %d", finishedGames)
	t.Logf("  耗時: %v", duration)
	t.Logf("  速率: %.2f games/sec", float64(finishedGames)/duration.Seconds())

	assert.Equal(t, int32(numRooms), finishedGames)

	stats := manager.Stats()
	assert.Equal(t, numRooms, stats["total_rooms"])
	assert.Equal(t, numRooms, stats["rooms_finished"])
}

// TestStress_RapidStateChanges 測試快速狀態變化下的一致性
func TestStress_RapidStateChanges(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	manager, _ := newTestManager()

	roomID, _, _ := manager.CreateRoom("conn_a", nil)
	_, _, err := manager.JoinRoom("conn_b", roomID, nil)
	require.NoError(t, err)

	const numIterations = 1000

	var (
		wg           sync.WaitGroup
		selectCount  int32
		restartCount int32
	)

	start := time.Now()

	// 兩位玩家搶著叫號
	for _, p := range []struct {
		conn string
		role internal.Role
	}{
		{"conn_a", internal.RoleFirstPlayer},
		{"conn_b", internal.RoleSecondPlayer},
	} {
		wg.Add(1)
		go func(conn string, role internal.Role) {
			defer wg.Done()
			for j := 0; j < numIterations; j++ {
				n := rand.Intn(internal.BoardSize*internal.BoardSize) + 1
				if err := manager.SelectNumber(roomID, conn, role, n); err == nil {
					atomic.AddInt32(&selectCount, 1)
				}
			}
		}(p.conn, p.role)
	}

	// 讀取方持續拉快照與統計
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numIterations; j++ {
				manager.RoomState(roomID)
				manager.Stats()
			}
		}()
	}

	// 不時重開對局
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			manager.RestartGame(roomID)
			atomic.AddInt32(&restartCount, 1)
			time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond)
		}
	}()

	wg.Wait()
	duration := time.Since(start)

	t.Logf("快速狀態變化測試:")
	t.Logf("  成功叫號: %d", selectCount)
	t.Logf("  重開次數: %d", restartCount)
	t.Logf("  耗時: %v", duration)
	t.Logf("  速率: %.2f ops/sec", float64(selectCount)/duration.Seconds())

	// 靜止後驗證不變量：字母數永遠等於以標記重算的完成線數
	snap, err := manager.RoomState(roomID)
	require.NoError(t, err)

	countP1, _ := internal.DetectLines(snap.MarkedP1)
	countP2, _ := internal.DetectLines(snap.MarkedP2)
	assert.Equal(t, countP1, snap.LettersP1)
	assert.Equal(t, countP2, snap.LettersP2)

	if snap.Finished {
		assert.GreaterOrEqual(t, max(snap.LettersP1, snap.LettersP2), internal.MaxLetters)
	} else {
		assert.Less(t, snap.LettersP1, internal.MaxLetters)
		assert.Less(t, snap.LettersP2, internal.MaxLetters)
	}
}

// BenchmarkRoom_SelectNumber 基準測試：叫號
func BenchmarkRoom_SelectNumber(b *testing.B) {
	room := internal.NewRoom("BENCH1", rand.New(rand.NewSource(42)), nopPublisher{})
	room.Join("conn_a", nil)
	room.Join("conn_b", nil)

	conns := map[internal.Role]string{
		internal.RoleFirstPlayer:  "conn_a",
		internal.RoleSecondPlayer: "conn_b",
	}
	turn := internal.RoleFirstPlayer

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		n := i%(internal.BoardSize*internal.BoardSize) + 1
		_ = room.SelectNumber(conns[turn], turn, n)

		if room.Finished {
			room.Restart()
			turn = internal.RoleFirstPlayer
		} else if turn == internal.RoleFirstPlayer {
			turn = internal.RoleSecondPlayer
		} else {
			turn = internal.RoleFirstPlayer
		}
	}

	b.ReportMetric(float64(b.N)/b.Elapsed().Seconds(), "selects/sec")
}

// BenchmarkRoom_Snapshot 基準測試：獲取快照
func BenchmarkRoom_Snapshot(b *testing.B) {
	room := internal.NewRoom("BENCH1", rand.New(rand.NewSource(42)), nopPublisher{})
	room.Join("conn_a", nil)
	room.Join("conn_b", nil)
	room.SelectNumber("conn_a", internal.RoleFirstPlayer, room.BoardP1[0][0])

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = room.Snapshot()
	}

	b.ReportMetric(float64(b.N)/b.Elapsed().Seconds(), "snapshots/sec")
}

// BenchmarkManager_CreateRoom 基準測試：創建房間
func BenchmarkManager_CreateRoom(b *testing.B) {
	manager := internal.NewManager(testLogger(), nil, nopPublisher{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		manager.CreateRoom(fmt.Sprintf("conn_%d", i), nil)
	}

	b.ReportMetric(float64(b.N)/b.Elapsed().Seconds(), "rooms/sec")
}

// BenchmarkManager_RoomState 基準測試：查詢房間快照
func BenchmarkManager_RoomState(b *testing.B) {
	manager := internal.NewManager(testLogger(), nil, nopPublisher{})

	roomIDs := make([]string, 100)
	for i := 0; i < 100; i++ {
		roomID, _, _ := manager.CreateRoom(fmt.Sprintf("conn_%d", i), nil)
		roomIDs[i] = roomID
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		manager.RoomState(roomIDs[i%100])
	}

	b.ReportMetric(float64(b.N)/b.Elapsed().Seconds(), "gets/sec")
}

// BenchmarkConcurrentOperations 基準測試：併發混合操作
func BenchmarkConcurrentOperations(b *testing.B) {
	manager := internal.NewManager(testLogger(), nil, nopPublisher{})

	roomID, _, _ := manager.CreateRoom("conn_host", nil)

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			i++
			connID := fmt.Sprintf("conn_%d_%d", i, time.Now().UnixNano())

			switch i % 4 {
			case 0:
				manager.JoinRoom(connID, roomID, nil)
			case 1:
				manager.HandleDisconnect(connID)
			case 2:
				manager.RoomState(roomID)
			case 3:
				manager.Stats()
			}
		}
	})
}

// TestStress_ManyRooms 測試大量房間同時存在
func TestStress_ManyRooms(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping memory test in short mode")
	}

	manager, _ := newTestManager()

	const numRooms = 500

	for i := 0; i < numRooms; i++ {
		roomID, _, _ := manager.CreateRoom(fmt.Sprintf("conn_a_%d", i), nil)

		_, _, err := manager.JoinRoom(fmt.Sprintf("conn_b_%d", i), roomID, nil)
		require.NoError(t, err)
		_, _, err = manager.JoinRoom(fmt.Sprintf("conn_c_%d", i), roomID, nil)
		require.NoError(t, err)
	}

	stats := manager.Stats()
	t.Logf("大量房間測試:")
	t.Logf("  總房間數: %d", stats["total_rooms"])
	t.Logf("  總玩家數: %d", stats["total_players"])
	t.Logf("  總旁觀數: %d", stats["total_spectators"])

	assert.Equal(t, numRooms, stats["total_rooms"])
	assert.Equal(t, numRooms*2, stats["total_players"])
	assert.Equal(t, numRooms, stats["total_spectators"])
}
