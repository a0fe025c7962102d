package internal

import "math/rand"

// BoardSize 賓果盤邊長（5x5，填入 1..25）
const BoardSize = 5

// MaxLetters BINGO 五個字母，完成線數的計分上限
const MaxLetters = 5

// Board 5x5 賓果盤，內容為 1..25 的一個排列
type Board [BoardSize][BoardSize]int

// Marks 5x5 布林矩陣，標記與高亮共用同一形狀
type Marks [BoardSize][BoardSize]bool

// GenerateBoard 產生隨機賓果盤
//
// Fisher-Yates 洗牌（rand.Shuffle）保證 25 個數字的均勻排列，
// 再按列優先填入 5x5。rng 由呼叫方注入，固定種子即可重現棋盤。
func GenerateBoard(rng *rand.Rand) Board {
	nums := make([]int, BoardSize*BoardSize)
	for i := range nums {
		nums[i] = i + 1
	}
	rng.Shuffle(len(nums), func(i, j int) {
		nums[i], nums[j] = nums[j], nums[i]
	})

	var board Board
	for i := 0; i < BoardSize; i++ {
		for j := 0; j < BoardSize; j++ {
			board[i][j] = nums[i*BoardSize+j]
		}
	}
	return board
}

// DetectLines 偵測完成的線
//
// 候選線固定 12 條：5 橫、5 直、兩條對角線。
// 回傳完成線數（計分用，超過 5 壓回 5）與高亮矩陣。
// 高亮不受上限影響：先走完全部 12 條再壓分，屬於任一完成線的格子都會標記。
func DetectLines(marked Marks) (int, Marks) {
	count := 0
	var cells Marks

	// 橫線
	for i := 0; i < BoardSize; i++ {
		complete := true
		for j := 0; j < BoardSize; j++ {
			if !marked[i][j] {
				complete = false
				break
			}
		}
		if complete {
			count++
			for j := 0; j < BoardSize; j++ {
				cells[i][j] = true
			}
		}
	}

	// 直線
	for j := 0; j < BoardSize; j++ {
		complete := true
		for i := 0; i < BoardSize; i++ {
			if !marked[i][j] {
				complete = false
				break
			}
		}
		if complete {
			count++
			for i := 0; i < BoardSize; i++ {
				cells[i][j] = true
			}
		}
	}

	// 主對角線（左上到右下）
	complete := true
	for i := 0; i < BoardSize; i++ {
		if !marked[i][i] {
			complete = false
			break
		}
	}
	if complete {
		count++
		for i := 0; i < BoardSize; i++ {
			cells[i][i] = true
		}
	}

	// 反對角線（右上到左下）
	complete = true
	for i := 0; i < BoardSize; i++ {
		if !marked[i][BoardSize-1-i] {
			complete = false
			break
		}
	}
	if complete {
		count++
		for i := 0; i < BoardSize; i++ {
			cells[i][BoardSize-1-i] = true
		}
	}

	if count > MaxLetters {
		count = MaxLetters
	}
	return count, cells
}
