// Package dice 实现桌面游戏的掷骰逻辑。
package dice

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// 骰子数量与面数的约束，对应标准 D&D 骰子集。
const (
	MinCount = 1
	MaxCount = 10
)

// AllowedFaces 是允许的骰子面数集合。
var AllowedFaces = []int{4, 6, 8, 10, 12, 20}

// ErrInvalidCount 表示骰子数量超出 1-10 的范围。
var ErrInvalidCount = fmt.Errorf("dice count must be between %d and %d", MinCount, MaxCount)

// ErrInvalidFaces 表示面数不在允许集合内。
var ErrInvalidFaces = errors.New("faces must be one of 4, 6, 8, 10, 12, 20")

// DieRoll 是单颗骰子的结果。
type DieRoll struct {
	DieID string `json:"die_id"`
	Value int    `json:"value"`
}

// Result 是一次掷骰的完整结果。
type Result struct {
	Rolls []DieRoll `json:"rolls"`
	Total int       `json:"total"`
}

// Roll 掷 count 颗 faces 面的骰子。每颗骰子在 [1, faces] 上独立均匀取值，
// 使用 rand/v2 的全局生成器，不持有种子状态，跨房间并发调用互不影响。
func Roll(count, faces int) (*Result, error) {
	if count < MinCount || count > MaxCount {
		return nil, ErrInvalidCount
	}
	if !facesAllowed(faces) {
		return nil, ErrInvalidFaces
	}
	rolls := make([]DieRoll, 0, count)
	total := 0
	for i := 0; i < count; i++ {
		v := rand.IntN(faces) + 1
		rolls = append(rolls, DieRoll{DieID: fmt.Sprintf("d%d", i+1), Value: v})
		total += v
	}
	return &Result{Rolls: rolls, Total: total}, nil
}

func facesAllowed(faces int) bool {
	for _, f := range AllowedFaces {
		if f == faces {
			return true
		}
	}
	return false
}
