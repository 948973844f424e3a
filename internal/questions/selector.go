package questions

import (
	"math/rand"
	"sync"
)

// Selector picks questions from a bank. It is safe for concurrent use.
type Selector struct {
	bank *Bank

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSelector(bank *Bank, seed int64) *Selector {
	return &Selector{
		bank: bank,
		rnd:  rand.New(rand.NewSource(seed)),
	}
}

func (s *Selector) Bank() *Bank {
	return s.bank
}

// Next returns the next question to ask. It reports false when every
// question in the bank has already been asked.
//
// Unasked questions at the target difficulty are preferred; when there are
// none, the nearest level is used (the easier one on a tie). Within that
// pool the least-used categories win, and the remaining candidates are
// drawn at random.
func (s *Selector) Next(asked map[string]bool, usedCategories map[Category]int, target Difficulty) (Question, bool) {
	var candidates []Question
	for _, q := range s.bank.questions {
		if !asked[q.ID] {
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		return Question{}, false
	}

	level := nearestLevel(candidates, target)
	pool := candidates[:0:0]
	for _, q := range candidates {
		if q.Difficulty == level {
			pool = append(pool, q)
		}
	}

	pool = leastUsedCategories(pool, usedCategories)

	s.mu.Lock()
	idx := s.rnd.Intn(len(pool))
	s.mu.Unlock()

	return pool[idx].Clone(), true
}

func nearestLevel(candidates []Question, target Difficulty) Difficulty {
	best := candidates[0].Difficulty
	bestDist := distance(best, target)
	for _, q := range candidates[1:] {
		d := distance(q.Difficulty, target)
		if d < bestDist || (d == bestDist && q.Difficulty < best) {
			best, bestDist = q.Difficulty, d
		}
	}
	return best
}

func distance(a, b Difficulty) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func leastUsedCategories(pool []Question, used map[Category]int) []Question {
	fewest := -1
	for _, q := range pool {
		if n := used[q.Category]; fewest < 0 || n < fewest {
			fewest = n
		}
	}
	out := pool[:0:0]
	for _, q := range pool {
		if used[q.Category] == fewest {
			out = append(out, q)
		}
	}
	return out
}

// Adapt moves the difficulty one level up when score reaches promote, one
// level down when it falls to demote, and leaves it unchanged otherwise.
func Adapt(current Difficulty, score, promote, demote int) Difficulty {
	switch {
	case score >= promote:
		return current.Harder()
	case score <= demote:
		return current.Easier()
	default:
		return current
	}
}
