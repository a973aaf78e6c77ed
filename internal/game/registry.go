package game

import (
	"fmt"
	"sync"

	"tictactoe-promo/internal/game/tictactoe"
	"tictactoe-promo/internal/model"
)

// Registry maps difficulties to strategies.
// Lookups of unknown difficulties fall back to the medium strategy.
type Registry struct {
	strategies map[model.Difficulty]Strategy
	mu         sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[model.Difficulty]Strategy),
	}
}

// NewDefaultRegistry returns a registry with easy=random, medium=heuristic
// and hard=minimax.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(model.DifficultyEasy, tictactoe.NewRandom())
	_ = r.Register(model.DifficultyMedium, tictactoe.NewHeuristic())
	_ = r.Register(model.DifficultyHard, tictactoe.NewMinimax())
	return r
}

// Register binds a strategy to a difficulty, replacing any previous one.
func (r *Registry) Register(d model.Difficulty, s Strategy) error {
	if s == nil {
		return fmt.Errorf("cannot register nil strategy")
	}
	if d == "" {
		return fmt.Errorf("difficulty cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[d] = s
	return nil
}

// Get returns the strategy for d. Unknown difficulties resolve to the
// medium strategy; if that is missing too, a fresh heuristic is returned.
func (r *Registry) Get(d model.Difficulty) Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.strategies[d]; ok {
		return s
	}
	if s, ok := r.strategies[model.DifficultyMedium]; ok {
		return s
	}
	return tictactoe.NewHeuristic()
}

// Difficulties returns the registered difficulties.
func (r *Registry) Difficulties() []model.Difficulty {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Difficulty, 0, len(r.strategies))
	for d := range r.strategies {
		out = append(out, d)
	}
	return out
}

// Count returns the number of registered strategies.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.strategies)
}
