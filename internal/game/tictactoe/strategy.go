package tictactoe

import (
	"errors"
	"math/rand"
)

// ErrNoMoves is returned when a strategy is asked to move on a full board.
var ErrNoMoves = errors.New("no available moves")

// Random picks uniformly among the empty cells.
type Random struct {
	intn func(n int) int
}

// NewRandom creates a Random strategy backed by the shared math/rand source.
func NewRandom() *Random {
	return &Random{intn: rand.Intn}
}

// Name returns the strategy name.
func (s *Random) Name() string { return "random" }

// ChooseMove returns a uniformly chosen empty cell.
func (s *Random) ChooseMove(b Board) (int, error) {
	moves := AvailableMoves(b)
	if len(moves) == 0 {
		return 0, ErrNoMoves
	}
	return moves[s.intn(len(moves))], nil
}

// Heuristic wins when it can, blocks when it must, and otherwise prefers
// the center, then a random corner, then any random cell.
type Heuristic struct {
	intn     func(n int) int
	fallback *Random
}

// NewHeuristic creates a Heuristic strategy.
func NewHeuristic() *Heuristic {
	return &Heuristic{intn: rand.Intn, fallback: NewRandom()}
}

// Name returns the strategy name.
func (s *Heuristic) Name() string { return "heuristic" }

// ChooseMove applies the priority list: win, block, center, corner, random.
func (s *Heuristic) ChooseMove(b Board) (int, error) {
	if len(AvailableMoves(b)) == 0 {
		return 0, ErrNoMoves
	}

	if m, ok := WinningMove(b, Opponent); ok {
		return m, nil
	}
	if m, ok := WinningMove(b, Player); ok {
		return m, nil
	}
	if b[center] == Empty {
		return center, nil
	}

	free := make([]int, 0, len(corners))
	for _, c := range corners {
		if b[c] == Empty {
			free = append(free, c)
		}
	}
	if len(free) > 0 {
		return free[s.intn(len(free))], nil
	}

	return s.fallback.ChooseMove(b)
}

// WinningMove finds the lowest-indexed cell that wins immediately for actor.
func WinningMove(b Board, actor Mark) (int, bool) {
	for _, m := range AvailableMoves(b) {
		next, err := ApplyMove(b, m, actor)
		if err != nil {
			continue
		}
		if Evaluate(next).Winner == actor {
			return m, true
		}
	}
	return 0, false
}

// Minimax plays perfectly by searching the full game tree. The opponent
// maximizes and the player minimizes; ties go to the lowest cell index.
type Minimax struct{}

// NewMinimax creates a Minimax strategy.
func NewMinimax() *Minimax {
	return &Minimax{}
}

// Name returns the strategy name.
func (s *Minimax) Name() string { return "minimax" }

// ChooseMove returns the best cell for the opponent.
func (s *Minimax) ChooseMove(b Board) (int, error) {
	if len(AvailableMoves(b)) == 0 {
		return 0, ErrNoMoves
	}
	_, move := minimax(b, Opponent, 0)
	return move, nil
}

// Score returns the minimax value of b with toMove to play, measured from
// the opponent's side: 10-depth for an opponent win, depth-10 for a player
// win and 0 for a draw.
func Score(b Board, toMove Mark) int {
	score, _ := minimax(b, toMove, 0)
	return score
}

// minimax returns the score of b and the move achieving it (-1 at leaves).
func minimax(b Board, toMove Mark, depth int) (int, int) {
	res := Evaluate(b)
	switch {
	case res.Winner == Opponent:
		return 10 - depth, -1
	case res.Winner == Player:
		return depth - 10, -1
	case res.IsDraw:
		return 0, -1
	}

	moves := AvailableMoves(b)
	bestMove := moves[0]
	bestScore := 10000
	if toMove == Opponent {
		bestScore = -10000
	}

	for _, m := range moves {
		next, _ := ApplyMove(b, m, toMove)
		score, _ := minimax(next, Other(toMove), depth+1)
		if (toMove == Opponent && score > bestScore) || (toMove == Player && score < bestScore) {
			bestScore = score
			bestMove = m
		}
	}
	return bestScore, bestMove
}
