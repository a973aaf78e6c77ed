// Package game wires opponent strategies to session difficulties.
package game

import "tictactoe-promo/internal/game/tictactoe"

// Strategy chooses the opponent's next cell on a board that still has at
// least one empty cell. Implementations must not retain the board.
type Strategy interface {
	// Name returns a short identifier used in logs (e.g. "minimax").
	Name() string

	// ChooseMove returns the cell index the opponent plays.
	ChooseMove(b tictactoe.Board) (int, error)
}
