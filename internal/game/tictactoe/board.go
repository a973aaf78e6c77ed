// Package tictactoe implements the 3x3 board engine and the opponent
// move-selection strategies.
package tictactoe

import (
	"errors"
	"fmt"
	"strings"
)

// Mark is the content of a single board cell.
type Mark byte

// Cell markers. The byte values double as the wire and storage encoding.
const (
	Empty    Mark = '.'
	Player   Mark = 'X'
	Opponent Mark = 'O'
)

// BoardSize is the number of cells on the board.
const BoardSize = 9

// ErrInvalidMove is returned when a move targets a cell outside the board,
// an occupied cell, or is made by an unknown actor.
var ErrInvalidMove = errors.New("invalid move")

// winLines lists every row, column and diagonal.
var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// corners in ascending order.
var corners = [4]int{0, 2, 6, 8}

const center = 4

// Board is a fixed 3x3 board stored row-major. It is a value type, so
// passing it around never aliases the caller's copy.
type Board [BoardSize]Mark

// Result is the outcome of evaluating a board.
// Winner is Empty when nobody has three in a row.
type Result struct {
	Winner Mark
	IsDraw bool
}

// Finished reports whether the game on the evaluated board is over.
func (r Result) Finished() bool {
	return r.Winner != Empty || r.IsDraw
}

// NewBoard returns an all-empty board.
func NewBoard() Board {
	var b Board
	for i := range b {
		b[i] = Empty
	}
	return b
}

// ParseBoard decodes the 9-character representation used in storage and
// on the wire, e.g. "XX..O....".
func ParseBoard(s string) (Board, error) {
	var b Board
	if len(s) != BoardSize {
		return b, fmt.Errorf("board must have %d cells, got %d", BoardSize, len(s))
	}
	for i := 0; i < BoardSize; i++ {
		m := Mark(s[i])
		if m != Empty && m != Player && m != Opponent {
			return b, fmt.Errorf("unknown cell marker %q at %d", s[i], i)
		}
		b[i] = m
	}
	return b, nil
}

// MustParseBoard is ParseBoard for literals known to be valid.
func MustParseBoard(s string) Board {
	b, err := ParseBoard(s)
	if err != nil {
		panic(err)
	}
	return b
}

// String returns the 9-character encoding of the board.
func (b Board) String() string {
	var sb strings.Builder
	sb.Grow(BoardSize)
	for _, m := range b {
		sb.WriteByte(byte(m))
	}
	return sb.String()
}

// Cells returns the board as single-character markers, the shape clients
// expect in JSON responses.
func (b Board) Cells() []string {
	cells := make([]string, BoardSize)
	for i, m := range b {
		cells[i] = string(m)
	}
	return cells
}

// Evaluate reports the winner, or a draw when the board is full without one.
func Evaluate(b Board) Result {
	for _, ln := range winLines {
		m := b[ln[0]]
		if m != Empty && m == b[ln[1]] && m == b[ln[2]] {
			return Result{Winner: m}
		}
	}
	for _, m := range b {
		if m == Empty {
			return Result{Winner: Empty}
		}
	}
	return Result{Winner: Empty, IsDraw: true}
}

// AvailableMoves returns the indices of empty cells in ascending order.
func AvailableMoves(b Board) []int {
	moves := make([]int, 0, BoardSize)
	for i, m := range b {
		if m == Empty {
			moves = append(moves, i)
		}
	}
	return moves
}

// ApplyMove places actor's mark on cell and returns the resulting board.
// The input board is left untouched.
func ApplyMove(b Board, cell int, actor Mark) (Board, error) {
	if cell < 0 || cell >= BoardSize {
		return b, fmt.Errorf("%w: cell %d is outside 0..8", ErrInvalidMove, cell)
	}
	if actor != Player && actor != Opponent {
		return b, fmt.Errorf("%w: unknown actor %q", ErrInvalidMove, byte(actor))
	}
	if b[cell] != Empty {
		return b, fmt.Errorf("%w: cell %d is already taken", ErrInvalidMove, cell)
	}

	next := b
	next[cell] = actor
	return next, nil
}

// Other returns the opposing role.
func Other(m Mark) Mark {
	if m == Player {
		return Opponent
	}
	return Player
}

// MarshalText encodes the mark as its single-character marker.
func (m Mark) MarshalText() ([]byte, error) {
	return []byte{byte(m)}, nil
}

// UnmarshalText decodes a single-character marker.
func (m *Mark) UnmarshalText(text []byte) error {
	if len(text) != 1 {
		return fmt.Errorf("mark must be one character, got %q", text)
	}
	switch v := Mark(text[0]); v {
	case Empty, Player, Opponent:
		*m = v
		return nil
	default:
		return fmt.Errorf("unknown mark %q", text)
	}
}
