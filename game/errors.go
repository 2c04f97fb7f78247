// game/errors.go
package game

import "errors"

// Codes carried by validation failures.
const (
	CodeNotActive       = "NOT_ACTIVE"
	CodeNotParticipant  = "NOT_PARTICIPANT"
	CodeNotYourTurn     = "NOT_YOUR_TURN"
	CodeInvalidPosition = "INVALID_POSITION"
	CodeCellOccupied    = "CELL_OCCUPIED"
	CodeTrapOccupied    = "TRAP_OCCUPIED"
	CodeCardUsed        = "CARD_USED"
	CodeTrapUsed        = "TRAP_USED"
	CodeNotFound        = "NOT_FOUND"
)

// ValidationError is a rejected action. It never changes match state.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrMatchNotActive  = &ValidationError{Code: CodeNotActive, Message: "match is not active"}
	ErrNotParticipant  = &ValidationError{Code: CodeNotParticipant, Message: "not a player of this match"}
	ErrNotYourTurn     = &ValidationError{Code: CodeNotYourTurn, Message: "not your turn"}
	ErrTrapOnOwnTurn   = &ValidationError{Code: CodeNotYourTurn, Message: "traps are placed during the opponent's turn"}
	ErrInvalidPosition = &ValidationError{Code: CodeInvalidPosition, Message: "invalid position"}
	ErrCellOccupied    = &ValidationError{Code: CodeCellOccupied, Message: "cell already has a character"}
	ErrTrapOccupied    = &ValidationError{Code: CodeTrapOccupied, Message: "cell already has a trap"}
	ErrCardUsed        = &ValidationError{Code: CodeCardUsed, Message: "character card already used in this match"}
	ErrTrapUsed        = &ValidationError{Code: CodeTrapUsed, Message: "trap card already used in this match"}
	ErrCardNotFound    = &ValidationError{Code: CodeNotFound, Message: "card not found"}
)

// ErrNotFound is wrapped by stores and catalogs for unknown ids.
var ErrNotFound = errors.New("not found")

// AsValidation unwraps a validation failure, if err is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
