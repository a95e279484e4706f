// Package gameerrors defines the typed error taxonomy for the game-session
// server. Every error the dispatcher can map to a client-facing ERROR frame
// implements Coded; anything else falls back to the generic server_error code.
package gameerrors

import "fmt"

// Coded is implemented by every error the dispatcher knows how to translate
// into an outbound ERROR{code, message} frame.
type Coded interface {
	error
	Code() string
}

// ServerErrorCode is the fallback code for unmapped failures (§4.8).
const ServerErrorCode = "server_error"

type simple struct {
	code string
	msg  string
}

func (e *simple) Error() string { return e.msg }
func (e *simple) Code() string  { return e.code }

func newSimple(code, format string, args ...any) *simple {
	return &simple{code: code, msg: fmt.Sprintf(format, args...)}
}

// --- Not-found ---

func RoomNotFound(roomID string) Coded {
	return newSimple("room_not_found", "room %s not found", roomID)
}

func PlayerNotFound(playerID string) Coded {
	return newSimple("player_not_found", "player %s not found", playerID)
}

func GameNotFound(gameName string) Coded {
	return newSimple("game_not_found", "game %s not found", gameName)
}

func GameStateNotFound(roomID string) Coded {
	return newSimple("game_state_not_found", "game state for room %s not found", roomID)
}

// --- Exists ---

func RoomExists(roomID string) Coded {
	return newSimple("room_create_fail", "room %s already exists", roomID)
}

func PlayerExists(playerID string) Coded {
	return newSimple("player_exists", "player %s already exists", playerID)
}

func NicknameExists(nickname string) Coded {
	return newSimple("room_join_fail", "nickname %s already exists", nickname)
}

func GameStateExists(roomID string) Coded {
	return newSimple("game_state_exists", "game state for room %s already exists", roomID)
}

// --- Invalid state ---

func RoomInInvalidState(roomID, state string) Coded {
	return newSimple("room_in_invalid_state", "room %s is in invalid state %s", roomID, state)
}

func RoomNotJoinable(roomID string) Coded {
	return newSimple("room_join_fail", "room %s is not joinable", roomID)
}

func RoomHasNoHost(roomID string) Coded {
	return newSimple("room_has_no_host", "room %s has no host", roomID)
}

func PlayerNotHost(playerID string) Coded {
	return newSimple("kick_player_fail", "You are not host, so cannot kick another player")
}

func PlayerHasNoRoom(playerID string) Coded {
	return newSimple("player_has_no_room", "player %s is not in a room", playerID)
}

func PlayerNotInRoom(playerID, roomID string) Coded {
	return newSimple("player_not_in_room", "player %s is not in room %s", playerID, roomID)
}

func InvalidGameAction(action string) Coded {
	return newSimple("invalid_game_action", "invalid game action %s", action)
}

func InvalidGameState() Coded {
	return newSimple("invalid_game_state", "game state is missing or invalid")
}

func GameStateIsNoneError() Coded {
	return newSimple("game_state_is_none", "no further question state is available")
}

func GameStateAlreadyPaused(roomID string) Coded {
	return newSimple("game_state_already_paused", "game state for room %s is already paused", roomID)
}

func GameStateNotPaused(roomID string) Coded {
	return newSimple("game_state_not_paused", "game state for room %s is not paused", roomID)
}

func GameIsPaused(roomID string) Coded {
	return newSimple("game_is_paused", "game for room %s is paused", roomID)
}

func GameNotEnabled(gameName string) Coded {
	return newSimple("game_not_enabled", "game %s is not enabled", gameName)
}

// --- Input ---

func InvalidAnswer(answer string) Coded {
	return newSimple("invalid_answer", "invalid answer %q", answer)
}

func InvalidGameRound(round string) Coded {
	return newSimple("invalid_game_round", "unexpected game round %s", round)
}

func IncorrectFormat(msg string) Coded {
	return newSimple("incorrect_format", "%s", msg)
}

func TooManyPlayersInRoom(roomID string, max int) Coded {
	return newSimple("too_many_players", "room %s has more than %d players", roomID, max)
}

func TooFewPlayersInRoom(roomID string, min int) Coded {
	return newSimple("too_few_players", "room %s has fewer than %d players", roomID, min)
}

// --- Timing ---

type ActionTimedOutError struct {
	Now         int64
	CompletedBy int64
}

func (e *ActionTimedOutError) Error() string {
	return fmt.Sprintf("action timed out: now=%d completed_by=%d", e.Now, e.CompletedBy)
}

func (e *ActionTimedOutError) Code() string { return "time_run_out" }

func ActionTimedOut(now, completedBy int64) Coded {
	return &ActionTimedOutError{Now: now, CompletedBy: completedBy}
}

func ActionNotTimedOut() Coded {
	return newSimple("action_not_timed_out", "action has not yet timed out")
}

// --- Internal ---

func NoOtherHost(roomID string) Coded {
	return newSimple("no_other_host", "room %s has no other member to promote to host", roomID)
}

func NoAnswersFound(questionIdx int) Coded {
	return newSimple("no_answers_found", "no answers found for question %d", questionIdx)
}

func UnexpectedGameStateType(gameName string) Coded {
	return newSimple("unexpected_game_state_type", "unexpected game state type for game %s", gameName)
}

func ServerError(msg string) Coded {
	return newSimple(ServerErrorCode, "%s", msg)
}

// CatalogUnavailable wraps a failure reaching the external game-content
// catalog service (e.g. circuit breaker open, network error).
func CatalogUnavailable(cause error) Coded {
	return newSimple("catalog_unavailable", "catalog service unavailable: %v", cause)
}
