package gameerrors_test

import (
	"errors"
	"testing"

	"github.com/hmajid2301/banter-bus-core-api/internal/v1/gameerrors"
	"github.com/stretchr/testify/assert"
)

func TestCodedErrorsCarryStableCodes(t *testing.T) {
	cases := []struct {
		err  gameerrors.Coded
		code string
	}{
		{gameerrors.RoomNotFound("r1"), "room_not_found"},
		{gameerrors.RoomExists("r1"), "room_create_fail"},
		{gameerrors.NicknameExists("Majiy"), "room_join_fail"},
		{gameerrors.PlayerNotHost("p1"), "kick_player_fail"},
		{gameerrors.ActionTimedOut(10, 5), "time_run_out"},
	}

	for _, c := range cases {
		assert.Equal(t, c.code, c.err.Code())
		assert.NotEmpty(t, c.err.Error())
	}
}

func TestActionTimedOutIsMatchableWithErrorsAs(t *testing.T) {
	var err error = gameerrors.ActionTimedOut(100, 50)

	var timedOut *gameerrors.ActionTimedOutError
	assert.True(t, errors.As(err, &timedOut))
	assert.Equal(t, int64(100), timedOut.Now)
	assert.Equal(t, int64(50), timedOut.CompletedBy)
}

func TestNicknameExistsMessageMatchesSeedScenario(t *testing.T) {
	err := gameerrors.NicknameExists("Majiy")
	assert.Equal(t, "nickname Majiy already exists", err.Error())
}

func TestPlayerNotHostMessageMatchesSeedScenario(t *testing.T) {
	err := gameerrors.PlayerNotHost("p1")
	assert.Equal(t, "You are not host, so cannot kick another player", err.Error())
}
