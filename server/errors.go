package main

import "errors"

// Validation failures surfaced to clients through acknowledgments. These are
// never sent as transport errors; the socket stays open and the client is
// expected to correct the request.
var (
	errRoomNotFound     = errors.New("room not found")
	errNotHost          = errors.New("only the host can do that")
	errNotYourTurn      = errors.New("not your turn")
	errAlreadyStarted   = errors.New("game already started")
	errNotStarted       = errors.New("game has not started")
	errRoomFull         = errors.New("room is full (max 6 players)")
	errNoRollsLeft      = errors.New("no rolls left")
	errCategoryUsed     = errors.New("category already used")
	errUnknownCategory  = errors.New("unknown category")
	errNotEnoughPlayers = errors.New("need at least 2 players to start")
	errGameOver         = errors.New("game is over, create a new room to play again")
)
