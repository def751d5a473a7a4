package consensus

import "errors"

var (
	// ErrUnknownSender - payload signed by an identity outside the roster.
	ErrUnknownSender = errors.New("sender is not in the validator set")
	// ErrHeightMismatch - payload belongs to another round.
	ErrHeightMismatch = errors.New("payload height does not match round height")
	// ErrInvalidSignature - signature does not verify against the canonical
	// content.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrNotLeader - proposal from a validator that is not the round leader.
	ErrNotLeader = errors.New("proposal source is not the round leader")
	// ErrDuplicateVote - a second commit vote from the same validator.
	ErrDuplicateVote = errors.New("duplicate commit vote")

	errNilPayload = errors.New("message carries no payload")
)
