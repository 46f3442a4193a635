package domain

import "time"

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipRejected FriendshipStatus = "rejected"
)

// Friendship is a directed edge from requester to recipient.
// Only an accepted edge grants agenda visibility, in both directions.
type Friendship struct {
	ID          int64
	RequesterID int64
	RecipientID int64
	Status      FriendshipStatus
	CreatedAt   time.Time
}

// Other returns the user on the opposite end of the edge from userID.
func (f *Friendship) Other(userID int64) int64 {
	if f.RequesterID == userID {
		return f.RecipientID
	}
	return f.RequesterID
}
