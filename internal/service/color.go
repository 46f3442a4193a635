package service

import (
	"fmt"
	"hash/fnv"
)

// friendColorOffset shifts friend colors away from the owner's palette
const friendColorOffset = 1000

// LabelColor derives a stable CSS hex color from a source label.
// Same label, same color, on every run.
func LabelColor(label string) string {
	return fmt.Sprintf("#%06x", labelHash(label)%0xFFFFFF)
}

// FriendLabelColor is LabelColor for blocks shown from a friend's sources
func FriendLabelColor(label string) string {
	return fmt.Sprintf("#%06x", (labelHash(label)+friendColorOffset)%0xFFFFFF)
}

func labelHash(label string) uint64 {
	h := fnv.New32a()
	h.Write([]byte(label))
	return uint64(h.Sum32())
}
