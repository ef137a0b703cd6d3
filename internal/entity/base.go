package entity

import (
	"sort"
	"time"
)

// NowUnixMilli returns current unix timestamp in milliseconds
func NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// GenPairKey builds the normalized key of an unordered participant pair.
// Format: {min(userA,userB)}:{max(userA,userB)}
// Uses ":" as separator so ids containing "_" or "-" stay unambiguous.
func GenPairKey(userA, userB string) string {
	users := []string{userA, userB}
	sort.Strings(users)
	return users[0] + ":" + users[1]
}
