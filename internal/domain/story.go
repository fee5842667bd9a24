package domain

import "time"

type Story struct {
	ID          int64
	By          string
	Title       string
	URL         string
	Score       int
	Descendants int
	Time        time.Time
	Kids        []int64
	Type        string
	Dead        bool
	Deleted     bool
}

type UserProfile struct {
	ID        string
	Created   time.Time
	Karma     int
	About     string
	Submitted []int64
}

// StoryList is the ordered set of item ids for one feed.
type StoryList struct {
	Name string
	IDs  []int64
}
