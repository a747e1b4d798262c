package common

type SessionState uint

const (
	OverviewView SessionState = iota
	FollowersView
	FollowingView
	ActivityView
)
