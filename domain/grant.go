package domain

import "time"

// MeetingStatus classifies where a meeting sits relative to now, as reported
// by the access oracle.
type MeetingStatus string

const (
	MeetingOngoing  MeetingStatus = "ongoing"
	MeetingUpcoming MeetingStatus = "upcoming"
	MeetingPast     MeetingStatus = "past"
	MeetingOther    MeetingStatus = "other"
)

// AccessGrant is the transient result of a meeting access check. It is never
// persisted; it only shapes the claims and validity window of the assertion
// issued for the request that obtained it.
type AccessGrant struct {
	HasAccess   bool
	Status      MeetingStatus
	StartTime   *time.Time
	EndTime     *time.Time
	IsOrganizer bool
	UserType    string
}

// Moderator reports whether the grant entitles the user to moderate the room.
func (g *AccessGrant) Moderator() bool {
	return g.IsOrganizer || g.UserType == "organizer"
}

// HasWindow reports whether the grant carries a concrete meeting time window.
func (g *AccessGrant) HasWindow() bool {
	return g.StartTime != nil && g.EndTime != nil
}
