package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationType names the admission event a notification reports.
type NotificationType string

const (
	NotifyJoinRequest NotificationType = "JOIN_REQUEST"
	NotifyApproved    NotificationType = "APPROVED"
	NotifyRejected    NotificationType = "REJECTED"
	NotifyGroupFull   NotificationType = "GROUP_FULL"
)

// NotificationAction tells a delivery channel whether to show or withdraw
// an earlier notification.
type NotificationAction string

const (
	ActionCreate  NotificationAction = "CREATE"
	ActionRetract NotificationAction = "RETRACT"
)

// ReferenceSplitGroup is the reference type of every admission notification.
const ReferenceSplitGroup = "SPLIT_GROUP"

// Notification is a message the admission core asks an external channel to
// deliver to one user. It is built inside a transaction but only handed to
// a notifier after that transaction commits.
type Notification struct {
	ID            uuid.UUID          `json:"id"`
	UserID        int64              `json:"user_id"`
	Type          NotificationType   `json:"type"`
	Action        NotificationAction `json:"action"`
	Title         string             `json:"title"`
	Message       string             `json:"message"`
	ReferenceID   int64              `json:"reference_id"`
	ReferenceType string             `json:"reference_type"`
	CreatedAt     time.Time          `json:"created_at"`
}

func newNotification(userID int64, typ NotificationType, action NotificationAction, title, message string, groupID int64, now time.Time) Notification {
	return Notification{
		ID:            uuid.New(),
		UserID:        userID,
		Type:          typ,
		Action:        action,
		Title:         title,
		Message:       message,
		ReferenceID:   groupID,
		ReferenceType: ReferenceSplitGroup,
		CreatedAt:     now,
	}
}

// JoinRequested tells the host that applicant asked to join g.
func JoinRequested(g Group, applicant int64, now time.Time) Notification {
	return newNotification(g.HostUserID, NotifyJoinRequest, ActionCreate,
		"Join request",
		fmt.Sprintf("User %d asked to join %q.", applicant, g.Title),
		g.ID, now)
}

// JoinRequestWithdrawn retracts the host's join-request notification after
// applicant cancelled.
func JoinRequestWithdrawn(g Group, applicant int64, now time.Time) Notification {
	return newNotification(g.HostUserID, NotifyJoinRequest, ActionRetract,
		"Join request withdrawn",
		fmt.Sprintf("User %d withdrew the request to join %q.", applicant, g.Title),
		g.ID, now)
}

// Approved tells userID that the host admitted them into g.
func Approved(g Group, userID int64, now time.Time) Notification {
	return newNotification(userID, NotifyApproved, ActionCreate,
		"Join approved",
		fmt.Sprintf("Your request to join %q was approved.", g.Title),
		g.ID, now)
}

// Rejected tells userID that the host declined their request for g.
func Rejected(g Group, userID int64, now time.Time) Notification {
	return newNotification(userID, NotifyRejected, ActionCreate,
		"Join rejected",
		fmt.Sprintf("Your request to join %q was rejected.", g.Title),
		g.ID, now)
}

// GroupFilled builds one GROUP_FULL notification for every participant
// record currently in g.
func GroupFilled(g Group, now time.Time) []Notification {
	out := make([]Notification, 0, len(g.Participants))
	for _, p := range g.Participants {
		out = append(out, newNotification(p.UserID, NotifyGroupFull, ActionCreate,
			"Recruiting complete",
			fmt.Sprintf("%q has filled all %d seats.", g.Title, g.MaxParticipants),
			g.ID, now))
	}
	return out
}
