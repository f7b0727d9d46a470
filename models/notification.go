package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationCategory enum
type NotificationCategory string

const (
	NotifyNewIssue         NotificationCategory = "new_issue"
	NotifyUpvote           NotificationCategory = "upvote"
	NotifyAssignment       NotificationCategory = "assignment"
	NotifyResolution       NotificationCategory = "resolution"
	NotifyBadge            NotificationCategory = "badge"
	NotifyAccountApproval  NotificationCategory = "account_approval"
	NotifyAccountRejection NotificationCategory = "account_rejection"

	NotifyProfileUpdateRequest  NotificationCategory = "profile_update_request"
	NotifyProfileUpdateApproved NotificationCategory = "profile_update_approved"
	NotifyProfileUpdateRejected NotificationCategory = "profile_update_rejected"
)

type Notification struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	User      primitive.ObjectID   `bson:"user" json:"user"`
	Title     string               `bson:"title" json:"title"`
	Body      string               `bson:"body" json:"body"`
	Category  NotificationCategory `bson:"type" json:"type"`
	Data      map[string]string    `bson:"data,omitempty" json:"data,omitempty"`
	IsRead    bool                 `bson:"isRead" json:"isRead"`
	CreatedAt time.Time            `bson:"createdAt" json:"createdAt"`
}
