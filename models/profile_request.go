package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RequestStatus enum
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// ProfileChanges lists the citizen fields an admin may approve. Empty
// fields are left unchanged.
type ProfileChanges struct {
	Phone   string `bson:"phone,omitempty" json:"phone,omitempty"`
	Address string `bson:"address,omitempty" json:"address,omitempty"`
	Pincode string `bson:"pincode,omitempty" json:"pincode,omitempty"`
}

func (c ProfileChanges) IsEmpty() bool {
	return c.Phone == "" && c.Address == "" && c.Pincode == ""
}

// ProfileUpdateRequest is a citizen's request to change contact details.
// A citizen has at most one pending request at a time.
type ProfileUpdateRequest struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	User             primitive.ObjectID  `bson:"user" json:"user"`
	RequestedChanges ProfileChanges      `bson:"requestedChanges" json:"requestedChanges"`
	Status           RequestStatus       `bson:"status" json:"status"`
	ReviewedBy       *primitive.ObjectID `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	ReviewedAt       *time.Time          `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
	RejectionReason  string              `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	CreatedAt        time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time           `bson:"updatedAt" json:"updatedAt"`
}
