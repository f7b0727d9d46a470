package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// Role enum
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleOfficer Role = "officer"
	RoleAdmin   Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleCitizen, RoleOfficer, RoleAdmin:
		return r, true
	}
	return "", false
}

// AccountStatus enum
type AccountStatus string

const (
	AccountPending  AccountStatus = "pending"
	AccountApproved AccountStatus = "approved"
	AccountRejected AccountStatus = "rejected"
)

// Badge is an achievement marker. Once earned it is never removed.
type Badge struct {
	Name     string    `bson:"name" json:"name"`
	Icon     string    `bson:"icon" json:"icon"`
	EarnedAt time.Time `bson:"earnedAt" json:"earnedAt"`
}

// CreditEntry records one applied credit movement. EventKey identifies the
// triggering event instance and is unique within a user's ledger.
type CreditEntry struct {
	EventKey  string    `bson:"eventKey" json:"eventKey"`
	Reason    string    `bson:"reason" json:"reason"`
	Amount    int64     `bson:"amount" json:"amount"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// User is an authenticated principal: citizen, officer or admin.
type User struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name            string              `bson:"name" json:"name"`
	AadharNumber    string              `bson:"aadharNumber,omitempty" json:"aadharNumber,omitempty"`
	OfficerID       string              `bson:"officerId,omitempty" json:"officerId,omitempty"`
	Password        string              `bson:"password,omitempty" json:"-"`
	Phone           string              `bson:"phone,omitempty" json:"phone,omitempty"`
	Address         string              `bson:"address,omitempty" json:"address,omitempty"`
	Role            Role                `bson:"role" json:"role"`
	Department      Department          `bson:"department,omitempty" json:"department,omitempty"`
	Pincode         string              `bson:"pincode,omitempty" json:"pincode,omitempty"`
	AccountStatus   AccountStatus       `bson:"accountStatus" json:"accountStatus"`
	RejectionReason string              `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	CivicCredits    int64               `bson:"civicCredits" json:"civicCredits"`
	CreditLedger    []CreditEntry       `bson:"creditLedger,omitempty" json:"-"`
	Badges          []Badge             `bson:"badges" json:"badges"`
	CreatedBy       *primitive.ObjectID `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) HashPassword() error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

func (u *User) ComparePassword(candidate string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(candidate))
	return err == nil
}

// HasBadge reports whether a badge with the given name was already earned.
func (u *User) HasBadge(name string) bool {
	for _, b := range u.Badges {
		if b.Name == name {
			return true
		}
	}
	return false
}
