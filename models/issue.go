package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueCategory enum
type IssueCategory string

const (
	Pothole     IssueCategory = "pothole"
	Streetlight IssueCategory = "streetlight"
	Garbage     IssueCategory = "garbage"
	Water       IssueCategory = "water"
	Sewage      IssueCategory = "sewage"
	Traffic     IssueCategory = "traffic"
	Park        IssueCategory = "park"
	Building    IssueCategory = "building"
	Other       IssueCategory = "other"
)

func (c IssueCategory) Valid() bool {
	switch c {
	case Pothole, Streetlight, Garbage, Water, Sewage, Traffic, Park, Building, Other:
		return true
	}
	return false
}

// IssueStatus enum
type IssueStatus string

const (
	StatusPending    IssueStatus = "pending"
	StatusVerified   IssueStatus = "verified"
	StatusAssigned   IssueStatus = "assigned"
	StatusInProgress IssueStatus = "in-progress"
	StatusResolved   IssueStatus = "resolved"
	StatusRejected   IssueStatus = "rejected"
)

func ParseIssueStatus(s string) (IssueStatus, bool) {
	switch st := IssueStatus(s); st {
	case StatusPending, StatusVerified, StatusAssigned, StatusInProgress, StatusResolved, StatusRejected:
		return st, true
	}
	return "", false
}

// Priority enum
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Location is a GeoJSON point plus the postal partition used for scoping.
type Location struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"` // [longitude, latitude]
	Address     string    `bson:"address" json:"address"`
	City        string    `bson:"city,omitempty" json:"city,omitempty"`
	State       string    `bson:"state,omitempty" json:"state,omitempty"`
	Pincode     string    `bson:"pincode" json:"pincode"`
}

type Comment struct {
	User      primitive.ObjectID `bson:"user" json:"user"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// AIPrediction is the annotation returned by the analysis service.
type AIPrediction struct {
	Category                string              `bson:"category" json:"category"`
	Confidence              float64             `bson:"confidence" json:"confidence"`
	IsDuplicate             bool                `bson:"isDuplicate" json:"isDuplicate"`
	DuplicateOf             *primitive.ObjectID `bson:"duplicateOf,omitempty" json:"duplicateOf,omitempty"`
	Similarity              float64             `bson:"similarity" json:"similarity"`
	Priority                Priority            `bson:"priority,omitempty" json:"priority,omitempty"`
	PriorityScore           float64             `bson:"priorityScore" json:"priorityScore"`
	EstimatedResolutionTime int                 `bson:"estimatedResolutionTime" json:"estimatedResolutionTime"`
	PredictedAt             time.Time           `bson:"predictedAt" json:"predictedAt"`
}

// Issue represents a civic issue reported by a citizen.
// Department and Location.Pincode are fixed at creation; they define the
// access partition the issue belongs to.
type Issue struct {
	ID                      primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Title                   string              `bson:"title" json:"title"`
	Description             string              `bson:"description" json:"description"`
	Category                IssueCategory       `bson:"category" json:"category"`
	Department              Department          `bson:"department" json:"department"`
	Tags                    []string            `bson:"tags" json:"tags"`
	Priority                Priority            `bson:"priority" json:"priority"`
	Status                  IssueStatus         `bson:"status" json:"status"`
	Location                Location            `bson:"location" json:"location"`
	ReportedBy              primitive.ObjectID  `bson:"reportedBy" json:"reportedBy"`
	AssignedTo              *primitive.ObjectID `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	Upvotes                 []Upvote            `bson:"upvotes" json:"upvotes"`
	UpvoteCount             int                 `bson:"upvoteCount" json:"upvoteCount"`
	Comments                []Comment           `bson:"comments" json:"comments"`
	AIPrediction            *AIPrediction       `bson:"aiPrediction,omitempty" json:"aiPrediction,omitempty"`
	SLADeadline             *time.Time          `bson:"slaDeadline,omitempty" json:"slaDeadline,omitempty"`
	ResolvedAt              *time.Time          `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
	ResolutionNotes         string              `bson:"resolutionNotes,omitempty" json:"resolutionNotes,omitempty"`
	ResolutionCreditAwarded bool                `bson:"resolutionCreditAwarded" json:"-"`
	Version                 int64               `bson:"version" json:"version"`
	CreatedAt               time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt               time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// HasUpvoteFrom reports whether voter currently upvotes the issue.
func (i *Issue) HasUpvoteFrom(voter primitive.ObjectID) bool {
	for _, u := range i.Upvotes {
		if u.Voter == voter {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (i *Issue) Clone() *Issue {
	c := *i
	c.Tags = append([]string(nil), i.Tags...)
	c.Upvotes = append([]Upvote(nil), i.Upvotes...)
	c.Comments = append([]Comment(nil), i.Comments...)
	c.Location.Coordinates = append([]float64(nil), i.Location.Coordinates...)
	if i.AssignedTo != nil {
		a := *i.AssignedTo
		c.AssignedTo = &a
	}
	if i.AIPrediction != nil {
		p := *i.AIPrediction
		c.AIPrediction = &p
	}
	if i.SLADeadline != nil {
		t := *i.SLADeadline
		c.SLADeadline = &t
	}
	if i.ResolvedAt != nil {
		t := *i.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}
