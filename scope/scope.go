// Package scope decides which issues a principal may see and act on.
//
// A Scope is derived once per request from the authenticated principal and
// then used two ways: Check answers allow/deny for a single issue, and
// Predicate yields the equivalent list filter. Both read the same fields, so
// filtering a listing and checking each item one by one produce the same set.
package scope

import (
	"civicsync-be/apperrors"
	"civicsync-be/models"
)

type Kind int

const (
	// Unrestricted sees every issue (admins and anonymous readers).
	Unrestricted Kind = iota
	// DepartmentPincode matches both the department and the postal code (officers).
	DepartmentPincode
	// Pincode matches the postal code only (citizens). An empty value is open.
	Pincode
)

type Operation int

const (
	Read Operation = iota
	Write
)

const (
	ReasonDepartment   = "Access denied. This issue is not in your department."
	ReasonPincode      = "Access denied. This issue is not in your pincode area."
	ReasonArea         = "Access denied. This issue is not in your area."
	ReasonOfficerSetup = "Officer must have department and pincode assigned"
)

type Scope struct {
	Kind       Kind
	Department models.Department
	Pincode    string
	// ReadOnly is set for unauthenticated viewers.
	ReadOnly bool
}

// Resolve derives the visibility scope of a principal. A nil principal is an
// anonymous reader with unrestricted read-only access.
func Resolve(p *models.User) (Scope, error) {
	if p == nil {
		return Scope{Kind: Unrestricted, ReadOnly: true}, nil
	}
	switch p.Role {
	case models.RoleAdmin:
		return Scope{Kind: Unrestricted}, nil
	case models.RoleOfficer:
		if !p.Department.Valid() || p.Pincode == "" {
			return Scope{}, apperrors.New(apperrors.CodeConfiguration, ReasonOfficerSetup)
		}
		return Scope{Kind: DepartmentPincode, Department: p.Department, Pincode: p.Pincode}, nil
	case models.RoleCitizen:
		return Scope{Kind: Pincode, Pincode: p.Pincode}, nil
	default:
		return Scope{}, apperrors.Newf(apperrors.CodeConfiguration, "unknown role %q", p.Role)
	}
}

// Check decides whether the scope may perform op on issue. It returns nil to
// allow, or an AccessDenied error whose message names the mismatch.
func Check(s Scope, issue *models.Issue, op Operation) error {
	if op == Write && s.ReadOnly {
		return apperrors.New(apperrors.CodeUnauthorized, "User not authenticated")
	}
	switch s.Kind {
	case DepartmentPincode:
		if issue.Department != s.Department {
			return apperrors.Denied(ReasonDepartment)
		}
		if issue.Location.Pincode != s.Pincode {
			return apperrors.Denied(ReasonPincode)
		}
	case Pincode:
		if s.Pincode != "" && issue.Location.Pincode != s.Pincode {
			return apperrors.Denied(ReasonArea)
		}
	}
	return nil
}

// Predicate is the list-filter form of a scope. Zero fields do not constrain.
type Predicate struct {
	Department models.Department
	Pincode    string
}

func (s Scope) Predicate() Predicate {
	switch s.Kind {
	case DepartmentPincode:
		return Predicate{Department: s.Department, Pincode: s.Pincode}
	case Pincode:
		return Predicate{Pincode: s.Pincode}
	}
	return Predicate{}
}

func (p Predicate) Matches(issue *models.Issue) bool {
	if p.Department != "" && issue.Department != p.Department {
		return false
	}
	if p.Pincode != "" && issue.Location.Pincode != p.Pincode {
		return false
	}
	return true
}

// IsOpen reports whether the predicate admits every issue.
func (p Predicate) IsOpen() bool { return p.Department == "" && p.Pincode == "" }

// Key identifies the visible set for cache partitioning. Two scopes with
// different keys never share cached listings.
func (s Scope) Key() string {
	switch s.Kind {
	case DepartmentPincode:
		return "dept:" + string(s.Department) + ":pin:" + s.Pincode
	case Pincode:
		if s.Pincode == "" {
			return "pin:*"
		}
		return "pin:" + s.Pincode
	}
	if s.ReadOnly {
		return "public"
	}
	return "all"
}
