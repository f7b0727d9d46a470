package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicsync-be/apperrors"
	"civicsync-be/models"
	"civicsync-be/store"
)

const defaultProfileRejectionReason = "Not specified"

// ProfileService runs the profile change workflow: citizens request changes
// to their contact details and an admin approves or rejects them.
type ProfileService struct {
	base
	requests ProfileRequestStore
	users    UserStore
}

func NewProfileService(requests ProfileRequestStore, users UserStore, opts ...Option) (*ProfileService, error) {
	if requests == nil {
		return nil, errors.New("profile request store is required")
	}
	if users == nil {
		return nil, errors.New("user store is required")
	}
	return &ProfileService{base: newBase(opts), requests: requests, users: users}, nil
}

// RequestUpdate files a pending change request. Name and Aadhar number are
// not part of ProfileChanges and can never be changed this way.
func (s *ProfileService) RequestUpdate(ctx context.Context, p *models.User, changes models.ProfileChanges) (*models.ProfileUpdateRequest, error) {
	if err := requireRole(p, "Only citizens can submit profile update requests", models.RoleCitizen); err != nil {
		return nil, err
	}
	changes = models.ProfileChanges{
		Phone:   strings.TrimSpace(changes.Phone),
		Address: strings.TrimSpace(changes.Address),
		Pincode: strings.TrimSpace(changes.Pincode),
	}
	if changes.IsEmpty() {
		return nil, apperrors.Validation("At least one of phone, address or pincode is required")
	}
	if changes.Pincode != "" && !ValidPincode(changes.Pincode) {
		return nil, apperrors.Validation("Pincode must be 6 digits")
	}

	now := s.now()
	r := &models.ProfileUpdateRequest{
		User:             p.ID,
		RequestedChanges: changes,
		Status:           models.RequestPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.requests.Insert(ctx, r); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperrors.New(apperrors.CodeConflict, "You already have a pending profile update request")
		}
		return nil, storeErr(err, "Profile update request")
	}
	s.logger.Info("profile update requested", "request", r.ID.Hex(), "user", p.ID.Hex())

	admins, err := s.users.List(ctx, store.UserFilter{Role: models.RoleAdmin})
	if err != nil {
		s.logger.Error("failed to list admins for profile request", "request", r.ID.Hex(), "error", err)
		return r, nil
	}
	for _, admin := range admins {
		s.notifier.Notify(ctx, admin.ID,
			"Profile Update Request",
			fmt.Sprintf("%s has requested to update their profile", p.Name),
			models.NotifyProfileUpdateRequest,
			map[string]string{"requestId": r.ID.Hex()},
		)
	}
	return r, nil
}

// PendingRequest returns the caller's pending request, or nil when there is none.
func (s *ProfileService) PendingRequest(ctx context.Context, p *models.User) (*models.ProfileUpdateRequest, error) {
	if p == nil {
		return nil, errNotAuthenticated
	}
	r, err := s.requests.FindPending(ctx, p.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err, "Profile update request")
	}
	return r, nil
}

func (s *ProfileService) ListPending(ctx context.Context, admin *models.User) ([]*models.ProfileUpdateRequest, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	out, err := s.requests.ListPending(ctx)
	if err != nil {
		return nil, storeErr(err, "Profile update requests")
	}
	return out, nil
}

// Approve claims the request and then applies its changes to the user. If
// the user update fails the claim is released so the request can be retried.
func (s *ProfileService) Approve(ctx context.Context, admin *models.User, id primitive.ObjectID) (*models.ProfileUpdateRequest, error) {
	r, err := s.review(ctx, admin, id, models.RequestApproved, "")
	if err != nil {
		return nil, err
	}

	var upd store.UserUpdate
	c := r.RequestedChanges
	if c.Phone != "" {
		upd.Phone = &c.Phone
	}
	if c.Address != "" {
		upd.Address = &c.Address
	}
	if c.Pincode != "" {
		upd.Pincode = &c.Pincode
	}
	if _, err := s.users.Update(ctx, r.User, upd); err != nil {
		if _, rerr := s.requests.SetStatus(ctx, id, models.RequestApproved, models.RequestPending, store.RequestReview{}); rerr != nil {
			s.logger.Error("failed to release profile request", "request", id.Hex(), "error", rerr)
		}
		return nil, storeErr(err, "User")
	}

	s.notifier.Notify(ctx, r.User,
		"Profile Updated",
		"Your profile update request has been approved",
		models.NotifyProfileUpdateApproved,
		map[string]string{"requestId": r.ID.Hex()},
	)
	return r, nil
}

func (s *ProfileService) Reject(ctx context.Context, admin *models.User, id primitive.ObjectID, reason string) (*models.ProfileUpdateRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultProfileRejectionReason
	}
	r, err := s.review(ctx, admin, id, models.RequestRejected, reason)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, r.User,
		"Profile Update Rejected",
		"Your profile update request was rejected. Reason: "+reason,
		models.NotifyProfileUpdateRejected,
		map[string]string{"requestId": r.ID.Hex()},
	)
	return r, nil
}

func (s *ProfileService) review(ctx context.Context, admin *models.User, id primitive.ObjectID, to models.RequestStatus, reason string) (*models.ProfileUpdateRequest, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	r, err := s.requests.SetStatus(ctx, id, models.RequestPending, to, store.RequestReview{By: admin.ID, Reason: reason, At: s.now()})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperrors.New(apperrors.CodeConflict, "This request has already been processed")
		}
		return nil, storeErr(err, "Profile update request")
	}
	s.logger.Info("profile update reviewed", "request", id.Hex(), "status", string(to), "by", admin.ID.Hex())
	return r, nil
}

// UpdateOwnProfile lets an admin edit their own name and phone. Officers go
// through an admin and citizens file a request instead.
func (s *ProfileService) UpdateOwnProfile(ctx context.Context, p *models.User, name, phone *string) (*models.User, error) {
	if p == nil {
		return nil, errNotAuthenticated
	}
	switch p.Role {
	case models.RoleOfficer:
		return nil, apperrors.Denied("Officers cannot update their own profiles. Please contact admin.")
	case models.RoleCitizen:
		return nil, apperrors.Denied("Citizens must submit profile update requests for admin approval.")
	}
	var upd store.UserUpdate
	if name != nil && strings.TrimSpace(*name) != "" {
		n := strings.TrimSpace(*name)
		upd.Name = &n
	}
	if phone != nil {
		ph := strings.TrimSpace(*phone)
		upd.Phone = &ph
	}
	u, err := s.users.Update(ctx, p.ID, upd)
	if err != nil {
		return nil, storeErr(err, "User")
	}
	return u, nil
}
