package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicsync-be/apperrors"
	"civicsync-be/models"
	"civicsync-be/store"
)

const minPasswordLength = 6

var (
	aadharPattern  = regexp.MustCompile(`^\d{12}$`)
	pincodePattern = regexp.MustCompile(`^\d{6}$`)
)

// ValidPincode reports whether s is a six-digit postal code.
func ValidPincode(s string) bool { return pincodePattern.MatchString(s) }

type AuthService struct {
	base
	users UserStore
	inbox InboxStore
}

func NewAuthService(users UserStore, inbox InboxStore, opts ...Option) (*AuthService, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if inbox == nil {
		return nil, errors.New("notification store is required")
	}
	return &AuthService{base: newBase(opts), users: users, inbox: inbox}, nil
}

type RegisterInput struct {
	Name         string
	AadharNumber string
	Password     string
	Phone        string
	Address      string
	Pincode      string
}

// Register creates a citizen account awaiting admin approval.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	u := &models.User{
		Name:          strings.TrimSpace(in.Name),
		AadharNumber:  strings.TrimSpace(in.AadharNumber),
		Password:      in.Password,
		Phone:         strings.TrimSpace(in.Phone),
		Address:       strings.TrimSpace(in.Address),
		Pincode:       strings.TrimSpace(in.Pincode),
		Role:          models.RoleCitizen,
		AccountStatus: models.AccountPending,
		Badges:        []models.Badge{},
	}
	if u.Name == "" {
		return nil, apperrors.Validation("Name is required")
	}
	if !aadharPattern.MatchString(u.AadharNumber) {
		return nil, apperrors.Validation("Aadhar number must be 12 digits")
	}
	if len(u.Password) < minPasswordLength {
		return nil, apperrors.Validation("Password must be at least 6 characters")
	}
	if u.Pincode != "" && !ValidPincode(u.Pincode) {
		return nil, apperrors.Validation("Pincode must be 6 digits")
	}
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	if err := u.HashPassword(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "Something went wrong")
	}
	if err := s.users.Insert(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperrors.New(apperrors.CodeConflict, "User with this Aadhar number already exists")
		}
		return nil, storeErr(err, "User")
	}
	s.logger.Info("citizen registered", "user", u.ID.Hex())
	return u, nil
}

var errBadCredentials = apperrors.New(apperrors.CodeUnauthorized, "Invalid credentials")

// Login checks credentials for the given role. Citizens sign in with their
// Aadhaar number, officers and admins with their officer id.
func (s *AuthService) Login(ctx context.Context, role, loginID, password string) (*models.User, error) {
	r, ok := models.ParseRole(strings.ToLower(strings.TrimSpace(role)))
	if !ok {
		return nil, apperrors.Validation("Invalid role")
	}
	u, err := s.users.FindByLogin(ctx, r, strings.TrimSpace(loginID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, storeErr(err, "User")
	}
	if !u.ComparePassword(password) {
		return nil, errBadCredentials
	}
	if u.Role == models.RoleCitizen && u.AccountStatus == models.AccountRejected {
		reason := u.RejectionReason
		if reason == "" {
			reason = defaultRejectionReason
		}
		return nil, apperrors.Denied("Your account has been rejected. Reason: " + reason)
	}
	return u, nil
}

// Principal loads the account behind an authenticated token.
func (s *AuthService) Principal(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodeUnauthorized, "User not found")
		}
		return nil, storeErr(err, "User")
	}
	return u, nil
}

const inboxLimit = 50

func (s *AuthService) Notifications(ctx context.Context, principal *models.User) ([]*models.Notification, error) {
	if principal == nil {
		return nil, errNotAuthenticated
	}
	items, err := s.inbox.ListForUser(ctx, principal.ID, inboxLimit)
	if err != nil {
		return nil, storeErr(err, "Notifications")
	}
	return items, nil
}

func (s *AuthService) MarkNotificationRead(ctx context.Context, principal *models.User, id primitive.ObjectID) error {
	if principal == nil {
		return errNotAuthenticated
	}
	if err := s.inbox.MarkRead(ctx, id, principal.ID); err != nil {
		return storeErr(err, "Notification")
	}
	return nil
}
