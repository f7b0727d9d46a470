package services

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"civicsync-be/apperrors"
	"civicsync-be/models"
	"civicsync-be/store"
)

const defaultRejectionReason = "No reason provided"

type AdminService struct {
	base
	users UserStore
}

func NewAdminService(users UserStore, opts ...Option) (*AdminService, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	return &AdminService{base: newBase(opts), users: users}, nil
}

func requireAdmin(p *models.User) error {
	return requireRole(p, "Admin access required", models.RoleAdmin)
}

// PendingCitizens lists citizen registrations awaiting review.
func (s *AdminService) PendingCitizens(ctx context.Context, admin *models.User) ([]*models.User, error) {
	return s.ListUsers(ctx, admin, store.UserFilter{Role: models.RoleCitizen, AccountStatus: models.AccountPending})
}

func (s *AdminService) ListUsers(ctx context.Context, admin *models.User, f store.UserFilter) ([]*models.User, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, f)
	if err != nil {
		return nil, storeErr(err, "Users")
	}
	return users, nil
}

// ApproveCitizen moves a pending citizen account to approved.
func (s *AdminService) ApproveCitizen(ctx context.Context, admin *models.User, id primitive.ObjectID) (*models.User, error) {
	u, err := s.review(ctx, admin, id, models.AccountApproved, "")
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, u.ID,
		"Account Approved",
		"Your CivicSync account has been approved. You can now login.",
		models.NotifyAccountApproval,
		map[string]string{},
	)
	return u, nil
}

// RejectCitizen moves a pending citizen account to rejected.
func (s *AdminService) RejectCitizen(ctx context.Context, admin *models.User, id primitive.ObjectID, reason string) (*models.User, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultRejectionReason
	}
	u, err := s.review(ctx, admin, id, models.AccountRejected, reason)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, u.ID,
		"Account Rejected",
		"Your CivicSync account registration was rejected. Reason: "+reason,
		models.NotifyAccountRejection,
		map[string]string{},
	)
	return u, nil
}

func (s *AdminService) review(ctx context.Context, admin *models.User, id primitive.ObjectID, to models.AccountStatus, reason string) (*models.User, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	target, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "User")
	}
	if target.Role != models.RoleCitizen {
		return nil, apperrors.Validation("Can only review citizen accounts")
	}
	u, err := s.users.SetAccountStatus(ctx, id, models.AccountPending, to, reason)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperrors.New(apperrors.CodeConflict, "This account has already been reviewed")
		}
		return nil, storeErr(err, "User")
	}
	s.logger.Info("citizen account reviewed", "user", id.Hex(), "status", string(to), "by", admin.ID.Hex())
	return u, nil
}

type StaffInput struct {
	Name       string
	OfficerID  string
	Password   string
	Phone      string
	Department string
	Pincode    string
}

// CreateOfficer provisions an officer. Both department and pincode are
// required, since an officer without them cannot act on any issue.
func (s *AdminService) CreateOfficer(ctx context.Context, admin *models.User, in StaffInput) (*models.User, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	dept, ok := models.ParseDepartment(in.Department)
	if !ok {
		return nil, apperrors.Validation("Invalid department")
	}
	pincode := strings.TrimSpace(in.Pincode)
	if pincode == "" {
		return nil, apperrors.Validation("Pincode is required for officers")
	}
	u := &models.User{Role: models.RoleOfficer, Department: dept, Pincode: pincode}
	return s.createStaff(ctx, admin, u, in)
}

func (s *AdminService) CreateAdmin(ctx context.Context, admin *models.User, in StaffInput) (*models.User, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	return s.createStaff(ctx, admin, &models.User{Role: models.RoleAdmin}, in)
}

func (s *AdminService) createStaff(ctx context.Context, admin *models.User, u *models.User, in StaffInput) (*models.User, error) {
	u.Name = strings.TrimSpace(in.Name)
	u.OfficerID = strings.TrimSpace(in.OfficerID)
	u.Password = in.Password
	if u.Name == "" || u.OfficerID == "" || u.Password == "" {
		return nil, apperrors.Validation("Name, ID and password are required")
	}
	if len(u.Password) < minPasswordLength {
		return nil, apperrors.Validation("Password must be at least 6 characters")
	}
	u.Phone = strings.TrimSpace(in.Phone)
	u.AccountStatus = models.AccountApproved
	u.CreatedBy = &admin.ID
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	if err := u.HashPassword(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "Something went wrong")
	}
	if err := s.users.Insert(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperrors.New(apperrors.CodeConflict, "Officer ID already exists")
		}
		return nil, storeErr(err, "User")
	}
	s.logger.Info("staff account created", "user", u.ID.Hex(), "role", string(u.Role), "by", admin.ID.Hex())
	return u, nil
}

type UserUpdateInput struct {
	Name       *string
	Phone      *string
	Department *string
	Pincode    *string
	Password   *string
}

// UpdateUser edits profile and scope fields of any account.
func (s *AdminService) UpdateUser(ctx context.Context, admin *models.User, id primitive.ObjectID, in UserUpdateInput) (*models.User, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	var upd store.UserUpdate
	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		name := strings.TrimSpace(*in.Name)
		upd.Name = &name
	}
	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		upd.Phone = &phone
	}
	if in.Department != nil && *in.Department != "" {
		dept, ok := models.ParseDepartment(*in.Department)
		if !ok {
			return nil, apperrors.Validation("Invalid department")
		}
		upd.Department = &dept
	}
	if in.Pincode != nil && strings.TrimSpace(*in.Pincode) != "" {
		pin := strings.TrimSpace(*in.Pincode)
		upd.Pincode = &pin
	}
	if in.Password != nil && *in.Password != "" {
		if len(*in.Password) < minPasswordLength {
			return nil, apperrors.Validation("Password must be at least 6 characters")
		}
		tmp := models.User{Password: *in.Password}
		if err := tmp.HashPassword(); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "Something went wrong")
		}
		upd.Password = &tmp.Password
	}
	u, err := s.users.Update(ctx, id, upd)
	if err != nil {
		return nil, storeErr(err, "User")
	}
	return u, nil
}

// DeleteUser removes an account. The last admin cannot be removed.
func (s *AdminService) DeleteUser(ctx context.Context, admin *models.User, id primitive.ObjectID) error {
	if err := requireAdmin(admin); err != nil {
		return err
	}
	target, err := s.users.FindByID(ctx, id)
	if err != nil {
		return storeErr(err, "User")
	}
	if target.Role == models.RoleAdmin {
		n, err := s.users.Count(ctx, store.UserFilter{Role: models.RoleAdmin})
		if err != nil {
			return storeErr(err, "User")
		}
		if n <= 1 {
			return apperrors.Validation("Cannot delete the last admin account")
		}
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return storeErr(err, "User")
	}
	s.logger.Info("user deleted", "user", id.Hex(), "role", string(target.Role), "by", admin.ID.Hex())
	return nil
}

type AdminStats struct {
	TotalUsers           int64            `json:"totalUsers"`
	PendingUsers         int64            `json:"pendingUsers"`
	ApprovedUsers        int64            `json:"approvedUsers"`
	RejectedUsers        int64            `json:"rejectedUsers"`
	TotalOfficers        int64            `json:"totalOfficers"`
	TotalAdmins          int64            `json:"totalAdmins"`
	OfficersByDepartment map[string]int64 `json:"officersByDepartment"`
}

func (s *AdminService) Stats(ctx context.Context, admin *models.User) (*AdminStats, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	st := &AdminStats{OfficersByDepartment: map[string]int64{}}
	counts := []struct {
		dst *int64
		f   store.UserFilter
	}{
		{&st.TotalUsers, store.UserFilter{Role: models.RoleCitizen}},
		{&st.PendingUsers, store.UserFilter{Role: models.RoleCitizen, AccountStatus: models.AccountPending}},
		{&st.ApprovedUsers, store.UserFilter{Role: models.RoleCitizen, AccountStatus: models.AccountApproved}},
		{&st.RejectedUsers, store.UserFilter{Role: models.RoleCitizen, AccountStatus: models.AccountRejected}},
		{&st.TotalOfficers, store.UserFilter{Role: models.RoleOfficer}},
		{&st.TotalAdmins, store.UserFilter{Role: models.RoleAdmin}},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range counts {
		g.Go(func() (err error) {
			*c.dst, err = s.users.Count(gctx, c.f)
			return err
		})
	}
	var officers []*models.User
	g.Go(func() (err error) {
		officers, err = s.users.List(gctx, store.UserFilter{Role: models.RoleOfficer})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storeErr(err, "Stats")
	}
	for _, o := range officers {
		st.OfficersByDepartment[string(o.Department)]++
	}
	return st, nil
}
