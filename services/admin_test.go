package services

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/mock/gomock"

	"civicsync-be/apperrors"
	"civicsync-be/models"
	"civicsync-be/store"
)

type AdminServiceSuite struct {
	engineSuite
	svc *AdminService
}

func TestAdminServiceSuite(t *testing.T) {
	suite.Run(t, new(AdminServiceSuite))
}

func (s *AdminServiceSuite) SetupTest() {
	s.engineSuite.SetupTest()
	var err error
	s.svc, err = NewAdminService(s.users, s.opts()...)
	s.Require().NoError(err)
}

func (s *AdminServiceSuite) pendingCitizen() *models.User {
	u := s.newCitizen("110001")
	_, err := s.users.SetAccountStatus(s.ctx, u.ID, models.AccountApproved, models.AccountPending, "")
	s.Require().NoError(err)
	return u
}

func (s *AdminServiceSuite) TestPendingCitizens() {
	pending := s.pendingCitizen()

	got, err := s.svc.PendingCitizens(s.ctx, s.admin)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(pending.ID, got[0].ID)

	_, err = s.svc.PendingCitizens(s.ctx, s.officer)
	s.requireCode(err, apperrors.CodeAccessDenied)
}

func (s *AdminServiceSuite) TestApproveCitizen() {
	pending := s.pendingCitizen()
	s.expectNotify(pending.ID, models.NotifyAccountApproval).Times(1)

	u, err := s.svc.ApproveCitizen(s.ctx, s.admin, pending.ID)
	s.Require().NoError(err)
	s.Equal(models.AccountApproved, u.AccountStatus)

	_, err = s.svc.ApproveCitizen(s.ctx, s.admin, pending.ID)
	s.requireCode(err, apperrors.CodeConflict)
	s.Equal("This account has already been reviewed", apperrors.MessageOf(err))

	_, err = s.svc.ApproveCitizen(s.ctx, s.admin, s.officer.ID)
	s.requireCode(err, apperrors.CodeValidation)

	_, err = s.svc.ApproveCitizen(s.ctx, s.admin, primitive.NewObjectID())
	s.requireCode(err, apperrors.CodeNotFound)
}

func (s *AdminServiceSuite) TestRejectCitizenDefaultsReason() {
	pending := s.pendingCitizen()
	s.notifier.EXPECT().
		Notify(gomock.Any(), pending.ID, "Account Rejected", "Your CivicSync account registration was rejected. Reason: No reason provided", models.NotifyAccountRejection, gomock.Any()).
		Times(1)

	u, err := s.svc.RejectCitizen(s.ctx, s.admin, pending.ID, "   ")
	s.Require().NoError(err)
	s.Equal(models.AccountRejected, u.AccountStatus)
	s.Equal("No reason provided", u.RejectionReason)
}

func (s *AdminServiceSuite) TestCreateOfficer() {
	in := StaffInput{Name: "Kiran", OfficerID: "OFF-9", Password: "secret1", Department: "Roads", Pincode: "110003"}

	u, err := s.svc.CreateOfficer(s.ctx, s.admin, in)
	s.Require().NoError(err)
	s.Equal(models.RoleOfficer, u.Role)
	s.Equal(models.DeptRoads, u.Department)
	s.Equal(models.AccountApproved, u.AccountStatus)
	s.Require().NotNil(u.CreatedBy)
	s.Equal(s.admin.ID, *u.CreatedBy)
	s.NotEqual("secret1", u.Password)
	s.True(u.ComparePassword("secret1"))

	_, err = s.svc.CreateOfficer(s.ctx, s.admin, in)
	s.requireCode(err, apperrors.CodeConflict)

	bad := in
	bad.OfficerID = "OFF-10"
	bad.Pincode = ""
	_, err = s.svc.CreateOfficer(s.ctx, s.admin, bad)
	s.requireCode(err, apperrors.CodeValidation)

	bad = in
	bad.OfficerID = "OFF-11"
	bad.Password = "123"
	_, err = s.svc.CreateOfficer(s.ctx, s.admin, bad)
	s.requireCode(err, apperrors.CodeValidation)

	_, err = s.svc.CreateOfficer(s.ctx, s.officer, in)
	s.requireCode(err, apperrors.CodeAccessDenied)
}

func (s *AdminServiceSuite) TestUpdateUser() {
	dept := "parks"
	pin := "110009"
	u, err := s.svc.UpdateUser(s.ctx, s.admin, s.officer.ID, UserUpdateInput{Department: &dept, Pincode: &pin})
	s.Require().NoError(err)
	s.Equal(models.DeptParks, u.Department)
	s.Equal("110009", u.Pincode)

	bogus := "treasury"
	_, err = s.svc.UpdateUser(s.ctx, s.admin, s.officer.ID, UserUpdateInput{Department: &bogus})
	s.requireCode(err, apperrors.CodeValidation)

	_, err = s.svc.UpdateUser(s.ctx, s.admin, primitive.NewObjectID(), UserUpdateInput{Pincode: &pin})
	s.requireCode(err, apperrors.CodeNotFound)
}

func (s *AdminServiceSuite) TestDeleteUserKeepsLastAdmin() {
	err := s.svc.DeleteUser(s.ctx, s.admin, s.admin.ID)
	s.requireCode(err, apperrors.CodeValidation)

	second, err := s.svc.CreateAdmin(s.ctx, s.admin, StaffInput{Name: "Deputy", OfficerID: "ADM-2", Password: "secret1"})
	s.Require().NoError(err)
	s.Require().NoError(s.svc.DeleteUser(s.ctx, s.admin, second.ID))

	s.Require().NoError(s.svc.DeleteUser(s.ctx, s.admin, s.citizen.ID))
	_, err = s.users.FindByID(s.ctx, s.citizen.ID)
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *AdminServiceSuite) TestStats() {
	s.pendingCitizen()

	st, err := s.svc.Stats(s.ctx, s.admin)
	s.Require().NoError(err)
	s.Equal(int64(2), st.TotalUsers)
	s.Equal(int64(1), st.PendingUsers)
	s.Equal(int64(1), st.ApprovedUsers)
	s.Zero(st.RejectedUsers)
	s.Equal(int64(2), st.TotalOfficers)
	s.Equal(int64(1), st.TotalAdmins)
	s.Equal(int64(2), st.OfficersByDepartment["water"])
}
