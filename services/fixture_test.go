package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/mock/gomock"

	"civicsync-be/apperrors"
	"civicsync-be/credits"
	"civicsync-be/models"
	"civicsync-be/services/mocks"
	"civicsync-be/store"
)

// engineSuite wires the services over in-memory stores with a mocked
// notification boundary.
type engineSuite struct {
	suite.Suite
	ctx      context.Context
	ctrl     *gomock.Controller
	notifier *mocks.MockNotifier
	issues   *store.MemoryIssueStore
	users    *store.MemoryUserStore
	inbox    *store.MemoryNotificationStore
	ledger   *credits.Ledger
	logger   *slog.Logger

	citizen      *models.User
	officer      *models.User
	otherOfficer *models.User
	admin        *models.User
}

func (s *engineSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.issues = store.NewMemoryIssueStore()
	s.users = store.NewMemoryUserStore()
	s.inbox = store.NewMemoryNotificationStore()
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.ledger = credits.NewLedger(s.users, credits.WithLogger(s.logger))

	s.citizen = s.addUser(&models.User{Name: "Asha", Role: models.RoleCitizen, AadharNumber: "111122223333", Pincode: "110001", AccountStatus: models.AccountApproved})
	s.officer = s.addUser(&models.User{Name: "Ravi", Role: models.RoleOfficer, OfficerID: "OFF-1", Department: models.DeptWater, Pincode: "110001", AccountStatus: models.AccountApproved})
	s.otherOfficer = s.addUser(&models.User{Name: "Meena", Role: models.RoleOfficer, OfficerID: "OFF-2", Department: models.DeptWater, Pincode: "110002", AccountStatus: models.AccountApproved})
	s.admin = s.addUser(&models.User{Name: "Root", Role: models.RoleAdmin, OfficerID: "ADM-1", AccountStatus: models.AccountApproved})
}

func (s *engineSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *engineSuite) opts() []Option {
	return []Option{WithLogger(s.logger), WithNotifier(s.notifier)}
}

func (s *engineSuite) addUser(u *models.User) *models.User {
	u.CreatedAt = time.Now()
	s.Require().NoError(s.users.Insert(s.ctx, u))
	return u
}

func (s *engineSuite) newCitizen(pincode string) *models.User {
	return s.addUser(&models.User{
		Name:          "citizen-" + pincode,
		Role:          models.RoleCitizen,
		AadharNumber:  primitive.NewObjectID().Hex()[12:],
		Pincode:       pincode,
		AccountStatus: models.AccountApproved,
	})
}

// seedIssue stores an issue directly, bypassing creation side effects.
func (s *engineSuite) seedIssue(reporter *models.User, dept models.Department, pincode string, status models.IssueStatus) *models.Issue {
	issue := &models.Issue{
		Title:       "Issue in " + pincode,
		Description: "details",
		Category:    models.Water,
		Department:  dept,
		Priority:    models.PriorityMedium,
		Status:      status,
		Location:    models.Location{Type: "Point", Coordinates: []float64{77.2, 28.6}, Pincode: pincode},
		ReportedBy:  reporter.ID,
		CreatedAt:   time.Now(),
	}
	s.Require().NoError(s.issues.Insert(s.ctx, issue))
	return issue
}

func (s *engineSuite) balance(u *models.User) int64 {
	got, err := s.users.FindByID(s.ctx, u.ID)
	s.Require().NoError(err)
	return got.CivicCredits
}

func (s *engineSuite) allowAnyNotifications() {
	s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
}

func (s *engineSuite) expectNotify(recipient primitive.ObjectID, category models.NotificationCategory) *gomock.Call {
	return s.notifier.EXPECT().Notify(gomock.Any(), recipient, gomock.Any(), gomock.Any(), category, gomock.Any())
}

func (s *engineSuite) requireCode(err error, code apperrors.Code) {
	s.T().Helper()
	s.Require().Error(err)
	s.Equal(code, apperrors.CodeOf(err), "error: %v", err)
}
