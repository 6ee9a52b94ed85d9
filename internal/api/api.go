package api

import (
	"context"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/lms/internal/analytics"
	"github.com/victornm/lms/internal/course"
	"github.com/victornm/lms/internal/discussion"
	"github.com/victornm/lms/internal/domain"
	"github.com/victornm/lms/internal/enrollment"
	"github.com/victornm/lms/internal/event"
	"github.com/victornm/lms/internal/maintenance"
	"github.com/victornm/lms/internal/message"
	"github.com/victornm/lms/internal/notification"
	"github.com/victornm/lms/internal/score"
	"github.com/victornm/lms/internal/storage"
	"github.com/victornm/lms/internal/user"
)

const defaultSignedURLTTL = 15 * time.Minute

type (
	Users interface {
		Signup(ctx context.Context, req user.SignupRequest) (*domain.User, error)
		Login(ctx context.Context, email, password string) (*user.LoginResponse, error)
		Authenticate(ctx context.Context, token string) (*domain.User, error)
		UpdateProfile(ctx context.Context, id domain.ID, req user.UpdateProfileRequest) (*domain.User, error)
		ChangePassword(ctx context.Context, id domain.ID, current, next string) error
		ListUsers(ctx context.Context, req user.ListUsersRequest) ([]domain.User, error)
		SetStatus(ctx context.Context, id domain.ID, status domain.UserStatus) error
	}

	Courses interface {
		Create(ctx context.Context, req course.CreateCourseRequest) (*domain.Course, error)
		GetByID(ctx context.Context, id domain.ID) (*domain.Course, error)
		GetByURL(ctx context.Context, url string) (*domain.Course, error)
		List(ctx context.Context, req course.ListCoursesRequest) ([]domain.Course, error)
		UpdateRoadmap(ctx context.Context, editor domain.User, id domain.ID, roadmap domain.Roadmap) (*domain.Course, error)
		Deactivate(ctx context.Context, id domain.ID) error
		SubmitReview(ctx context.Context, req course.SubmitReviewRequest) (*domain.CourseReviews, error)
		ListReviews(ctx context.Context, id domain.ID) (*domain.CourseReviews, error)
	}

	Enrollments interface {
		Enroll(ctx context.Context, userID, courseID domain.ID) (*domain.Enrollment, error)
		MarkDay(ctx context.Context, req enrollment.MarkDayRequest) (*domain.Enrollment, error)
		RequestEnrollment(ctx context.Context, req enrollment.RequestEnrollmentRequest) (*domain.EnrollmentRequest, error)
		ApproveRequest(ctx context.Context, id domain.ID) (*domain.EnrollmentRequest, error)
		RejectRequest(ctx context.Context, id domain.ID) (*domain.EnrollmentRequest, error)
		ListRequests(ctx context.Context, status domain.RequestStatus) ([]domain.EnrollmentRequest, error)
		ListMyCourses(ctx context.Context, userID domain.ID) ([]enrollment.MyCourse, error)
	}

	Scores interface {
		SubmitQuiz(ctx context.Context, req score.SubmitQuizRequest) (*domain.QuizSubmission, error)
		ListSubmissions(ctx context.Context, userID domain.ID) ([]domain.QuizSubmission, error)
		Stats(ctx context.Context, userID domain.ID) (score.Stats, error)
	}

	Leaderboard interface {
		GetLeaderboard(ctx context.Context) (*domain.Leaderboard, error)
		Export(ctx context.Context, w io.Writer) error
	}

	Notifications interface {
		List(ctx context.Context, userID domain.ID) (*notification.ListResponse, error)
		MarkRead(ctx context.Context, userID, id domain.ID) error
		MarkAllRead(ctx context.Context, userID domain.ID) (int64, error)
	}

	Discussions interface {
		List(ctx context.Context, u domain.User, courseID domain.ID) ([]domain.Discussion, error)
		Create(ctx context.Context, req discussion.CreateRequest) (*domain.Discussion, error)
		Reply(ctx context.Context, u domain.User, discussionID domain.ID, content string) (*domain.Reply, error)
		ToggleLike(ctx context.Context, u domain.User, discussionID domain.ID) (int, error)
		Delete(ctx context.Context, u domain.User, discussionID domain.ID) error
	}

	Messages interface {
		Send(ctx context.Context, req message.SendRequest) (*domain.Message, error)
		Conversations(ctx context.Context, userID domain.ID) ([]domain.Conversation, error)
		Thread(ctx context.Context, u domain.User, partnerID, courseID domain.ID) ([]domain.Message, error)
	}

	Analytics interface {
		Dashboard(ctx context.Context) (*analytics.Dashboard, error)
	}

	Maintenance interface {
		Run(ctx context.Context, job maintenance.Job) (*maintenance.Result, error)
	}

	Redis interface {
		Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	}
)

type Config struct {
	Router        gin.IRouter
	EventBus      *event.Bus
	Users         Users
	Courses       Courses
	Enrollments   Enrollments
	Scores        Scores
	Leaderboard   Leaderboard
	Notifications Notifications
	Discussions   Discussions
	Messages      Messages
	Analytics     Analytics
	Maintenance   Maintenance
	Files         storage.ObjectStore
	SignedURLTTL  time.Duration
	Redis         Redis
	PubsubPrefix  string
}

type API struct {
	us  Users
	cs  Courses
	es  Enrollments
	ss  Scores
	ls  Leaderboard
	ns  Notifications
	ds  Discussions
	mg  Messages
	as  Analytics
	ms  Maintenance
	fs  storage.ObjectStore
	ttl time.Duration

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		us:     c.Users,
		cs:     c.Courses,
		es:     c.Enrollments,
		ss:     c.Scores,
		ls:     c.Leaderboard,
		ns:     c.Notifications,
		ds:     c.Discussions,
		mg:     c.Messages,
		as:     c.Analytics,
		ms:     c.Maintenance,
		fs:     c.Files,
		ttl:    c.SignedURLTTL,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}
	if a.ttl <= 0 {
		a.ttl = defaultSignedURLTTL
	}

	// HTTP APIs
	a.register(c.Router)

	// Register event handlers
	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})
	c.EventBus.Subscribe(domain.EventNameNotificationCreated, func(ctx context.Context, e event.Event) error {
		return a.PublishNotificationCreated(ctx, e.(domain.EventNotificationCreated))
	})

	return a
}

func (a *API) register(r gin.IRouter) {
	g := r.Group("/api")

	g.POST("/auth/signup", a.Signup)
	g.POST("/auth/login", a.Login)
	g.GET("/courses", a.ListCourses)
	g.GET("/courses/:id", a.GetCourse)
	g.GET("/courses/:id/reviews", a.ListReviews)

	auth := g.Group("", a.authenticate)
	auth.GET("/auth/me", a.Me)
	auth.PUT("/user/profile", a.UpdateProfile)
	auth.PUT("/user/password", a.ChangePassword)

	auth.POST("/enrollments", a.Enroll)
	auth.POST("/enrollment-requests", a.RequestEnrollment)
	auth.GET("/my-courses", a.ListMyCourses)
	auth.PUT("/my-courses/:courseId/days/:day", a.MarkDay)

	auth.POST("/quizzes/:courseUrl/days/:day/submissions", a.SubmitQuiz)
	auth.GET("/student/quiz-submissions", a.ListQuizSubmissions)
	auth.GET("/student/quiz-stats", a.QuizStats)
	auth.GET("/leaderboard/students", a.GetLeaderboard)

	auth.POST("/courses/:id/reviews", a.SubmitReview)
	auth.GET("/courses/:id/discussions", a.ListDiscussions)
	auth.POST("/courses/:id/discussions", a.CreateDiscussion)
	auth.POST("/discussions/:id/replies", a.ReplyDiscussion)
	auth.POST("/discussions/:id/like", a.LikeDiscussion)
	auth.DELETE("/discussions/:id", a.DeleteDiscussion)

	auth.POST("/messages", a.SendMessage)
	auth.GET("/messages/conversations", a.ListConversations)
	auth.GET("/messages/:partnerId/:courseId", a.GetThread)

	auth.GET("/notifications", a.ListNotifications)
	auth.PUT("/notifications/:id/read", a.MarkNotificationRead)
	auth.PUT("/notifications/mark-all-read", a.MarkAllNotificationsRead)

	instructor := auth.Group("", requireRole(domain.RoleInstructor, domain.RoleAdmin))
	instructor.POST("/courses", a.CreateCourse)
	instructor.PUT("/courses/:id/roadmap", a.UpdateRoadmap)

	admin := auth.Group("/admin", requireRole(domain.RoleAdmin))
	admin.GET("/enrollment-requests", a.ListEnrollmentRequests)
	admin.PUT("/enrollment-requests/:id/approve", a.ApproveEnrollmentRequest)
	admin.PUT("/enrollment-requests/:id/reject", a.RejectEnrollmentRequest)
	admin.GET("/leaderboard/export", a.ExportLeaderboard)
	admin.GET("/dashboard/stats", a.DashboardStats)
	admin.GET("/users", a.ListUsers)
	admin.PUT("/users/:id/status", a.SetUserStatus)
	admin.DELETE("/courses/:id", a.DeactivateCourse)
	admin.POST("/maintenance/:job", a.RunMaintenance)

	auth.GET("/files/*object", requireRole(domain.RoleAdmin), a.GetFile)
}
