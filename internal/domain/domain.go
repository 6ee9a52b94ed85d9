package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
	UserPending  UserStatus = "pending"
)

// User is an account of the platform. PasswordHash never leaves the service layer.
type User struct {
	ID           ID         `json:"id"`
	Handle       string     `json:"handle"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Status       UserStatus `json:"status"`
	Avatar       string     `json:"avatar,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Student is the leaderboard view of a user with the student role.
type Student struct {
	ID     ID     `json:"id"`
	Handle string `json:"handle"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type Level string

const (
	LevelBeginner     Level = "Beginner"
	LevelIntermediate Level = "Intermediate"
	LevelAdvanced     Level = "Advanced"
)

type Course struct {
	ID           ID        `json:"id"`
	URL          string    `json:"course_url"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Image        string    `json:"image,omitempty"`
	Instructor   string    `json:"instructor"`
	InstructorID ID        `json:"instructor_id"`
	Category     string    `json:"category"`
	Level        Level     `json:"level"`
	Language     string    `json:"language"`
	Duration     string    `json:"duration"`
	Students     int       `json:"students"`
	IsActive     bool      `json:"is_active"`
	Roadmap      Roadmap   `json:"roadmap"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Roadmap is the ordered list of course days. Day numbers run from 1 to Len().
type Roadmap []RoadmapDay

func (r Roadmap) Len() int { return len(r) }

// Day returns the descriptor of day n (1-based).
func (r Roadmap) Day(n int) (RoadmapDay, bool) {
	if n < 1 || n > len(r) {
		return RoadmapDay{}, false
	}
	return r[n-1], true
}

type RoadmapDay struct {
	Day        int    `json:"day"`
	Topics     string `json:"topics"`
	Video      string `json:"video"`
	Transcript string `json:"transcript,omitempty"`
	Notes      string `json:"notes,omitempty"`
	MCQs       []MCQ  `json:"mcqs,omitempty"`
}

type MCQ struct {
	Question    string      `json:"question"`
	Options     []MCQOption `json:"options"`
	Explanation string      `json:"explanation,omitempty"`
}

type MCQOption struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type EnrollmentStatus string

const (
	EnrollmentPending   EnrollmentStatus = "pending"
	EnrollmentEnrolled  EnrollmentStatus = "enrolled"
	EnrollmentStarted   EnrollmentStatus = "started"
	EnrollmentCompleted EnrollmentStatus = "completed"
)

// Active reports whether the learner may work through the course.
func (s EnrollmentStatus) Active() bool {
	return s == EnrollmentEnrolled || s == EnrollmentStarted || s == EnrollmentCompleted
}

// Enrollment tracks one user's progress through one course.
// CompletedDays is kept sorted and free of duplicates.
type Enrollment struct {
	UserID         ID               `json:"user_id"`
	CourseID       ID               `json:"course_id"`
	Status         EnrollmentStatus `json:"status"`
	CompletedDays  []int            `json:"completed_days"`
	Progress       int              `json:"progress"`
	EnrolledAt     time.Time        `json:"enrolled_at"`
	LastAccessedAt time.Time        `json:"last_accessed_at"`
}

func (e *Enrollment) HasCompleted(day int) bool {
	_, ok := slices.BinarySearch(e.CompletedDays, day)
	return ok
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// EnrollmentRequest is a paid enrollment waiting for manual payment verification.
type EnrollmentRequest struct {
	ID         ID            `json:"id"`
	UserID     ID            `json:"user_id"`
	CourseID   ID            `json:"course_id"`
	CourseName string        `json:"course_name"`
	Email      string        `json:"email"`
	Mobile     string        `json:"mobile"`
	UTRNumber  string        `json:"utr_number"`
	Screenshot string        `json:"transaction_screenshot"`
	Status     RequestStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
}

// QuizSubmission is one attempt at the quiz of a course day. Submissions are never mutated.
type QuizSubmission struct {
	ID              ID              `json:"id"`
	UserID          ID              `json:"user_id"`
	CourseURL       string          `json:"course_url"`
	DayNumber       int             `json:"day_number"`
	AttemptNumber   int             `json:"attempt_number"`
	Title           string          `json:"title"`
	SelectedAnswers []int           `json:"selected_answers"`
	Score           decimal.Decimal `json:"score"`
	IsCompleted     bool            `json:"is_completed"`
	SubmittedAt     time.Time       `json:"submitted_at"`
}

// Leaderboard is the ranked list of students. Entries are sorted by TotalPoints, highest first.
type Leaderboard struct {
	Entries     []LeaderboardEntry `json:"entries"`
	GeneratedAt time.Time          `json:"generated_at"`
}

type LeaderboardEntry struct {
	Rank            int             `json:"rank"`
	UserID          ID              `json:"user_id"`
	Handle          string          `json:"handle"`
	Name            string          `json:"name"`
	Avatar          string          `json:"avatar,omitempty"`
	CoursesEnrolled int             `json:"courses_enrolled"`
	CoursePoints    decimal.Decimal `json:"course_points"`
	QuizPoints      decimal.Decimal `json:"quiz_points"`
	TotalPoints     decimal.Decimal `json:"total_points"`
}

type Notification struct {
	ID        ID        `json:"id"`
	UserID    ID        `json:"user_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type Review struct {
	CourseID    ID        `json:"course_id"`
	StudentID   ID        `json:"student_id"`
	StudentName string    `json:"student_name"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment"`
	CreatedAt   time.Time `json:"created_at"`
}

// CourseReviews lists the reviews of a course with their average rating.
type CourseReviews struct {
	Rating  decimal.Decimal `json:"rating"`
	Reviews []Review        `json:"reviews"`
}

type Discussion struct {
	ID        ID        `json:"id"`
	CourseID  ID        `json:"course_id"`
	UserID    ID        `json:"user_id"`
	Author    string    `json:"author"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	IsPinned  bool      `json:"is_pinned"`
	Likes     int       `json:"likes"`
	Liked     bool      `json:"liked"`
	Replies   []Reply   `json:"replies"`
	CreatedAt time.Time `json:"created_at"`
}

type Reply struct {
	ID           ID        `json:"id"`
	DiscussionID ID        `json:"discussion_id"`
	UserID       ID        `json:"user_id"`
	Author       string    `json:"author"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

// Message is a direct message between a student and the instructor of a course they share.
type Message struct {
	ID         ID        `json:"id"`
	SenderID   ID        `json:"sender_id"`
	ReceiverID ID        `json:"receiver_id"`
	CourseID   ID        `json:"course_id"`
	Content    string    `json:"content"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// Conversation is the latest message exchanged with one partner about one course.
type Conversation struct {
	PartnerID   ID      `json:"partner_id"`
	PartnerName string  `json:"partner_name"`
	CourseID    ID      `json:"course_id"`
	CourseTitle string  `json:"course_title"`
	LastMessage Message `json:"last_message"`
	Unread      int     `json:"unread"`
}
