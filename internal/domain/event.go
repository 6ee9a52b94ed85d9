package domain

const (
	EventNameProgressUpdated     = "progress.updated"
	EventNameQuizSubmitted       = "quiz.submitted"
	EventNameLeaderboardUpdated  = "leaderboard.updated"
	EventNameEnrollmentApproved  = "enrollment.approved"
	EventNameEnrollmentRejected  = "enrollment.rejected"
	EventNameNotificationCreated = "notification.created"
	EventNameDiscussionReplied   = "discussion.replied"
	EventNameMessageSent         = "message.sent"
)

type EventProgressUpdated struct {
	Enrollment Enrollment
}

func (EventProgressUpdated) Name() string { return EventNameProgressUpdated }

type EventQuizSubmitted struct {
	Submission QuizSubmission
}

func (EventQuizSubmitted) Name() string { return EventNameQuizSubmitted }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }

type EventEnrollmentApproved struct {
	Request EnrollmentRequest
}

func (EventEnrollmentApproved) Name() string { return EventNameEnrollmentApproved }

type EventEnrollmentRejected struct {
	Request EnrollmentRequest
}

func (EventEnrollmentRejected) Name() string { return EventNameEnrollmentRejected }

type EventNotificationCreated struct {
	Notification Notification
}

func (EventNotificationCreated) Name() string { return EventNameNotificationCreated }

type EventDiscussionReplied struct {
	Discussion Discussion
	Reply      Reply
}

func (EventDiscussionReplied) Name() string { return EventNameDiscussionReplied }

type EventMessageSent struct {
	Message    Message
	SenderName string
}

func (EventMessageSent) Name() string { return EventNameMessageSent }
