package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/lms/internal/domain"
	"github.com/victornm/lms/internal/enrollment"
	"github.com/victornm/lms/internal/errors"
)

const maxScreenshotSize = 5 << 20

type enrollRequest struct {
	CourseID domain.ID `json:"course_id" binding:"required"`
}

func (a *API) Enroll(c *gin.Context) {
	var req enrollRequest
	if !bindJSON(c, &req) {
		return
	}

	e, err := a.es.Enroll(c.Request.Context(), currentUser(c).ID, req.CourseID)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"enrollment": e})
}

// RequestEnrollment takes a multipart form with the payment details and a screenshot of the
// transaction.
func (a *API) RequestEnrollment(c *gin.Context) {
	courseID, err := domain.ParseID(c.PostForm("course_id"))
	if err != nil {
		abort(c, errors.InvalidArgument("invalid course_id: %q", c.PostForm("course_id")))
		return
	}

	fh, err := c.FormFile("transaction_screenshot")
	if err != nil {
		abort(c, errors.InvalidArgument("transaction_screenshot is required"))
		return
	}
	if fh.Size > maxScreenshotSize {
		abort(c, errors.InvalidArgument("transaction_screenshot exceeds %d bytes", maxScreenshotSize))
		return
	}

	f, err := fh.Open()
	if err != nil {
		abort(c, err)
		return
	}
	defer f.Close()

	r, err := a.es.RequestEnrollment(c.Request.Context(), enrollment.RequestEnrollmentRequest{
		User:                *currentUser(c),
		CourseID:            courseID,
		Mobile:              c.PostForm("mobile"),
		UTRNumber:           c.PostForm("utr_number"),
		Screenshot:          f,
		ScreenshotName:      fh.Filename,
		ScreenshotMediaType: fh.Header.Get("Content-Type"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"request": r})
}

func (a *API) ListMyCourses(c *gin.Context) {
	courses, err := a.es.ListMyCourses(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, gin.H{"courses": courses})
}

type markDayRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

func (a *API) MarkDay(c *gin.Context) {
	courseID, valid := paramID(c, "courseId")
	if !valid {
		return
	}
	day, valid := paramDay(c)
	if !valid {
		return
	}

	var req markDayRequest
	if !bindJSON(c, &req) {
		return
	}

	e, err := a.es.MarkDay(c.Request.Context(), enrollment.MarkDayRequest{
		UserID:    currentUser(c).ID,
		CourseID:  courseID,
		Day:       day,
		Completed: *req.Completed,
	})
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, gin.H{"enrollment": e})
}

func (a *API) ListEnrollmentRequests(c *gin.Context) {
	requests, err := a.es.ListRequests(c.Request.Context(), domain.RequestStatus(c.Query("status")))
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, gin.H{"requests": requests})
}

func (a *API) ApproveEnrollmentRequest(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	r, err := a.es.ApproveRequest(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, gin.H{"request": r})
}

func (a *API) RejectEnrollmentRequest(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	r, err := a.es.RejectRequest(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, gin.H{"request": r})
}
