package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/lms/internal/domain"
	"github.com/victornm/lms/internal/message"
)

type sendMessageRequest struct {
	ReceiverID domain.ID `json:"receiver_id" binding:"required"`
	CourseID   domain.ID `json:"course_id" binding:"required"`
	Content    string    `json:"content"`
}

func (a *API) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	m, err := a.mg.Send(c.Request.Context(), message.SendRequest{
		Sender:     *currentUser(c),
		ReceiverID: req.ReceiverID,
		CourseID:   req.CourseID,
		Content:    req.Content,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": m})
}

func (a *API) ListConversations(c *gin.Context) {
	cs, err := a.mg.Conversations(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, gin.H{"conversations": cs})
}

func (a *API) GetThread(c *gin.Context) {
	partnerID, valid := paramID(c, "partnerId")
	if !valid {
		return
	}
	courseID, valid := paramID(c, "courseId")
	if !valid {
		return
	}

	ms, err := a.mg.Thread(c.Request.Context(), *currentUser(c), partnerID, courseID)
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, gin.H{"messages": ms})
}
