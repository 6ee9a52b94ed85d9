package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/lms/internal/discussion"
)

func (a *API) ListDiscussions(c *gin.Context) {
	courseID, valid := paramID(c, "id")
	if !valid {
		return
	}

	ds, err := a.ds.List(c.Request.Context(), *currentUser(c), courseID)
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, gin.H{"discussions": ds})
}

type createDiscussionRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	IsPinned bool   `json:"is_pinned"`
}

func (a *API) CreateDiscussion(c *gin.Context) {
	courseID, valid := paramID(c, "id")
	if !valid {
		return
	}

	var req createDiscussionRequest
	if !bindJSON(c, &req) {
		return
	}

	d, err := a.ds.Create(c.Request.Context(), discussion.CreateRequest{
		User:     *currentUser(c),
		CourseID: courseID,
		Title:    req.Title,
		Content:  req.Content,
		IsPinned: req.IsPinned,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"discussion": d})
}

type replyRequest struct {
	Content string `json:"content"`
}

func (a *API) ReplyDiscussion(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	var req replyRequest
	if !bindJSON(c, &req) {
		return
	}

	r, err := a.ds.Reply(c.Request.Context(), *currentUser(c), id, req.Content)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"reply": r})
}

func (a *API) LikeDiscussion(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	likes, err := a.ds.ToggleLike(c.Request.Context(), *currentUser(c), id)
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, gin.H{"likes": likes})
}

func (a *API) DeleteDiscussion(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	if err := a.ds.Delete(c.Request.Context(), *currentUser(c), id); err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
