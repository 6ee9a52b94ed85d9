package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/lms/internal/score"
)

type submitQuizRequest struct {
	SelectedAnswers []int `json:"selected_answers"`
}

func (a *API) SubmitQuiz(c *gin.Context) {
	day, valid := paramDay(c)
	if !valid {
		return
	}

	var req submitQuizRequest
	if !bindJSON(c, &req) {
		return
	}

	sub, err := a.ss.SubmitQuiz(c.Request.Context(), score.SubmitQuizRequest{
		UserID:          currentUser(c).ID,
		CourseURL:       c.Param("courseUrl"),
		DayNumber:       day,
		SelectedAnswers: req.SelectedAnswers,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"submission": sub})
}

func (a *API) ListQuizSubmissions(c *gin.Context) {
	subs, err := a.ss.ListSubmissions(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, gin.H{"submissions": subs})
}

func (a *API) QuizStats(c *gin.Context) {
	st, err := a.ss.Stats(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, gin.H{"stats": st})
}
