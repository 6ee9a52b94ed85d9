package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/lms/internal/course"
	"github.com/victornm/lms/internal/domain"
)

func (a *API) ListCourses(c *gin.Context) {
	courses, err := a.cs.List(c.Request.Context(), course.ListCoursesRequest{
		Category: c.Query("category"),
		Level:    domain.Level(c.Query("level")),
	})
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, gin.H{"courses": courses})
}

// GetCourse accepts either the course id or its URL.
func (a *API) GetCourse(c *gin.Context) {
	var (
		crs *domain.Course
		err error
	)
	if id, perr := domain.ParseID(c.Param("id")); perr == nil {
		crs, err = a.cs.GetByID(c.Request.Context(), id)
	} else {
		crs, err = a.cs.GetByURL(c.Request.Context(), c.Param("id"))
	}
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, gin.H{"course": crs})
}

type createCourseRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Image       string         `json:"image"`
	Category    string         `json:"category"`
	Level       domain.Level   `json:"level"`
	Language    string         `json:"language"`
	Duration    string         `json:"duration"`
	Roadmap     domain.Roadmap `json:"roadmap"`
}

func (a *API) CreateCourse(c *gin.Context) {
	var req createCourseRequest
	if !bindJSON(c, &req) {
		return
	}

	crs, err := a.cs.Create(c.Request.Context(), course.CreateCourseRequest{
		Instructor:  *currentUser(c),
		Title:       req.Title,
		Description: req.Description,
		Image:       req.Image,
		Category:    req.Category,
		Level:       req.Level,
		Language:    req.Language,
		Duration:    req.Duration,
		Roadmap:     req.Roadmap,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"course": crs})
}

type updateRoadmapRequest struct {
	Roadmap domain.Roadmap `json:"roadmap"`
}

func (a *API) UpdateRoadmap(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	var req updateRoadmapRequest
	if !bindJSON(c, &req) {
		return
	}

	crs, err := a.cs.UpdateRoadmap(c.Request.Context(), *currentUser(c), id, req.Roadmap)
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, gin.H{"course": crs})
}

func (a *API) DeactivateCourse(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	if err := a.cs.Deactivate(c.Request.Context(), id); err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type submitReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (a *API) SubmitReview(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	var req submitReviewRequest
	if !bindJSON(c, &req) {
		return
	}

	reviews, err := a.cs.SubmitReview(c.Request.Context(), course.SubmitReviewRequest{
		Student:  *currentUser(c),
		CourseID: id,
		Rating:   req.Rating,
		Comment:  req.Comment,
	})
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, reviews)
}

func (a *API) ListReviews(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	reviews, err := a.cs.ListReviews(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, reviews)
}
