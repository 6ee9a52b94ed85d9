package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/lms/internal/domain"
	"github.com/victornm/lms/internal/user"
)

func (a *API) Signup(c *gin.Context) {
	var req user.SignupRequest
	if !bindJSON(c, &req) {
		return
	}

	u, err := a.us.Signup(c.Request.Context(), req)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": u})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := a.us.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, resp)
}

func (a *API) Me(c *gin.Context) {
	ok(c, gin.H{"user": currentUser(c)})
}

func (a *API) UpdateProfile(c *gin.Context) {
	var req user.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	u, err := a.us.UpdateProfile(c.Request.Context(), currentUser(c).ID, req)
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, gin.H{"user": u})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

func (a *API) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := a.us.ChangePassword(c.Request.Context(), currentUser(c).ID, req.CurrentPassword, req.NewPassword); err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) ListUsers(c *gin.Context) {
	users, err := a.us.ListUsers(c.Request.Context(), user.ListUsersRequest{
		Role:   domain.Role(c.Query("role")),
		Status: domain.UserStatus(c.Query("status")),
	})
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, gin.H{"users": users})
}

type setStatusRequest struct {
	Status domain.UserStatus `json:"status" binding:"required"`
}

func (a *API) SetUserStatus(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	var req setStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := a.us.SetStatus(c.Request.Context(), id, req.Status); err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
