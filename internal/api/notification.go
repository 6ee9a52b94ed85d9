package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *API) ListNotifications(c *gin.Context) {
	resp, err := a.ns.List(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, resp)
}

func (a *API) MarkNotificationRead(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	if err := a.ns.MarkRead(c.Request.Context(), currentUser(c).ID, id); err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) MarkAllNotificationsRead(c *gin.Context) {
	n, err := a.ns.MarkAllRead(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, gin.H{"updated": n})
}
