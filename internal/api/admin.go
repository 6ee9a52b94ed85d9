package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/victornm/lms/internal/errors"
	"github.com/victornm/lms/internal/maintenance"
)

func (a *API) DashboardStats(c *gin.Context) {
	d, err := a.as.Dashboard(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, d)
}

func (a *API) RunMaintenance(c *gin.Context) {
	job, err := maintenance.ParseJob(c.Param("job"))
	if err != nil {
		abort(c, err)
		return
	}

	r, err := a.ms.Run(c.Request.Context(), job)
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, gin.H{"result": r})
}

// GetFile redirects to a short-lived download URL of an uploaded file.
func (a *API) GetFile(c *gin.Context) {
	object := strings.TrimPrefix(c.Param("object"), "/")
	if object == "" || strings.Contains(object, "..") {
		abort(c, errors.InvalidArgument("invalid object name %q", object))
		return
	}

	url, err := a.fs.SignedURL(c.Request.Context(), object, a.ttl)
	if err != nil {
		abort(c, err)
		return
	}

	c.Redirect(http.StatusFound, url)
}
