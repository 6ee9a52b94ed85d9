package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (a *API) GetLeaderboard(c *gin.Context) {
	l, err := a.ls.GetLeaderboard(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	ok(c, gin.H{"leaderboard": l})
}

// ExportLeaderboard sends the leaderboard as an Excel workbook.
func (a *API) ExportLeaderboard(c *gin.Context) {
	var buf bytes.Buffer
	if err := a.ls.Export(c.Request.Context(), &buf); err != nil {
		abort(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="leaderboard-%s.xlsx"`, time.Now().UTC().Format(time.DateOnly)))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
