package attachments

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	app "github.com/mark3748/helpdesk-ans/cmd/api/app"
	authpkg "github.com/mark3748/helpdesk-ans/cmd/api/auth"
	"github.com/mark3748/helpdesk-ans/internal/s3"
)

// URLTTL is the lifetime of presigned attachment URLs.
const URLTTL = 15 * time.Minute

type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Bytes    int64  `json:"bytes"`
}

type presignReq struct {
	Filename string `json:"filename" binding:"required,max=255"`
	Bytes    int64  `json:"bytes" binding:"min=0"`
}

type presignResp struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

// List returns the attachments recorded for a ticket.
func List(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		out := []Attachment{}
		if a.DB == nil {
			c.JSON(http.StatusOK, out)
			return
		}
		const q = `select id::text, filename, bytes from attachments where ticket_id=$1 order by created_at asc`
		rows, err := a.DB.Query(c.Request.Context(), q, c.Param("id"))
		if err != nil {
			app.AbortError(c, http.StatusInternalServerError, "db_error", err.Error(), nil)
			return
		}
		defer rows.Close()
		for rows.Next() {
			var at Attachment
			if err := rows.Scan(&at.ID, &at.Filename, &at.Bytes); err != nil {
				app.AbortError(c, http.StatusInternalServerError, "db_error", err.Error(), nil)
				return
			}
			out = append(out, at)
		}
		c.JSON(http.StatusOK, out)
	}
}

// PresignUpload records the attachment and returns a URL the client PUTs the
// file to.
func PresignUpload(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.S3 == nil {
			app.AbortError(c, http.StatusServiceUnavailable, "storage_unavailable", "object storage not configured", nil)
			return
		}
		var in presignReq
		if err := c.ShouldBindJSON(&in); err != nil {
			app.AbortBind(c, err)
			return
		}
		ctx := c.Request.Context()
		ticketID := c.Param("id")
		key := s3.AttachmentKey(ticketID, in.Filename)
		u, err := a.S3.PresignPut(ctx, key, URLTTL)
		if err != nil {
			app.AbortError(c, http.StatusInternalServerError, "presign_failed", err.Error(), nil)
			return
		}
		out := presignResp{Key: key, URL: u, ExpiresIn: int(URLTTL.Seconds())}
		if a.DB != nil {
			user, _ := authpkg.CurrentUser(c)
			const q = `insert into attachments (ticket_id, uploader, object_key, filename, bytes)
select id, $2, $3, $4, $5 from tickets where id=$1 returning id::text`
			err := a.DB.QueryRow(ctx, q, ticketID, user.ID, key, in.Filename, in.Bytes).Scan(&out.ID)
			if errors.Is(err, pgx.ErrNoRows) {
				app.AbortError(c, http.StatusNotFound, "not_found", "ticket not found", nil)
				return
			}
			if err != nil {
				app.AbortError(c, http.StatusInternalServerError, "db_error", err.Error(), nil)
				return
			}
		}
		c.JSON(http.StatusOK, out)
	}
}

// PresignDownload returns a short-lived URL for fetching an attachment.
func PresignDownload(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.S3 == nil || a.DB == nil {
			app.AbortError(c, http.StatusServiceUnavailable, "storage_unavailable", "object storage not configured", nil)
			return
		}
		ctx := c.Request.Context()
		const q = `select object_key, filename from attachments where id=$1 and ticket_id=$2`
		var key, filename string
		err := a.DB.QueryRow(ctx, q, c.Param("att"), c.Param("id")).Scan(&key, &filename)
		if errors.Is(err, pgx.ErrNoRows) {
			app.AbortError(c, http.StatusNotFound, "not_found", "attachment not found", nil)
			return
		}
		if err != nil {
			app.AbortError(c, http.StatusInternalServerError, "db_error", err.Error(), nil)
			return
		}
		u, err := a.S3.PresignGet(ctx, key, filename, URLTTL)
		if err != nil {
			app.AbortError(c, http.StatusInternalServerError, "presign_failed", err.Error(), nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": u, "expires_in": int(URLTTL.Seconds())})
	}
}
