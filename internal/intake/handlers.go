package intake

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// SubmitHandler serves POST /api/submit/:project, the public endpoint form
// embeds post to. Spam verdicts other than a bad origin answer 200 so bots
// cannot tell they were caught.
func SubmitHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := readBody(c, 1<<20)
		if err != nil {
			respondReject(c, http.StatusBadRequest, "invalid body", nil)
			return
		}

		var form map[string]any
		if len(body) > 0 {
			if err := json.Unmarshal(body, &form); err != nil {
				respondReject(c, http.StatusBadRequest, "invalid json", nil)
				return
			}
		}

		origin := c.GetHeader("Origin")
		if origin == "" {
			origin = c.GetHeader("Referer")
		}

		out, err := svc.Submit(c.Request.Context(), c.Param("project"), form, RequestContext{
			IP:        c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
			Origin:    origin,
			Referrer:  c.GetHeader("Referer"),
		})
		if err != nil {
			respondReject(c, http.StatusServiceUnavailable, "temporarily unavailable", nil)
			return
		}

		switch out.Reason {
		case ReasonProjectNotFound:
			respondReject(c, http.StatusNotFound, out.Reason, nil)
		case ReasonOriginNotAllowed:
			respondReject(c, http.StatusForbidden, out.Reason, nil)
		case ReasonRateLimited:
			respondReject(c, http.StatusTooManyRequests, out.Reason, nil)
		case ReasonValidationFailed:
			respondReject(c, http.StatusBadRequest, out.Reason, out.Errors)
		case ReasonHoneypot:
			// Pretend success.
			c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"accepted": true}})
		default:
			data := gin.H{"accepted": true, "id": out.SubmissionID.String()}
			if out.Reason != "" {
				data["reason"] = out.Reason
			}
			c.JSON(http.StatusOK, gin.H{"code": 0, "data": data})
		}
	}
}

func respondReject(c *gin.Context, status int, reason string, errs []string) {
	body := gin.H{"code": status, "err": reason}
	if len(errs) > 0 {
		body["errors"] = errs
	}
	c.JSON(status, body)
}

func readBody(c *gin.Context, limit int64) ([]byte, error) {
	defer c.Request.Body.Close()

	raw := io.LimitReader(c.Request.Body, limit)
	enc := strings.ToLower(strings.TrimSpace(c.GetHeader("Content-Encoding")))
	if strings.Contains(enc, "gzip") {
		zr, err := gzip.NewReader(raw)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(io.LimitReader(zr, limit))
	}
	return io.ReadAll(raw)
}
