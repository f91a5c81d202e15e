package middleware

import (
	"net/http"
	"strings"

	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/logger"
	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrorResponse represents the standard error response structure
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Display string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler middleware handles error responses
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := ierr.HTTPStatusFromErr(err)
		if status >= http.StatusInternalServerError {
			log.Errorw("request failed",
				"method", c.Request.Method,
				"path", c.FullPath(),
				"status", status,
				"error", err,
			)
		}

		c.JSON(status, ErrorResponse{
			Success: false,
			Error: ErrorDetail{
				Display: getDisplayMessage(err),
				Details: getSafeDetails(err),
			},
		})
	}
}

func getDisplayMessage(err error) string {
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		// GetAllHints is post-order traversal
		for _, hint := range hints {
			if hint = strings.TrimSpace(hint); hint != "" {
				return hint
			}
		}
	}

	return "An unexpected error occurred"
}

func getSafeDetails(err error) map[string]any {
	details := make(map[string]any)

	for _, sdp := range errors.GetAllSafeDetails(err) {
		for _, payload := range sdp.SafeDetails {
			jsonStr, ok := strings.CutPrefix(payload, "__json__:")
			if !ok {
				continue
			}
			var jsonDetails map[string]any
			if err := json.Unmarshal([]byte(jsonStr), &jsonDetails); err == nil {
				for k, v := range jsonDetails {
					details[k] = v
				}
			}
		}
	}

	return details
}
