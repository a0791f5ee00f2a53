package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/khirotaka/bmi-mcp/internal/mcp"
	"github.com/khirotaka/bmi-mcp/internal/resolver"
	mcpErrors "github.com/khirotaka/bmi-mcp/pkg/errors"
)

const maxQueryLength = 4096

type Handler struct {
	resolver       ResolverInterface
	processManager ProcessManagerInterface
	startTime      time.Time
}

func NewHandler(r ResolverInterface, pm ProcessManagerInterface) *Handler {
	return &Handler{
		resolver:       r,
		processManager: pm,
		startTime:      time.Now(),
	}
}

type QueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// statusFor maps an error code to the HTTP status returned for it.
func statusFor(code mcpErrors.ErrorCode) int {
	switch code {
	case mcpErrors.ErrCodeValidation:
		return http.StatusBadRequest
	case mcpErrors.ErrCodeInvalidArgument, mcpErrors.ErrCodeToolNotFound, mcpErrors.ErrCodeToolExecution:
		return http.StatusUnprocessableEntity
	case mcpErrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case mcpErrors.ErrCodeMalformedOutput, mcpErrors.ErrCodeLLM, mcpErrors.ErrCodeServerCrashed, mcpErrors.ErrCodeTransport:
		return http.StatusBadGateway
	case mcpErrors.ErrCodeServerNotRunning:
		return http.StatusServiceUnavailable
	case mcpErrors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(code mcpErrors.ErrorCode, message string) gin.H {
	return gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(mcpErrors.ErrCodeValidation, err.Error()))
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		c.JSON(http.StatusBadRequest, errorBody(mcpErrors.ErrCodeValidation, "query must not be empty"))
		return
	}
	if len(query) > maxQueryLength {
		c.JSON(http.StatusBadRequest, errorBody(mcpErrors.ErrCodeValidation, "query exceeds maximum length"))
		return
	}

	res, err := h.resolver.Resolve(c.Request.Context(), query)
	if err != nil {
		code := mcpErrors.Code(err)
		body := errorBody(code, err.Error())
		details := gin.H{}
		if res != nil {
			body["id"] = res.ID
			details["stage"] = res.Stage.String()
			if res.Call != nil {
				details["toolName"] = res.Call.Tool
			}
		}
		var parseErr *resolver.ParseError
		if errors.As(err, &parseErr) {
			details["rawResponse"] = parseErr.Raw
		}
		if len(details) > 0 {
			body["error"].(gin.H)["details"] = details
		}
		c.JSON(statusFor(code), body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"id":        res.ID,
		"tool":      res.Call.Tool,
		"arguments": res.Call.Arguments,
		"result":    res.Result.Value,
	})
}

func (h *Handler) GetTools(c *gin.Context) {
	tools, err := h.resolver.Catalog(c.Request.Context())
	if err != nil {
		code := mcpErrors.Code(err)
		c.JSON(statusFor(code), errorBody(code, err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tools":   tools,
	})
}

func (h *Handler) Health(c *gin.Context) {
	servers := h.processManager.Snapshot()
	status := "ok"
	for _, s := range servers {
		if s.Crashes > 0 {
			status = "degraded"
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  status,
		"uptime":  time.Since(h.startTime).Seconds(),
		"servers": servers,
	})
}
