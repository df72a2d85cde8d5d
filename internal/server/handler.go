package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/idgen"
	"github.com/ceyewan/idforge/xerrors"
)

type idsResponse struct {
	IDs []string `json:"ids"`
}

type specRequest struct {
	Template string `json:"template" binding:"required"`
	Count    int    `json:"count"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "templates": s.set.Names()})
}

func (s *Server) generateNamed(c *gin.Context) {
	n, err := parseCount(c.Query("count"), s.cfg.MaxCount)
	if err != nil {
		s.fail(c, err)
		return
	}
	ids, err := s.set.GenerateBatch(c.Request.Context(), c.Param("name"), n)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, idsResponse{IDs: ids})
}

func (s *Server) generateSpec(c *gin.Context) {
	var req specRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		s.fail(c, xerrors.Wrapf(idgen.ErrInvalidArgument, "request body: %v", err))
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}
	if req.Count < 0 || req.Count > s.cfg.MaxCount {
		s.fail(c, xerrors.Wrapf(idgen.ErrInvalidArgument, "count must be in [1, %d]", s.cfg.MaxCount))
		return
	}
	ids, err := s.set.GenerateSpec(c.Request.Context(), req.Template, req.Count)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, idsResponse{IDs: ids})
}

func (s *Server) fail(c *gin.Context, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(c.Request.Context(), "generate failed",
			clog.String("path", c.FullPath()), clog.ErrorWithCode(err, code))
	}
	c.AbortWithStatusJSON(status, errorBody{Error: err.Error(), Code: code})
}

// statusOf 把 idgen 的错误种类映射为 HTTP 状态码
func statusOf(err error) (int, string) {
	if xerrors.Is(err, idgen.ErrTemplateNotFound) {
		return http.StatusNotFound, "template_not_found"
	}
	kind := idgen.ErrorKind(err)
	switch kind {
	case idgen.CodeMalformedSpec, idgen.CodeUnknownComponentType, idgen.CodeInvalidArgument:
		return http.StatusBadRequest, kind
	case idgen.CodeSequenceOverflow:
		return http.StatusTooManyRequests, kind
	case idgen.CodeClockRegression:
		return http.StatusServiceUnavailable, kind
	case "canceled":
		return 499, kind
	default:
		return http.StatusInternalServerError, kind
	}
}

// parseCount 解析 count 参数，空值为 1，范围 [1, limit]
func parseCount(raw string, limit int) (int, error) {
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, xerrors.Wrapf(idgen.ErrInvalidArgument, "count %q is not an integer", raw)
	}
	if n < 1 || n > limit {
		return 0, xerrors.Wrapf(idgen.ErrInvalidArgument, "count must be in [1, %d]", limit)
	}
	return n, nil
}
