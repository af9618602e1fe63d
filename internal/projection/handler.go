package projection

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aevon-lab/aevon-rollup/internal/bucket"
	httperr "github.com/aevon-lab/aevon-rollup/internal/core/errors"
)

// RegisterRoutes registers all projection API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/buckets/:type/:period", s.HandleQueryBuckets)
}

// HandleQueryBuckets handles GET /v1/buckets/:type/:period
// Query parameters: key (repeatable, leading key parts), total
func (s *Service) HandleQueryBuckets(c *gin.Context) {
	var uri struct {
		Type   string `uri:"type" binding:"required"`
		Period string `uri:"period" binding:"required"`
	}
	var query struct {
		Key   []string `form:"key"`
		Total bool     `form:"total"`
	}

	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "Invalid path parameters",
			Details:   err.Error(),
		})
		return
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return
	}

	resp, err := s.QueryBuckets(c.Request.Context(), BucketQueryRequest{
		Type:   uri.Type,
		Period: uri.Period,
		Key:    query.Key,
		Total:  query.Total,
	})
	if err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func errorResponse(err error) (int, httperr.ErrorResponse) {
	switch {
	case errors.Is(err, ErrInvalidQuery):
		return http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "Invalid bucket query",
			Details:   err.Error(),
		}
	case errors.Is(err, ErrUnknownType):
		return http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpTypeNotFoundError,
			Message:   "Aggregate type not registered",
			Details:   err.Error(),
		}
	case errors.Is(err, bucket.ErrRange):
		return http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpRangeError,
			Message:   "Period is below the listable range",
			Details:   err.Error(),
		}
	case errors.Is(err, bucket.ErrNotFound):
		return http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpNotFoundError,
			Message:   "No bucket rows match the key",
			Details:   err.Error(),
		}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Bucket query timed out",
			Details:   err.Error(),
		}
	default:
		return http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to query buckets",
			Details:   err.Error(),
		}
	}
}
