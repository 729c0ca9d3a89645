package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListOutbox(c *gin.Context) {
	items, err := s.outboxSvc.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) RetryOutbox(c *gin.Context) {
	item, err := s.outboxSvc.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// DispatchOutbox runs one delivery batch immediately instead of waiting
// for the scheduler tick.
func (s *Server) DispatchOutbox(c *gin.Context) {
	res, err := s.outboxSvc.Dispatch(c.Request.Context(), s.cfg.Scheduler.BatchSize)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
