package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// serveCover handles GET /covers/*handle. ?w= overrides the configured thumbnail width.
func (s *Server) serveCover(c *gin.Context) {
	handle := strings.TrimPrefix(c.Param("handle"), "/")
	obj, ok := s.covers.Get(handle)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}

	width := s.opts.ThumbWidth
	if w := c.Query("w"); w != "" {
		n, err := strconv.Atoi(w)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid width"})
			return
		}
		width = n
	}

	c.Header("Cache-Control", "private, max-age=3600")
	if width == 0 {
		c.Data(http.StatusOK, obj.MediaType, obj.Data)
		return
	}

	thumb, err := makeThumbnail(obj.Data, obj.MediaType, width)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if thumb.Warning != "" {
		s.logger.Debug("cover served unscaled", "handle", handle, "warning", thumb.Warning)
	}
	c.Data(http.StatusOK, thumb.MediaType, thumb.Data)
}
