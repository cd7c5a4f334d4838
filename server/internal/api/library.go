package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mindly/server/internal/library"
)

func (s *Server) handleResources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"topics": s.library.Resources()})
}

// handleBooking 返回预约方式；site 参数用于分享链接，缺省时取请求的 Origin。
func (s *Server) handleBooking(c *gin.Context) {
	site := c.Query("site")
	if site == "" {
		site = c.GetHeader("Origin")
	}
	c.JSON(http.StatusOK, gin.H{"channels": s.library.Booking(site)})
}

func (s *Server) handleQuote(c *gin.Context) {
	c.JSON(http.StatusOK, s.library.Quote())
}

func (s *Server) handleThemeGet(c *gin.Context) {
	prefersDark, _ := strconv.ParseBool(c.Query("prefers_dark"))
	c.JSON(http.StatusOK, gin.H{"theme": s.themes.Get(c.Request.Context(), prefersDark)})
}

type themeRequest struct {
	Theme       library.Theme `json:"theme"`
	Toggle      bool          `json:"toggle"`
	PrefersDark bool          `json:"prefers_dark"`
}

// handleThemePut 设置主题，或在 toggle 为 true 时切换主题。
func (s *Server) handleThemePut(c *gin.Context) {
	var req themeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	ctx := c.Request.Context()
	if req.Toggle {
		c.JSON(http.StatusOK, gin.H{"theme": s.themes.Toggle(ctx, req.PrefersDark)})
		return
	}
	if err := s.themes.Set(ctx, req.Theme); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": req.Theme})
}
