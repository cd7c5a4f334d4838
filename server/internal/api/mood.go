package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mindly/server/internal/model"
	"mindly/server/internal/mood"
)

type moodsResponse struct {
	Wizard   mood.WizardState  `json:"wizard"`
	Recent   []model.MoodEntry `json:"recent"`
	Levels   []mood.Level      `json:"levels"`
	Emotions []mood.Choice     `json:"emotions"`
	Triggers []mood.Choice     `json:"triggers"`
}

type nameRequest struct {
	Name string `json:"name"`
}

func (s *Server) moodsResponse(limit int) moodsResponse {
	return moodsResponse{
		Wizard:   s.moods.Wizard(),
		Recent:   s.moods.Recent(limit),
		Levels:   mood.Levels,
		Emotions: mood.Emotions,
		Triggers: mood.Triggers,
	}
}

// handleMoods 返回向导状态与最近的记录，limit 默认 10。
func (s *Server) handleMoods(c *gin.Context) {
	limit := mood.DefaultRecent
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, s.moodsResponse(limit))
}

func (s *Server) handleMoodSelect(c *gin.Context) {
	var req struct {
		Mood string `json:"mood"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	s.respondMood(c, s.moods.SelectMood(req.Mood))
}

func (s *Server) handleMoodToggleEmotion(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	s.respondMood(c, s.moods.ToggleEmotion(req.Name))
}

func (s *Server) handleMoodToggleTrigger(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	s.respondMood(c, s.moods.ToggleTrigger(req.Name))
}

func (s *Server) handleMoodContinue(c *gin.Context) {
	s.respondMood(c, s.moods.Continue())
}

func (s *Server) handleMoodBack(c *gin.Context) {
	s.moods.Back()
	s.respondMood(c, nil)
}

func (s *Server) handleMoodNote(c *gin.Context) {
	var req struct {
		Note string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	s.respondMood(c, s.moods.SetNote(req.Note))
}

func (s *Server) handleMoodReset(c *gin.Context) {
	s.moods.Reset()
	s.respondMood(c, nil)
}

func (s *Server) handleMoodSave(c *gin.Context) {
	entry, err := s.moods.Save(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entry": entry, "moods": s.moodsResponse(mood.DefaultRecent)})
}

// handleMoodClear 需要 ?confirm=true 才会清空全部记录。
func (s *Server) handleMoodClear(c *gin.Context) {
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))
	if err := s.moods.Clear(c.Request.Context(), confirmed); err != nil {
		s.writeError(c, err)
		return
	}
	s.respondMood(c, nil)
}

func (s *Server) respondMood(c *gin.Context, err error) {
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.moodsResponse(mood.DefaultRecent))
}
