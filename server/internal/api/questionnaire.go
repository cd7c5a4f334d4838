package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mindly/server/internal/gateway"
	"mindly/server/internal/model"
	"mindly/server/internal/questionnaire"
)

type answerRequest struct {
	QuestionID string `json:"question_id"`
	Value      *int   `json:"value"`
}

// advanceResponse 在生成新记录时附带记录本身与上传结果。
type advanceResponse struct {
	State questionnaire.State             `json:"state"`
	Run   *model.QuestionnaireRun         `json:"run,omitempty"`
	Sync  *gateway.Result[gateway.Saved] `json:"sync,omitempty"`
}

func (s *Server) handleQuestionnaireState(c *gin.Context) {
	c.JSON(http.StatusOK, s.wizard.State())
}

func (s *Server) handleQuestionnaireAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.QuestionID == "" || req.Value == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question_id and value required"})
		return
	}
	if err := s.wizard.Answer(c.Request.Context(), req.QuestionID, *req.Value); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.wizard.State())
}

// handleQuestionnaireAdvance 前进一个分区；完成问卷时按配置上传记录，上传成功后把记录 ID 设为当前用户。
func (s *Server) handleQuestionnaireAdvance(c *gin.Context) {
	ctx := c.Request.Context()
	run, err := s.wizard.Advance(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp := advanceResponse{Run: run}
	if run != nil && s.config.Questionnaire.SyncRuns && s.remote != nil {
		res := s.remote.SaveQuestionnaire(ctx, run.ID, run.Timestamp, run.Responses)
		if res.OK {
			s.identity.SetCurrentUser(ctx, run.ID)
		} else {
			s.log.Warn("questionnaire sync failed", "status", res.Status, "error", res.Error)
		}
		resp.Sync = &res
	}
	resp.State = s.wizard.State()
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleQuestionnaireRetreat(c *gin.Context) {
	if err := s.wizard.Retreat(c.Request.Context()); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.wizard.State())
}

func (s *Server) handleQuestionnaireEdit(c *gin.Context) {
	if err := s.wizard.EditAnswers(c.Request.Context()); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.wizard.State())
}

func (s *Server) handleQuestionnaireRestart(c *gin.Context) {
	s.wizard.Restart(c.Request.Context())
	c.JSON(http.StatusOK, s.wizard.State())
}

// handleQuestionnaireClearHistory 删除全部历史记录；当前用户指针指向的记录随之消失，一并清除。
func (s *Server) handleQuestionnaireClearHistory(c *gin.Context) {
	ctx := c.Request.Context()
	s.wizard.ClearHistory(ctx)
	s.identity.ClearCurrentUser(ctx)
	c.JSON(http.StatusOK, s.wizard.State())
}
