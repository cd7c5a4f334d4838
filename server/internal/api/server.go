package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mindly/server/internal/chat"
	"mindly/server/internal/config"
	"mindly/server/internal/gateway"
	"mindly/server/internal/library"
	"mindly/server/internal/logger"
	"mindly/server/internal/model"
	"mindly/server/internal/mood"
	"mindly/server/internal/questionnaire"
	"mindly/server/internal/session"
)

// QuestionnaireSaver 上传完成的问卷，由 gateway.Client 实现。
type QuestionnaireSaver interface {
	SaveQuestionnaire(ctx context.Context, userID, timestamp string, answers model.AnswerSet) gateway.Result[gateway.Saved]
}

// Deps 是 Server 依赖的各个组件，由 main 组装。
type Deps struct {
	Config   *config.Config
	Log      *logger.Logger
	Catalog  *questionnaire.Catalog
	Wizard   *questionnaire.Wizard
	Moods    *mood.Recorder
	Chat     *chat.Manager
	Identity *session.Identity
	Remote   QuestionnaireSaver
	Library  *library.Library
	Themes   *library.ThemeStore
}

// Server 是给本机 UI 使用的 HTTP + WebSocket 接口。
type Server struct {
	config   *config.Config
	log      *logger.Logger
	catalog  *questionnaire.Catalog
	wizard   *questionnaire.Wizard
	moods    *mood.Recorder
	chat     *chat.Manager
	identity *session.Identity
	remote   QuestionnaireSaver
	library  *library.Library
	themes   *library.ThemeStore

	upgrader websocket.Upgrader
}

func NewServer(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = logger.NewNop()
	}
	s := &Server{
		config:   d.Config,
		log:      log.With("component", "api"),
		catalog:  d.Catalog,
		wizard:   d.Wizard,
		moods:    d.Moods,
		chat:     d.Chat,
		identity: d.Identity,
		remote:   d.Remote,
		library:  d.Library,
		themes:   d.Themes,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// 非浏览器客户端不带 Origin。
			return origin == "" || s.originAllowed(origin)
		},
	}
	return s
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.config.Server.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

func (s *Server) Routes() http.Handler {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), s.corsMiddleware())
	engine.GET("/healthz", s.handleHealthz)

	api := engine.Group("/api")

	q := api.Group("/questionnaire")
	q.GET("", s.handleQuestionnaireState)
	q.POST("/answers", s.handleQuestionnaireAnswer)
	q.POST("/advance", s.handleQuestionnaireAdvance)
	q.POST("/retreat", s.handleQuestionnaireRetreat)
	q.POST("/edit", s.handleQuestionnaireEdit)
	q.POST("/restart", s.handleQuestionnaireRestart)
	q.DELETE("/history", s.handleQuestionnaireClearHistory)

	m := api.Group("/moods")
	m.GET("", s.handleMoods)
	m.POST("", s.handleMoodSave)
	m.DELETE("", s.handleMoodClear)
	m.POST("/wizard/mood", s.handleMoodSelect)
	m.POST("/wizard/emotions", s.handleMoodToggleEmotion)
	m.POST("/wizard/triggers", s.handleMoodToggleTrigger)
	m.POST("/wizard/continue", s.handleMoodContinue)
	m.POST("/wizard/back", s.handleMoodBack)
	m.POST("/wizard/note", s.handleMoodNote)
	m.POST("/wizard/reset", s.handleMoodReset)

	c := api.Group("/chat")
	c.GET("", s.handleChatState)
	c.POST("/messages", s.handleChatSubmit)
	c.POST("/new", s.handleChatNew)
	c.GET("/stream", s.handleChatStream)

	lib := api.Group("/library")
	lib.GET("/resources", s.handleResources)
	lib.GET("/booking", s.handleBooking)
	lib.GET("/quote", s.handleQuote)

	api.GET("/theme", s.handleThemeGet)
	api.PUT("/theme", s.handleThemePut)
	return engine
}

// handleHealthz 返回服务健康状态。
func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     s.config.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// writeError 把各组件的哨兵错误映射为 HTTP 状态码。
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, questionnaire.ErrShowingSummary),
		errors.Is(err, questionnaire.ErrNotShowingSummary),
		errors.Is(err, mood.ErrWrongStep),
		errors.Is(err, chat.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, chat.ErrNotOpen), errors.Is(err, chat.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
