package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mindly/server/internal/chat"
	"mindly/server/internal/model"
)

// messageView 附带渲染好的 HTML，UI 直接插入即可。
type messageView struct {
	Role model.Role `json:"role"`
	Text string     `json:"text"`
	HTML string     `json:"html"`
}

type chatView struct {
	SessionID string        `json:"session_id"`
	UserID    string        `json:"user_id,omitempty"`
	Messages  []messageView `json:"messages"`
	Metrics   model.Metrics `json:"metrics,omitempty"`
	Loading   bool          `json:"loading"`
}

func newChatView(snap chat.Snapshot) chatView {
	v := chatView{
		SessionID: snap.SessionID,
		UserID:    snap.UserID,
		Messages:  make([]messageView, 0, len(snap.Messages)),
		Metrics:   snap.Metrics,
		Loading:   snap.Loading,
	}
	for _, m := range snap.Messages {
		v.Messages = append(v.Messages, messageView{Role: m.Role, Text: m.Text, HTML: chat.RenderHTML(m)})
	}
	return v
}

type submitRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleChatState(c *gin.Context) {
	c.JSON(http.StatusOK, newChatView(s.chat.Snapshot()))
}

// handleChatSubmit 同步等待回复。回复失败时仍返回 200，内容为致歉文本。
func (s *Server) handleChatSubmit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	reply, err := s.chat.Submit(c.Request.Context(), req.Text)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reply": messageView{Role: reply.Role, Text: reply.Text, HTML: chat.RenderHTML(reply)},
		"chat":  newChatView(s.chat.Snapshot()),
	})
}

func (s *Server) handleChatNew(c *gin.Context) {
	if err := s.chat.NewConversation(c.Request.Context()); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newChatView(s.chat.Snapshot()))
}

// streamMessage 是聊天推送流上的消息。
// 客户端发送 {"type":"send","text":...}；服务端推送 snapshot 与 error。
type streamMessage struct {
	Type  string    `json:"type"`
	Text  string    `json:"text,omitempty"`
	Chat  *chatView `json:"chat,omitempty"`
	Error string    `json:"error,omitempty"`
}

const (
	streamTypeSend     = "send"
	streamTypeSnapshot = "snapshot"
	streamTypeError    = "error"

	streamWriteWait = 10 * time.Second
)

// handleChatStream 把聊天状态变化推送给 UI，并接收发送请求。
// 所有写操作都在本 goroutine 中完成。
func (s *Server) handleChatStream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("upgrade websocket failed", "error", err)
		return
	}
	defer conn.Close()

	snaps, unsubscribe := s.chat.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ping := s.config.Server.PingInterval
	if ping <= 0 {
		ping = 30 * time.Second
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * ping))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * ping))
	})

	out := make(chan streamMessage, 8)
	go s.readStream(ctx, cancel, conn, out)

	ticker := time.NewTicker(ping)
	defer ticker.Stop()

	s.log.Info("chat stream opened", "remote", c.Request.RemoteAddr)
	defer s.log.Info("chat stream closed", "remote", c.Request.RemoteAddr)

	for {
		var msg streamMessage
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			view := newChatView(snap)
			msg = streamMessage{Type: streamTypeSnapshot, Chat: &view}
		case msg = <-out:
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			s.log.Warn("write chat stream failed", "error", err)
			return
		}
	}
}

// readStream 读取客户端消息，连接断开时取消 ctx。
func (s *Server) readStream(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out chan<- streamMessage) {
	defer cancel()
	for {
		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type != streamTypeSend {
			s.pushStream(ctx, out, streamMessage{Type: streamTypeError, Error: "unknown message type"})
			continue
		}
		// 回复通过订阅的快照送达；这里只需报告被拒绝的发送。
		go func(text string) {
			if _, err := s.chat.Submit(ctx, text); err != nil {
				s.pushStream(ctx, out, streamMessage{Type: streamTypeError, Error: err.Error()})
			}
		}(msg.Text)
	}
}

func (s *Server) pushStream(ctx context.Context, out chan<- streamMessage, msg streamMessage) {
	select {
	case out <- msg:
	case <-ctx.Done():
	}
}
