package chat

import (
	"html"
	"regexp"
	"strings"

	"mindly/server/internal/model"
)

var (
	boldPattern   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicPattern = regexp.MustCompile(`\*(.+?)\*`)
)

// RenderHTML 把一条消息转成可直接插入页面的 HTML。
// 所有文本先转义；只有助手消息支持 **粗体**、*斜体* 与换行。
func RenderHTML(msg model.ChatMessage) string {
	out := html.EscapeString(msg.Text)
	if msg.Role != model.RoleAssistant {
		return out
	}
	out = boldPattern.ReplaceAllString(out, "<strong>$1</strong>")
	out = italicPattern.ReplaceAllString(out, "<em>$1</em>")
	out = strings.ReplaceAll(out, "\r\n", "\n")
	return strings.ReplaceAll(out, "\n", "<br>")
}
