package library

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Resource 是一条外部链接。
type Resource struct {
	Title string `yaml:"title" json:"title"`
	URL   string `yaml:"url" json:"url"`
}

// Topic 是一组按主题归类的资源。
type Topic struct {
	Title     string     `yaml:"title" json:"title"`
	Resources []Resource `yaml:"resources" json:"resources"`
}

// Channel 是一种预约/求助方式。Query 的值中 {site} 会被替换为站点地址。
type Channel struct {
	ID          string  `yaml:"id" json:"id"`
	Title       string  `yaml:"title" json:"title"`
	Description string  `yaml:"description" json:"description"`
	URL         string  `yaml:"url" json:"url"`
	Query       []Param `yaml:"query" json:"-"`
	External    bool    `yaml:"external" json:"external"`
}

// Param 是有序的查询参数。
type Param struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

type Quote struct {
	Text   string `yaml:"text" json:"text"`
	Author string `yaml:"author" json:"author"`
}

// Content 是资源库页面的全部静态内容。
type Content struct {
	Topics   []Topic   `yaml:"topics"`
	Channels []Channel `yaml:"channels"`
	Quotes   []Quote   `yaml:"quotes"`
}

// LoadContent 从 YAML 文件加载内容，文件中缺省的部分沿用内置内容。
func LoadContent(path string) (Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Content{}, fmt.Errorf("read library: %w", err)
	}

	var c Content
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Content{}, fmt.Errorf("parse library: %w", err)
	}

	def := DefaultContent()
	if len(c.Topics) == 0 {
		c.Topics = def.Topics
	}
	if len(c.Channels) == 0 {
		c.Channels = def.Channels
	}
	if len(c.Quotes) == 0 {
		c.Quotes = def.Quotes
	}
	return c, nil
}

// DefaultContent 返回内置的资源、预约方式与每日一句。
func DefaultContent() Content {
	return Content{
		Topics: []Topic{
			{
				Title: "Academic Stress",
				Resources: []Resource{
					{Title: "Understanding stress", URL: "https://www.mind.org.uk/information-support/types-of-mental-health-problems/stress/"},
					{Title: "Pomodoro study techniques", URL: "https://www.youtube.com/results?search_query=pomodoro+study"},
					{Title: "Free online courses (Coursera)", URL: "https://www.coursera.org/"},
				},
			},
			{
				Title: "Financial Stress",
				Resources: []Resource{
					{Title: "How to budget", URL: "https://www.nerdwallet.com/article/finance/how-to-budget"},
					{Title: "Personal finance community", URL: "https://www.reddit.com/r/personalfinance/"},
					{Title: "Personal finance basics (Khan Academy)", URL: "https://www.khanacademy.org/college-careers-more/personal-finance"},
				},
			},
			{
				Title: "Emotional Well-being",
				Resources: []Resource{
					{Title: "Meditation for beginners", URL: "https://www.headspace.com/meditation/meditation-for-beginners"},
					{Title: "Grounding techniques", URL: "https://www.healthline.com/health/grounding-techniques"},
					{Title: "988 Suicide & Crisis Lifeline (US)", URL: "https://988lifeline.org/"},
				},
			},
		},
		Channels: []Channel{
			{
				ID:          "counsellor",
				Title:       "Schedule session with expert counsellor",
				Description: "Pick a slot that works for you. Secure, private, and supportive.",
				URL:         "https://calendly.com/",
				External:    true,
			},
			{
				ID:          "chatbot",
				Title:       "Chat with chatbot",
				Description: "Instant, friendly support 24/7 for quick guidance.",
				URL:         "/chatbot",
			},
			{
				ID:          "whatsapp",
				Title:       "Chat with coach on WhatsApp",
				Description: "Open WhatsApp with a pre-filled message to start the conversation.",
				URL:         "https://wa.me/917428417350",
				Query: []Param{
					{Key: "text", Value: "Hi Mindly Coach, I would like to chat for support. {site}"},
				},
				External:    true,
			},
			{
				ID:          "refer",
				Title:       "Refer a friend",
				Description: "Invite a friend to Mindly via your email app.",
				URL:         "https://mail.google.com/mail/",
				Query: []Param{
					{Key: "view", Value: "cm"},
					{Key: "fs", Value: "1"},
					{Key: "to", Value: ""},
					{Key: "su", Value: "Try Mindly with me"},
					{Key: "body", Value: "Hey! Check out Mindly – a calm space for students: {site}"},
				},
			},
		},
		Quotes: []Quote{
			{Text: "Small steps every day lead to big changes.", Author: "Mindly"},
			{Text: "You are doing better than you think.", Author: "Mindly"},
			{Text: "Pause. Breathe. Proceed.", Author: "Mindly"},
			{Text: "It’s okay to ask for help.", Author: "Mindly"},
			{Text: "Progress, not perfection.", Author: "Mindly"},
		},
	}
}
