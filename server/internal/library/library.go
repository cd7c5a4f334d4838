package library

import (
	"math/rand"
	"net/url"
	"strings"
)

// DefaultSiteURL 在调用方没有提供站点地址时用于分享链接。
const DefaultSiteURL = "https://mindly.example"

// Library 提供资源库、预约方式与每日一句。内容只读，可并发使用。
type Library struct {
	content Content
	pick    func(n int) int
}

// New 创建资源库。pick 为 nil 时随机选择每日一句。
func New(content Content, pick func(n int) int) *Library {
	if pick == nil {
		pick = rand.Intn
	}
	return &Library{content: content, pick: pick}
}

// Resources 返回按主题分组的资源。
func (l *Library) Resources() []Topic {
	return append([]Topic(nil), l.content.Topics...)
}

// Booking 返回预约方式，分享类链接会带上站点地址。
func (l *Library) Booking(siteURL string) []Channel {
	if siteURL == "" {
		siteURL = DefaultSiteURL
	}
	out := make([]Channel, 0, len(l.content.Channels))
	for _, ch := range l.content.Channels {
		ch.URL = buildURL(ch.URL, ch.Query, siteURL)
		ch.Query = nil
		out = append(out, ch)
	}
	return out
}

func buildURL(base string, query []Param, siteURL string) string {
	if len(query) == 0 {
		return base
	}
	parts := make([]string, 0, len(query))
	for _, p := range query {
		v := strings.ReplaceAll(p.Value, "{site}", siteURL)
		parts = append(parts, p.Key+"="+encodeComponent(v))
	}
	return base + "?" + strings.Join(parts, "&")
}

// encodeComponent 与浏览器 encodeURIComponent 一致：空格编码为 %20。
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Quote 随机返回一句。没有内容时返回零值。
func (l *Library) Quote() Quote {
	if len(l.content.Quotes) == 0 {
		return Quote{}
	}
	return l.content.Quotes[l.pick(len(l.content.Quotes))]
}
