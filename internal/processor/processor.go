package processor

import (
	"fmt"
	"strings"

	"github.com/LJTian/NoticeWatch/internal/collector"
)

// ProcessedNotice 是发送通知、写入存储前的统一结构
type ProcessedNotice struct {
	Title string
	Link  string
	Body  string
}

// Process 做最基础的数据清洗并生成消息正文。
// 标题是去重键，只修正非法 UTF-8 并去掉首尾空白，不截断，保证不同标题不会映射到同一个键
func Process(a collector.Announcement) ProcessedNotice {
	title := strings.TrimSpace(toValidUTF8(a.Title))
	link := strings.TrimSpace(a.Link)
	return ProcessedNotice{
		Title: title,
		Link:  link,
		Body:  FormatBody(title, link),
	}
}

// FormatBody 消息正文：固定抬头 + 标题 + 链接，各占一行
func FormatBody(title, link string) string {
	return fmt.Sprintf("New update notice:\n%s\n%s", title, link)
}

// toValidUTF8 避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}
