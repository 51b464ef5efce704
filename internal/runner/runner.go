package runner

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/LJTian/NoticeWatch/internal/collector"
	"github.com/LJTian/NoticeWatch/internal/notifier"
	"github.com/LJTian/NoticeWatch/internal/processor"
)

// NoveltyStore 去重存储；storage.Store 实现该接口
type NoveltyStore interface {
	EnsureSchema() error
	HasSeen(title string) (bool, error)
	Record(title, link string) error
}

type Status string

const (
	StatusNoUpdate  Status = "no_update"
	StatusDuplicate Status = "duplicate"
	StatusNotified  Status = "notified"
)

// Result 一轮执行的结果，String() 即命令行输出的一行状态
type Result struct {
	Status    Status `json:"status"`
	Title     string `json:"title,omitempty"`
	Link      string `json:"link,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

func (r Result) String() string {
	switch r.Status {
	case StatusNoUpdate:
		return "no updates"
	case StatusDuplicate:
		return "already seen"
	case StatusNotified:
		return "sent, id=" + r.MessageID
	default:
		return string(r.Status)
	}
}

type Runner struct {
	fetcher  collector.Fetcher
	store    NoveltyStore
	notifier notifier.Notifier
}

func New(f collector.Fetcher, s NoveltyStore, n notifier.Notifier) *Runner {
	return &Runner{fetcher: f, store: s, notifier: n}
}

// Run 执行一轮：建表 -> 抓取 -> 查重 -> 通知 -> 记录。
// 只有通知成功后才写入存储，发送失败时标题保持未记录，下一轮会重新通知。
func (r *Runner) Run() (Result, error) {
	start := time.Now()
	log.Info().Str("fetcher", r.fetcher.Name()).Msg("start run")

	if err := r.store.EnsureSchema(); err != nil {
		return Result{}, err
	}

	ann, err := r.fetcher.FetchLatest()
	if err != nil {
		return Result{}, err
	}
	// 链接文字为空同样视为没有更新
	if ann == nil || ann.Title == "" {
		log.Info().Dur("took", time.Since(start)).Msg("no updates found")
		return Result{Status: StatusNoUpdate}, nil
	}

	notice := processor.Process(*ann)
	if notice.Title == "" {
		return Result{Status: StatusNoUpdate}, nil
	}

	seen, err := r.store.HasSeen(notice.Title)
	if err != nil {
		return Result{}, err
	}
	if seen {
		log.Info().Str("title", notice.Title).Msg("already seen")
		return Result{Status: StatusDuplicate, Title: notice.Title, Link: notice.Link}, nil
	}

	id, err := r.notifier.Send(notice.Body)
	if err != nil {
		log.Error().Err(err).Str("title", notice.Title).Msg("notify failed, title left unrecorded")
		return Result{}, err
	}

	res := Result{Status: StatusNotified, Title: notice.Title, Link: notice.Link, MessageID: id}
	if err := r.store.Record(notice.Title, notice.Link); err != nil {
		// 消息已经发出，但记录失败：下一轮可能重复通知
		return res, fmt.Errorf("message %s sent but not recorded: %w", id, err)
	}

	log.Info().
		Str("title", notice.Title).
		Str("link", notice.Link).
		Str("notifier", r.notifier.Name()).
		Str("message_id", id).
		Dur("took", time.Since(start)).
		Msg("run done")
	return res, nil
}
