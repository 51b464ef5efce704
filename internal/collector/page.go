package collector

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"
)

const (
	defaultPageTimeout = 30 * time.Second
	pageUserAgent      = "NoticeWatchBot/1.0"
)

// Selector 从已解析的页面中挑出代表“最新公告”的链接元素；返回空 Selection 表示没有公告
type Selector func(doc *goquery.Document) *goquery.Selection

// FirstAnchor 取文档顺序中的第一个 <a>，与站点当前的页面结构强耦合，替换策略时只需换 Selector
func FirstAnchor(doc *goquery.Document) *goquery.Selection {
	return doc.Find("a").First()
}

// PageFetcher 抓取单个页面并提取第一条公告
type PageFetcher struct {
	SourceURL string
	Timeout   time.Duration
	Selector  Selector
}

func NewPageFetcher(sourceURL string, timeout time.Duration) *PageFetcher {
	return &PageFetcher{SourceURL: sourceURL, Timeout: timeout, Selector: FirstAnchor}
}

func (p *PageFetcher) Name() string {
	return "page"
}

func (p *PageFetcher) FetchLatest() (*Announcement, error) {
	base, err := url.Parse(p.SourceURL)
	if err != nil {
		return nil, &FetchError{URL: p.SourceURL, Err: err}
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultPageTimeout
	}
	selector := p.Selector
	if selector == nil {
		selector = FirstAnchor
	}

	c := colly.NewCollector(colly.UserAgent(pageUserAgent))
	c.SetRequestTimeout(timeout)
	// 非 2xx 由下面的状态码检查统一判定，colly 默认会把 203 及以上都当作错误
	c.ParseHTTPErrorResponse = true

	var (
		doc      *goquery.Document
		parseErr error
		status   int
	)

	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		doc, parseErr = goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	log.Debug().Str("url", p.SourceURL).Dur("timeout", timeout).Msg("fetch source page")

	if err := c.Visit(p.SourceURL); err != nil {
		return nil, &FetchError{URL: p.SourceURL, StatusCode: status, Err: err}
	}
	if status < 200 || status > 299 {
		return nil, &FetchError{URL: p.SourceURL, StatusCode: status, Err: errors.New("unexpected status")}
	}
	if parseErr != nil {
		return nil, &FetchError{URL: p.SourceURL, StatusCode: status, Err: fmt.Errorf("parse html: %w", parseErr)}
	}
	if doc == nil {
		return nil, &FetchError{URL: p.SourceURL, StatusCode: status, Err: errors.New("empty response")}
	}

	sel := selector(doc)
	if sel.Length() == 0 {
		log.Info().Str("url", p.SourceURL).Msg("no anchors on page")
		return nil, nil
	}

	title := strings.TrimSpace(strings.ToValidUTF8(sel.Text(), "\uFFFD"))
	href, _ := sel.Attr("href")
	link, err := resolveLink(base, href)
	if err != nil {
		return nil, &FetchError{URL: p.SourceURL, StatusCode: status, Err: err}
	}

	return &Announcement{Title: title, Link: link}, nil
}

// resolveLink 相对链接按来源页地址补全为绝对地址；空 href 视为指向来源页本身
func resolveLink(base *url.URL, href string) (string, error) {
	href = strings.TrimSpace(href)
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("invalid href %q: %w", href, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}
