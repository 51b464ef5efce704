package collector

import "fmt"

// Announcement 一次抓取得到的候选公告；Title 是去重键，Link 仅用于展示
type Announcement struct {
	Title string
	Link  string
}

// Fetcher 抽象公告来源；返回 nil, nil 表示页面上没有可用公告
type Fetcher interface {
	Name() string
	FetchLatest() (*Announcement, error)
}

// FetchError 网络失败或非 2xx 响应
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
