package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/LJTian/NoticeWatch/internal/runner"
	"github.com/LJTian/NoticeWatch/internal/storage"
)

// SeenLister 只读查询已通知公告
type SeenLister interface {
	ListSeen(limit int) ([]storage.SeenUpdate, error)
}

// PipelineRunner 执行一轮抓取-通知
type PipelineRunner interface {
	Run() (runner.Result, error)
}

type Server struct {
	store  SeenLister
	runner PipelineRunner

	// 同一进程内不允许并发执行
	runMu sync.Mutex
}

func NewServer(store SeenLister, r PipelineRunner) *Server {
	return &Server{store: store, runner: r}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/updates", s.listUpdates)
		v1.POST("/run", s.run)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listUpdates(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "20")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 20
	}

	items, err := s.store.ListSeen(limit)
	if err != nil {
		log.Error().Err(err).Msg("list seen updates failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		})
		return
	}
	if items == nil {
		items = []storage.SeenUpdate{}
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    items,
	})
}

func (s *Server) run(c *gin.Context) {
	if !s.runMu.TryLock() {
		c.JSON(http.StatusConflict, gin.H{
			"code":    "run_in_progress",
			"message": "a run is already in progress",
		})
		return
	}
	defer s.runMu.Unlock()

	res, err := s.runner.Run()
	if err != nil {
		log.Error().Err(err).Str("message_id", res.MessageID).Msg("triggered run failed")
		body := gin.H{
			"code":    "run_failed",
			"message": err.Error(),
		}
		// 通知已发出但记录失败时，调用方需要拿到 message id 做对账
		if res.Status != "" {
			body["data"] = res
		}
		c.JSON(http.StatusBadGateway, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": res.String(),
		"data":    res,
	})
}

// BasicAuthMiddleware 为整个站点增加一个简单的 Basic Auth 访问密码。
// /health 不做认证，便于健康检查。
func BasicAuthMiddleware(user, pass string) gin.HandlerFunc {
	const realm = "Restricted"
	uBytes := []byte(user)
	pBytes := []byte(pass)

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		u, p, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), uBytes) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), pBytes) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="`+realm+`"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
