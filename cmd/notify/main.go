package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/LJTian/NoticeWatch/internal/collector"
	"github.com/LJTian/NoticeWatch/internal/config"
	"github.com/LJTian/NoticeWatch/internal/logging"
	"github.com/LJTian/NoticeWatch/internal/notifier"
	"github.com/LJTian/NoticeWatch/internal/runner"
	"github.com/LJTian/NoticeWatch/internal/storage"
)

// 只执行一轮“抓取-查重-通知”后退出，交给外部定时任务触发
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var sourceURL string

	root := &cobra.Command{
		Use:           "noticewatch",
		Short:         "Check a notice page once and send new announcements",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(sourceURL)
			if err != nil {
				return err
			}
			return runOnce(cmd.OutOrStdout(), cfg)
		},
	}
	root.PersistentFlags().StringVar(&sourceURL, "source-url", "", "override SOURCE_URL")

	root.AddCommand(newSeenCmd(&sourceURL))
	return root
}

func newSeenCmd(sourceURL *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "seen",
		Short: "List announcements that were already sent",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*sourceURL)
			if err != nil {
				return err
			}
			store, err := storage.NewStore(cfg.DatabaseURL, cfg.RedisAddr)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.EnsureSchema(); err != nil {
				return err
			}
			list, err := store.ListSeen(limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, it := range list {
				fmt.Fprintf(out, "%s\t%s\t%s\n", it.SeenAt.Format("2006-01-02 15:04"), it.Title, it.Link)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of records to show")
	return cmd
}

// loadConfig 读取并校验配置；任何网络或数据库访问之前完成
func loadConfig(sourceURL string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if sourceURL != "" {
		cfg.SourceURL = sourceURL
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	logging.Setup(cfg.LogLevel)
	return cfg, nil
}

func runOnce(out io.Writer, cfg *config.Config) error {
	n, err := notifier.New(cfg)
	if err != nil {
		return err
	}

	store, err := storage.NewStore(cfg.DatabaseURL, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("close store")
		}
	}()

	fetcher := collector.NewPageFetcher(cfg.SourceURL, cfg.FetchTimeout)
	res, err := runner.New(fetcher, store, n).Run()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, res.String())
	return nil
}
