package cli

import (
	"github.com/3Eeeecho/go-fluxshare/cmd/server"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fluxshare/internal/setup"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(configFile *string) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务、后台 Worker 与定时任务",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			srv, err := server.NewServer(ctx, cfg)
			if err != nil {
				logger.Error("初始化服务失败", zap.Error(err))
				return err
			}
			defer srv.Close()

			if migrate {
				if err := srv.Migrate(); err != nil {
					return err
				}
			}
			return srv.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "启动前自动迁移数据库表结构")
	return cmd
}

func newMigrateCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "迁移数据库表结构",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := setup.InitDatabase(&cfg.Database)
			if err != nil {
				return err
			}
			defer setup.CloseDatabase(db)
			return setup.AutoMigrate(db)
		},
	}
}
