package cli

import (
	"github.com/3Eeeecho/go-fluxshare/internal/config"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/spf13/cobra"
)

func New() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:          "fluxshare",
		Short:        "go-fluxshare 文件分享服务",
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径，默认查找 ./config.yaml 与 ./configs/config.yaml")

	cmd.AddCommand(
		newServeCmd(&configFile),
		newMigrateCmd(&configFile),
		newSweepScansCmd(&configFile),
		newReapUploadsCmd(&configFile),
		newUploadCmd(),
	)
	return cmd
}

// loadConfig 加载配置并初始化日志
func loadConfig(configFile string) (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	logger.InitLogger(logger.Options{
		OutputPath: cfg.Log.OutputPath,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	return cfg, nil
}
