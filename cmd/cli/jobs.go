package cli

import (
	"fmt"

	"github.com/3Eeeecho/go-fluxshare/cmd/server"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/logger"
	"github.com/spf13/cobra"
)

// newSweepScansCmd 立即补扫一批 PENDING 文件
func newSweepScansCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-scans",
		Short: "扫描一批等待扫描的文件",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			defer logger.Sync()

			srv, err := server.NewServer(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer srv.Close()

			srv.Jobs().SweepPendingScans(cmd.Context())
			return nil
		},
	}
}

func newReapUploadsCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reap-uploads",
		Short: "中止超过 reaper.max_age 仍未完成的分块上传",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			defer logger.Sync()

			srv, err := server.NewServer(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer srv.Close()

			aborted, err := srv.Jobs().ReapUploads(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "aborted %d incomplete uploads\n", aborted)
			return nil
		},
	}
}
