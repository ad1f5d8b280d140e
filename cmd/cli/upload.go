package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/3Eeeecho/go-fluxshare/internal/client/uploader"
	"github.com/spf13/cobra"
)

func newUploadCmd() *cobra.Command {
	var (
		serverURL string
		token     string
		statePath string
		mime      string
		folderID  uint64
	)
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "断点续传上传本地文件",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("FLUXSHARE_TOKEN")
			}
			if token == "" {
				return errors.New("missing access token: use --token or FLUXSHARE_TOKEN")
			}

			store, err := uploader.OpenBoltStore(statePath)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			client := uploader.New(serverURL, token, store, func(done, total int) {
				fmt.Fprintf(out, "\rparts %d/%d", done, total)
			})

			opts := uploader.Options{Mime: mime}
			if folderID > 0 {
				opts.FolderID = &folderID
			}
			file, err := client.Upload(cmd.Context(), args[0], opts)
			if errors.Is(err, uploader.ErrAlreadyCompleted) {
				fmt.Fprintf(out, "\n%s was already uploaded\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nuploaded %s (id=%d, scan=%s)\n", file.Filename, file.ID, file.ScanStatus)
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:4000", "服务地址")
	cmd.Flags().StringVar(&token, "token", "", "访问令牌")
	cmd.Flags().StringVar(&statePath, "state", ".fluxshare-uploads.db", "上传进度文件")
	cmd.Flags().StringVar(&mime, "mime", "", "文件类型，默认根据内容识别")
	cmd.Flags().Uint64Var(&folderID, "folder", 0, "目标文件夹ID")
	return cmd
}
