package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ftpmirror/internal/config"
	"ftpmirror/internal/database"
)

func newHistoryCommand() *cobra.Command {
	var (
		dbPath     string
		failedOnly bool
		remotePath string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "查看最近一次同步的汇总和每个文件的处理结果",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return errors.New("缺少 --" + config.FlagHistoryDB)
			}
			db, err := database.OpenReadOnly(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			if remotePath != "" {
				return printTransfer(cmd.OutOrStdout(), db, remotePath)
			}
			return printHistory(cmd.OutOrStdout(), db, failedOnly)
		},
	}
	cmd.Flags().StringVar(&dbPath, config.FlagHistoryDB, "", "传输历史数据库路径")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "只显示失败的文件")
	cmd.Flags().StringVar(&remotePath, "path", "", "只显示该远程文件的最近一次记录")
	return cmd
}

func printHistory(w io.Writer, db *database.DB, failedOnly bool) error {
	pass, err := db.LastPass()
	if err != nil {
		return err
	}
	if pass == nil {
		fmt.Fprintln(w, "没有同步记录")
		return nil
	}

	started := time.Unix(0, pass.StartedAt)
	fmt.Fprintf(w, "最近一次同步: %s\n", pass.ID)
	fmt.Fprintf(w, "  %s -> %s\n", pass.RemoteDir, pass.LocalDir)
	fmt.Fprintf(w, "  开始: %s (%s)，耗时 %s\n",
		started.Format(time.DateTime), humanize.Time(started), pass.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "  目录 %d  文件 %d  下载 %d  跳过 %d  失败 %d  列目录错误 %d\n",
		pass.Dirs, pass.Files, pass.Downloaded, pass.Skipped, pass.Failed, pass.ListErrors)
	if pass.Error != "" {
		fmt.Fprintf(w, "  错误: %s\n", pass.Error)
	}

	records, err := db.ListTransfers()
	if err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATE\tOP\tREASON\tSIZE\tREMOTE\tERROR")
	for _, rec := range records {
		if failedOnly && !rec.Failed() {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.State, rec.Op, rec.Reason, humanize.IBytes(uint64(rec.Size)), rec.RemotePath, rec.Error)
	}
	return tw.Flush()
}

func printTransfer(w io.Writer, db *database.DB, remotePath string) error {
	rec, err := db.GetTransfer(remotePath)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("没有 %s 的传输记录", remotePath)
	}

	updated := time.Unix(0, rec.UpdatedAt)
	fmt.Fprintf(w, "远程: %s\n", rec.RemotePath)
	fmt.Fprintf(w, "本地: %s\n", rec.LocalPath)
	fmt.Fprintf(w, "大小: %s\n", humanize.IBytes(uint64(rec.Size)))
	fmt.Fprintf(w, "决策: %s (%s)\n", rec.Op, rec.Reason)
	fmt.Fprintf(w, "状态: %s  退出码 %d\n", rec.State, rec.ExitCode)
	if rec.Error != "" {
		fmt.Fprintf(w, "错误: %s\n", rec.Error)
	}
	fmt.Fprintf(w, "同步: %s  %s\n", rec.PassID, humanize.Time(updated))
	return nil
}
