package main

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newFilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage uploaded files",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "upload <file>",
			Short: "Upload a file",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
				upload, closeFn, err := openUpload(args[0])
				if err != nil {
					return err
				}
				defer closeFn()

				file, err := a.content.UploadFile(ctx, upload)
				if err != nil {
					return describeError(err)
				}
				return printFile(cmd, file)
			}),
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete an uploaded file",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
				if err := a.content.DeleteFile(ctx, args[0]); err != nil {
					return err
				}
				pterm.Success.Printfln("Deleted file %s", args[0])
				return nil
			}),
		},
		&cobra.Command{
			Use:   "preview <id>",
			Short: "Print the public URL of a file",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
				url, err := a.content.FilePreview(ctx, args[0])
				if err != nil {
					return err
				}
				if wantJSON(cmd) {
					return printJSON(cmd, map[string]string{"url": url})
				}
				pterm.Println(url)
				return nil
			}),
		},
	)
	return cmd
}
