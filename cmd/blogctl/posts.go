package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/brizzai/blogctl/internal/content"
	"github.com/brizzai/blogctl/internal/requester"
)

func newPostsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "Manage blog posts",
	}
	cmd.AddCommand(
		newPostsListCmd(),
		newPostsGetCmd(),
		newPostsCreateCmd(),
		newPostsUpdateCmd(),
		newPostsDeleteCmd(),
		newPostsSetImageCmd(),
	)
	return cmd
}

func newPostsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts, active ones unless filtered",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			var queries []content.Query
			if status, _ := cmd.Flags().GetString("status"); status != "" {
				queries = append(queries, content.Equal("status", status))
			}
			if status, _ := cmd.Flags().GetString("not-status"); status != "" {
				queries = append(queries, content.NotEqual("status", status))
			}
			raw, _ := cmd.Flags().GetStringArray("filter")
			for _, expr := range raw {
				queries = append(queries, content.Raw(expr))
			}

			list, err := a.content.ListPosts(ctx, queries...)
			if err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(cmd, list)
			}
			return printPosts(cmd, list.Documents...)
		}),
	}
	cmd.Flags().String("status", "", "Only posts with this status (active|inactive|draft)")
	cmd.Flags().String("not-status", "", "Exclude posts with this status")
	cmd.Flags().StringArray("filter", nil, "Raw key=value filter, may be repeated")
	return cmd
}

func newPostsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <slug>",
		Short: "Show a post",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			post, err := a.content.GetPost(ctx, args[0])
			if err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(cmd, post)
			}
			if err := printPosts(cmd, *post); err != nil {
				return err
			}
			pterm.DefaultSection.Println(post.Title)
			pterm.Println(post.Content)
			return nil
		}),
	}
}

func addPostFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "Post title")
	cmd.Flags().String("slug", "", "URL slug, generated from the title on create")
	cmd.Flags().String("content", "", "Post body")
	cmd.Flags().String("content-file", "", "Read the post body from a file")
	cmd.Flags().String("status", "", "Status (active|inactive|draft)")
	cmd.Flags().String("image", "", "Featured image file")
}

// postInput reads the post flags. The returned cleanup closes the image.
func postInput(cmd *cobra.Command) (content.PostInput, func(), error) {
	var in content.PostInput
	in.Title, _ = cmd.Flags().GetString("title")
	in.Slug, _ = cmd.Flags().GetString("slug")
	in.Content, _ = cmd.Flags().GetString("content")

	status, _ := cmd.Flags().GetString("status")
	in.Status = content.Status(status)
	if status != "" && !in.Status.Valid() {
		return in, func() {}, fmt.Errorf("invalid status %q, expected active, inactive or draft", status)
	}

	if path, _ := cmd.Flags().GetString("content-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return in, func() {}, fmt.Errorf("failed to read content file: %w", err)
		}
		in.Content = string(data)
	}

	path, _ := cmd.Flags().GetString("image")
	if path == "" {
		return in, func() {}, nil
	}
	upload, closeFn, err := openUpload(path)
	if err != nil {
		return in, func() {}, err
	}
	in.FeaturedImage = upload
	return in, closeFn, nil
}

func newPostsCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a post",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			in, cleanup, err := postInput(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			post, err := a.content.CreatePost(ctx, in)
			if err != nil {
				return describeError(err)
			}
			if wantJSON(cmd) {
				return printJSON(cmd, post)
			}
			pterm.Success.Printfln("Created post %s", pterm.LightGreen(post.Slug))
			return nil
		}),
	}
	addPostFlags(cmd)
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newPostsUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <slug>",
		Short: "Update the given fields of a post",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			in, cleanup, err := postInput(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			post, err := a.content.UpdatePost(ctx, args[0], in)
			if err != nil {
				return describeError(err)
			}
			if wantJSON(cmd) {
				return printJSON(cmd, post)
			}
			pterm.Success.Printfln("Updated post %s", pterm.LightGreen(post.Slug))
			return nil
		}),
	}
	addPostFlags(cmd)
	return cmd
}

func newPostsDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <slug>",
		Short: "Delete a post",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			withImage, _ := cmd.Flags().GetBool("with-image")
			if !withImage {
				if err := a.content.DeletePost(ctx, args[0]); err != nil {
					return err
				}
			} else {
				post, err := a.content.GetPost(ctx, args[0])
				if err != nil {
					return err
				}
				if err := a.content.DeletePostWithImage(ctx, post); err != nil {
					return err
				}
			}
			pterm.Success.Printfln("Deleted post %s", args[0])
			return nil
		}),
	}
	cmd.Flags().Bool("with-image", false, "Also delete the uploaded file the featured image refers to")
	return cmd
}

func newPostsSetImageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-image <slug> <file>",
		Short: "Replace the featured image of a post",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			upload, closeFn, err := openUpload(args[1])
			if err != nil {
				return err
			}
			defer closeFn()

			oldFileID, _ := cmd.Flags().GetString("old-file-id")
			post, err := a.content.ReplaceFeaturedImage(ctx, args[0], oldFileID, upload)
			if err != nil {
				return describeError(err)
			}
			if wantJSON(cmd) {
				return printJSON(cmd, post)
			}
			pterm.Success.Printfln("Featured image of %s is now %s", post.Slug, post.FeaturedImage)
			return nil
		}),
	}
	cmd.Flags().String("old-file-id", "", "Uploaded file to delete once the new image is attached")
	return cmd
}

// openUpload opens path for a multipart upload
func openUpload(path string) (*requester.Upload, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &requester.Upload{
		Filename: filepath.Base(path),
		Content:  f,
	}, func() { _ = f.Close() }, nil
}
