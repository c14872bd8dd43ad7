package main

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/brizzai/blogctl/internal/content"
	"github.com/brizzai/blogctl/internal/requester"
	"github.com/brizzai/blogctl/internal/session"
)

func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func printUser(cmd *cobra.Command, user *session.User) error {
	if wantJSON(cmd) {
		return printJSON(cmd, user)
	}
	return pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"ID", "Name", "Username", "Email"},
		{user.ID.String(), user.Name, user.Username, user.Email},
	}).Render()
}

func printPosts(cmd *cobra.Command, posts ...content.Post) error {
	if wantJSON(cmd) {
		if len(posts) == 1 {
			return printJSON(cmd, posts[0])
		}
		return printJSON(cmd, posts)
	}
	if len(posts) == 0 {
		pterm.Info.Println("No posts found")
		return nil
	}

	data := pterm.TableData{{"Slug", "Title", "Status", "Author", "Updated"}}
	for _, p := range posts {
		author := p.UserID.String()
		if p.User != nil {
			author = p.User.DisplayName()
		}
		data = append(data, []string{p.Slug, p.Title, string(p.Status), author, p.UpdatedAt})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func printFile(cmd *cobra.Command, file *content.File) error {
	if wantJSON(cmd) {
		return printJSON(cmd, file)
	}
	return pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"ID", "Name", "Size", "Type", "URL"},
		{file.ID, file.Name, fmt.Sprintf("%d", file.SizeOriginal), file.MimeType, file.URL},
	}).Render()
}

// describeError adds the backend's field errors to validation failures
func describeError(err error) error {
	apiErr, ok := requester.AsAPIError(err)
	if !ok || !apiErr.IsValidation() {
		return err
	}
	for field, msgs := range apiErr.FieldErrors() {
		for _, msg := range msgs {
			pterm.Warning.Printfln("%s: %s", field, msg)
		}
	}
	return err
}
