package main

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tendant/site-content/pkg/sitecontent"
	"github.com/tendant/site-content/pkg/sitecontent/config"
)

// NewGetCommand prints the current document or the value at a path
func NewGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get [path]",
		Short: "Print the current content document",
		Long: `Print the current content document, or the value at a dotted path.

Examples:
  sitectl get
  sitectl get seo.title
  sitectl get events.0`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			publisher, err := NewPublisherFromFlags(ctx, cmd)
			if err != nil {
				return err
			}

			doc, err := publisher.GetCurrentDocument(ctx)
			if err != nil {
				return fmt.Errorf("failed to read content: %w", err)
			}
			if len(args) == 0 {
				return printJSON(cmd.OutOrStdout(), doc)
			}
			value, err := doc.Get(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), value)
		},
	}
}

// NewSetCommand replaces one value and publishes
func NewSetCommand() *cobra.Command {
	var noPublish bool

	cmd := &cobra.Command{
		Use:   "set <path> <value>",
		Short: "Set a value in the document and publish it",
		Long: `Set the value at a dotted path and publish the document.

The value is parsed as JSON; anything that is not valid JSON is stored as a
plain string.

Examples:
  sitectl set seo.title "Casa Nova"
  sitectl set hero.visible true
  sitectl set seo '{"title": "Casa", "description": "Dance school"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			publisher, err := NewPublisherFromFlags(ctx, cmd)
			if err != nil {
				return err
			}

			if _, err := publisher.GetCurrentDocument(ctx); err != nil {
				return fmt.Errorf("failed to read content: %w", err)
			}
			if err := publisher.ApplyEdit(ctx, args[0], parseValue(args[1])); err != nil {
				return err
			}

			if noPublish {
				doc, err := publisher.DraftDocument(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), doc)
			}
			result, err := publisher.Publish(ctx)
			if err != nil {
				return err
			}
			return reportPublish(cmd, result)
		},
	}

	cmd.Flags().BoolVar(&noPublish, "dry-run", false, "print the edited document without publishing")
	return cmd
}

// NewPublishCommand publishes a whole document from a file or stdin
func NewPublishCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "publish [file]",
		Short: "Publish a document file",
		Long: `Publish a complete content document. Reads stdin when no file is given
or the file is "-".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var data []byte
			var err error
			if len(args) == 0 || args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read document: %w", err)
			}
			doc, err := sitecontent.ParseDocument(data)
			if err != nil {
				return err
			}

			publisher, err := NewPublisherFromFlags(ctx, cmd)
			if err != nil {
				return err
			}
			result, err := publisher.PublishDocument(ctx, doc)
			if err != nil {
				return err
			}
			return reportPublish(cmd, result)
		},
	}
}

// NewUploadCommand uploads one media file
func NewUploadCommand() *cobra.Command {
	var mediaType string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a media file",
		Long: `Upload an image or other media file and print the stored asset.

Images are resized and re-encoded before storage. Files over 4.5 MB are
rejected before anything is read.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("failed to stat file: %w", err)
			}
			if err := sitecontent.CheckUploadSize(info.Size()); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}
			if mediaType == "" {
				mediaType = detectMediaType(path, data)
			}

			publisher, err := NewPublisherFromFlags(ctx, cmd)
			if err != nil {
				return err
			}
			asset, err := publisher.UploadAsset(ctx, sitecontent.Upload{
				FileName:  filepath.Base(path),
				MediaType: mediaType,
				Data:      data,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), asset)
		},
	}

	cmd.Flags().StringVarP(&mediaType, "type", "t", "", "media type (detected when empty)")
	return cmd
}

// NewCheckCommand reports backend configuration and remote connectivity
func NewCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check storage configuration and remote connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			publisher, err := NewPublisherFromFlags(ctx, cmd)
			if err != nil {
				return err
			}
			report, err := publisher.CheckConnectivity(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}

// NewEnvCommand prints the supported environment variables
func NewEnvCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "List the supported environment variables",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			config.Usage(cmd.OutOrStdout())
		},
	}
}

func reportPublish(cmd *cobra.Command, result *sitecontent.PublishResult) error {
	switch {
	case result.Failed():
		return fmt.Errorf("publish failed: %w", result.Err)
	case result.Degraded():
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", result.Warning)
	case result.Unchanged:
		fmt.Fprintln(cmd.ErrOrStderr(), "Document unchanged")
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func parseValue(raw string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func detectMediaType(path string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
