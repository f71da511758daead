package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"skillgoblin/internal/database"
)

func newScanCmd() *cobra.Command {
	var force, preserve bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a full scan of the content directory",
		Long: "Scan every course folder and reconcile the catalog with it.\n" +
			"Without --force the scan is skipped when the catalog already has courses.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(ctx context.Context, c *catalog) error {
				start := time.Now()
				if err := c.orch.FullScan(ctx, force, preserve); err != nil {
					return fmt.Errorf("scan failed: %w", err)
				}

				status := c.orch.Status().Snapshot()
				out := cmd.OutOrStdout()
				if status.Skipped {
					fmt.Fprintln(out, "Catalog already populated; scan skipped (use --force to rescan)")
					return nil
				}
				fmt.Fprintf(out, "Scanned %d/%d courses in %v\n",
					status.ProcessedCourses, status.TotalCourses, time.Since(start).Round(time.Millisecond))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "scan even when the catalog already has courses")
	cmd.Flags().BoolVar(&preserve, "preserve", true, "keep edited titles, descriptions, categories and thumbnails")
	return cmd
}

func newRescanCourseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rescan-course <folder>",
		Short: "Rescan a single course folder, keeping edited metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder, err := folderArg(args[0])
			if err != nil {
				return err
			}
			return withCatalog(cmd, func(ctx context.Context, c *catalog) error {
				doc, err := c.orch.ScanCourse(ctx, folder, true)
				if err != nil {
					return fmt.Errorf("rescan %q: %w", folder, err)
				}

				videos := 0
				for _, l := range doc.Lessons {
					videos += len(l.Videos)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %q  %d lessons, %d videos\n",
					doc.ID, doc.Title, len(doc.Lessons), videos)
				return nil
			})
		},
	}
}

func newRemoveCourseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-course <folder>",
		Short: "Remove a course from the catalog by folder name",
		Long:  "Remove a course and its favorites from the catalog. Files on disk are not touched.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder, err := folderArg(args[0])
			if err != nil {
				return err
			}
			return withCatalog(cmd, func(ctx context.Context, c *catalog) error {
				id, err := c.orch.RemoveCourse(ctx, folder)
				if errors.Is(err, database.ErrCourseNotFound) {
					return fmt.Errorf("no course with folder %q", folder)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
				return nil
			})
		},
	}
}

// folderArg accepts a course folder name, tolerating a trailing separator
// from shell completion.
func folderArg(arg string) (string, error) {
	folder := filepath.Base(filepath.Clean(arg))
	if folder == "." || folder == ".." || folder == string(filepath.Separator) {
		return "", fmt.Errorf("invalid course folder %q", arg)
	}
	if folder != filepath.Clean(arg) {
		return "", fmt.Errorf("course folder %q must be a direct child of the content directory", arg)
	}
	return folder, nil
}
