package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"artscope/internal/adapter/catalog"
	"artscope/internal/adapter/fs"
	"artscope/internal/usecase"
)

var (
	importRebuild      bool
	importCatalog      string
	importWriteCatalog bool
	importMaxBytes     int64
)

var importCmd = &cobra.Command{
	Use:   "import [path]",
	Short: "Import artworks from a directory of images",
	Long: `Extract an embedding for every artwork image under path and store it.

When path contains a catalog manifest (catalog.yaml by default) its entries
supply ids, names, artists and descriptions. Otherwise every image found is
imported and named after its file, with the parent directory as the artist.

Examples:
  artscope import ./collection
  artscope import ./collection --write-catalog   # also write catalog.yaml
  artscope import ./collection --rebuild         # drop stored embeddings first`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().BoolVar(&importRebuild, "rebuild", false, "clear the catalog before importing")
	importCmd.Flags().StringVar(&importCatalog, "catalog", "", "manifest file name relative to path (default from config)")
	importCmd.Flags().BoolVar(&importWriteCatalog, "write-catalog", false, "write a manifest for discovered images when none exists")
	importCmd.Flags().Int64Var(&importMaxBytes, "max-bytes", 0, "skip images larger than this (default server.max_upload_bytes)")
}

func runImport(cmd *cobra.Command, args []string) error {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	cfg := GetConfig()
	manifestName := cfg.Import.Catalog
	if importCatalog != "" {
		manifestName = importCatalog
	}
	maxBytes := cfg.Server.MaxUploadBytes
	if importMaxBytes > 0 {
		maxBytes = importMaxBytes
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	ext, err := newExtractor()
	if err != nil {
		return err
	}

	walker := fs.NewWalker(cfg.Import.Includes, cfg.Import.Excludes)
	importUC := usecase.NewImportUseCase(st, ext, walker, maxBytes, GetLogger())

	if importWriteCatalog {
		if err := writeCatalog(importUC, path, manifestName); err != nil {
			return err
		}
	}

	fmt.Printf("Importing %s with %s...\n", path, ext.ModelName())

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var startTime time.Time

	progressCallback := func(done, total int, entry catalog.Entry) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Importing[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		bar.Set(done)

		elapsed := time.Since(startTime)
		if rate := float64(done) / elapsed.Seconds(); rate > 0 && done < total {
			eta := time.Duration(float64(total-done)/rate) * time.Second
			bar.Describe(fmt.Sprintf("[cyan]Importing[reset] ETA: %s", formatDuration(eta)))
		}
	}

	result, err := importUC.Import(ctx, path, usecase.ImportOptions{
		Catalog:  manifestName,
		Rebuild:  importRebuild,
		Progress: progressCallback,
	})
	if errors.Is(err, usecase.ErrRebuildRequired) {
		return err
	}
	if err != nil && result == nil {
		return fmt.Errorf("import failed: %w", err)
	}

	source := "directory scan"
	if result.FromManifest {
		source = manifestName
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("Import complete"))
	fmt.Println(field("Source", source))
	if result.Rebuilt {
		fmt.Println(field("Rebuilt", "yes"))
	}
	fmt.Println(field("Imported", fmt.Sprintf("%d", result.Imported)))
	fmt.Println(field("Failed", fmt.Sprintf("%d", result.Failed)))

	if len(result.Errors) > 0 {
		fmt.Println()
		fmt.Println(dimStyle.Render("Warnings:"))
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	if cfg.Store.Driver == "bolt" || cfg.Store.Driver == "sqlite" {
		fmt.Println()
		fmt.Println(dimStyle.Render("Catalog stored at: " + cfg.StorePath(GetRootDir())))
	}

	if err != nil {
		return fmt.Errorf("import interrupted: %w", err)
	}
	return nil
}

// writeCatalog saves a manifest for the discovered images unless one exists.
func writeCatalog(uc *usecase.ImportUseCase, root, manifestName string) error {
	entries, fromManifest, err := uc.Plan(root, manifestName)
	if err != nil {
		return err
	}
	if fromManifest {
		fmt.Println(dimStyle.Render(manifestName + " already exists, leaving it untouched"))
		return nil
	}

	m := &catalog.Manifest{Artworks: entries}
	file := filepath.Join(root, manifestName)
	if err := m.Save(file); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	fmt.Printf("Wrote %d entries to %s\n", len(entries), file)
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
