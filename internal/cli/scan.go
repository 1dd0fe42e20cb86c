package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"artscope/internal/adapter/fs"
	"artscope/internal/domain"
)

var scanJSON bool

var scanCmd = &cobra.Command{
	Use:   "scan <image>",
	Short: "Identify the artwork in a photo",
	Long: `Match a single image against the catalog and print the closest artwork.

Examples:
  artscope scan photo.jpg
  artscope scan photo.jpg --json`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "output as JSON")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	image, err := fs.ReadImage(args[0], cfg.Server.MaxUploadBytes)
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.scan.Scan(ctx, image)
	if err != nil {
		return err
	}

	if scanJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if out.Empty() {
			return enc.Encode(map[string]string{"message": "No artworks found in database"})
		}
		return enc.Encode(domain.NewMatchPayload(out.Artwork, out.Score, cfg.Match.Precision))
	}

	if out.Empty() {
		fmt.Println(dimStyle.Render("No artworks found in database"))
		return nil
	}

	p := domain.NewMatchPayload(out.Artwork, out.Score, cfg.Match.Precision)
	body := titleStyle.Render(p.Name) + "\n\n" +
		field("Artist", p.Artist) + "\n" +
		field("Artwork ID", fmt.Sprintf("%d", p.ArtworkID)) + "\n" +
		field("Similarity", scoreStyle.Render(fmt.Sprintf("%.*f", cfg.Match.Precision, p.Similarity)))
	if p.Description != "" {
		body += "\n" + field("Description", p.Description)
	}
	fmt.Println(cardStyle.Render(body))
	fmt.Println(dimStyle.Render(fmt.Sprintf("%s · compared %d of %d artworks · %s",
		filepath.Base(args[0]), out.Scored, out.Candidates, out.Model)))
	return nil
}
