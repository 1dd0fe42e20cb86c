package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var artworksJSON bool

var artworksCmd = &cobra.Command{
	Use:   "artworks",
	Short: "Inspect and edit the catalog",
}

var artworksListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List catalogued artworks",
	Args:    cobra.NoArgs,
	RunE:    runArtworksList,
}

var artworksRemoveCmd = &cobra.Command{
	Use:     "rm <id>...",
	Aliases: []string{"remove"},
	Short:   "Remove artworks by id",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runArtworksRemove,
}

func init() {
	rootCmd.AddCommand(artworksCmd)
	artworksCmd.AddCommand(artworksListCmd, artworksRemoveCmd)
	artworksListCmd.Flags().BoolVar(&artworksJSON, "json", false, "output as JSON")
}

func runArtworksList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.catalog.List(cmd.Context())
	if err != nil {
		return err
	}

	if artworksJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	if len(list) == 0 {
		fmt.Println(dimStyle.Render("No artworks found in database"))
		return nil
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%d artworks", len(list))))
	idStyle := lipgloss.NewStyle().Width(6).Align(lipgloss.Right).Foreground(secondaryColor)
	nameStyle := lipgloss.NewStyle().Width(36)
	for _, s := range list {
		fmt.Println(lipgloss.JoinHorizontal(lipgloss.Top,
			idStyle.Render(strconv.FormatInt(s.ID, 10)), "  ",
			nameStyle.Render(s.Name),
			dimStyle.Render(s.Artist)))
	}
	return nil
}

func runArtworksRemove(cmd *cobra.Command, args []string) error {
	ids := make([]int64, len(args))
	for i, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid artwork id %q", arg)
		}
		ids[i] = id
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.catalog.Remove(cmd.Context(), ids...); err != nil {
		return err
	}
	fmt.Printf("Removed %d artwork(s)\n", len(ids))
	return nil
}
