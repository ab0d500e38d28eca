package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Compact compacts the vault database to reclaim unused space
func Compact(app *App) {
	sizeBefore, err := fileSize(app.DB.Path())
	if err != nil {
		HandleError(err)
	}

	if err := app.DB.Compact(); err != nil {
		HandleError(err)
	}

	sizeAfter, err := fileSize(app.DB.Path())
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("Compacted: %s -> %s\n", formatSize(sizeBefore), formatSize(sizeAfter))
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func formatSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)

	switch {
	case size >= MB:
		return fmt.Sprintf("%.1f MB", float64(size)/MB)
	case size >= KB:
		return fmt.Sprintf("%.1f KB", float64(size)/KB)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}

func newCompactCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Compact the vault database to reclaim disk space",
		Long: `Compacts the vault database to reclaim unused disk space.
This is done automatically after 'passwd', but can be run manually if needed.

Does not require a password.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			app := OpenAppOrExit(cmd)
			defer app.Close()
			Compact(app)
		},
	}
}
