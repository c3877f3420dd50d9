package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drawkit/sai/pkg/common"
	"github.com/drawkit/sai/pkg/sai"
)

var infoFile string

var InfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show canvas and author metadata",
	RunE:  runInfo,
}

func init() {
	InfoCmd.Flags().StringVarP(&infoFile, "file", "f", "", "Path to the .sai container")
	InfoCmd.MarkFlagRequired("file")
}

func runInfo(cmd *cobra.Command, args []string) error {
	d, err := sai.OpenFile(infoFile, sai.OpenOptions{})
	if err != nil {
		return err
	}
	defer d.Close()

	canvas := d.Canvas()
	fmt.Printf("canvas: %dx%d\n", canvas.Width, canvas.Height)
	if canvas.HasResolution {
		fmt.Printf("resolution: %.1f dpi\n", canvas.DotsPerInch)
	}

	author, err := d.Author()
	switch {
	case errors.Is(err, common.ErrUnrecognized):
		// Older containers may not carry the stream.
	case err != nil:
		return err
	default:
		fmt.Printf("created: %s\n", author.DateCreated.Format("2006-01-02 15:04:05"))
		fmt.Printf("modified: %s\n", author.DateModified.Format("2006-01-02 15:04:05"))
		fmt.Printf("machine: %016x\n", author.MachineHash)
	}

	if thumb, err := d.Thumbnail(); err == nil {
		fmt.Printf("thumbnail: %dx%d\n", thumb.Width, thumb.Height)
	}
	return nil
}
