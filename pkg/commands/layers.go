package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drawkit/sai/pkg/sai"
)

var layersFile string

var LayersCmd = &cobra.Command{
	Use:   "layers",
	Short: "List layers with their metadata",
	RunE:  runLayers,
}

func init() {
	LayersCmd.Flags().StringVarP(&layersFile, "file", "f", "", "Path to the .sai container")
	LayersCmd.MarkFlagRequired("file")
}

func runLayers(cmd *cobra.Command, args []string) error {
	d, err := sai.OpenFile(layersFile, sai.OpenOptions{})
	if err != nil {
		return err
	}
	defer d.Close()

	for _, h := range d.Layers() {
		layer, err := d.LayerMetadata(h)
		if err != nil {
			fmt.Printf("%s: %v\n", h.Path(), err)
			continue
		}
		visible := " "
		if layer.Visible {
			visible = "v"
		}
		fmt.Printf("%8d %s %-8s %-5s %3d%% %4dx%-4d %s\n",
			layer.ID, visible, layer.Kind, layer.Blend, layer.Opacity,
			layer.Bounds.Width, layer.Bounds.Height, layer.Name)
	}
	return nil
}
