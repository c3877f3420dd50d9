package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/drawkit/sai/pkg/sai"
	"github.com/drawkit/sai/pkg/vfs"
)

type extractCmdOptions struct {
	InputFile  string
	OutputPath string
}

var extractOpts = &extractCmdOptions{}

var ExtractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract the container's decrypted streams to a directory",
	RunE:  runExtract,
}

func init() {
	ExtractCmd.Flags().StringVarP(&extractOpts.InputFile, "file", "f", "", "Path to the .sai container")
	ExtractCmd.Flags().StringVarP(&extractOpts.OutputPath, "output", "o", ".", "Output directory")
	ExtractCmd.MarkFlagRequired("file")
}

func runExtract(cmd *cobra.Command, args []string) error {
	d, err := sai.OpenFile(extractOpts.InputFile, sai.OpenOptions{})
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Walk(func(p string, e vfs.Entry) error {
		target := filepath.Join(extractOpts.OutputPath, filepath.FromSlash(p))
		if e.IsFolder() {
			return os.MkdirAll(target, 0755)
		}

		r, err := d.Stream(p)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		f, err := os.Create(target)
		if err != nil {
			return err
		}
		defer f.Close()

		if _, err := io.Copy(f, r); err != nil {
			return err
		}
		fmt.Printf("%s (%d bytes)\n", target, e.Size)
		return nil
	})
}
