package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/drawkit/sai/pkg/sai"
	"github.com/drawkit/sai/pkg/vfs"
)

var treeFile string

var TreeCmd = &cobra.Command{
	Use:   "tree",
	Short: "List the container's virtual filesystem",
	RunE:  runTree,
}

func init() {
	TreeCmd.Flags().StringVarP(&treeFile, "file", "f", "", "Path to the .sai container")
	TreeCmd.MarkFlagRequired("file")
}

func runTree(cmd *cobra.Command, args []string) error {
	d, err := sai.OpenFile(treeFile, sai.OpenOptions{})
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Walk(func(path string, e vfs.Entry) error {
		depth := strings.Count(path, "/") - 1
		indent := strings.Repeat("  ", depth)
		if e.IsFolder() {
			fmt.Printf("%10s d %s %s%s/\n", "", e.Timestamp.Format("2006-01-02"), indent, e.Name)
		} else {
			fmt.Printf("%10d f %s %s%s\n", e.Size, e.Timestamp.Format("2006-01-02"), indent, e.Name)
		}
		return nil
	})
}
