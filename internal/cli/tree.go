package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/loadgic/loadgic/internal/fileutil"
	"github.com/loadgic/loadgic/internal/workspace"
	"github.com/spf13/cobra"
)

// RunTree prints the project tree, directories first.
func RunTree(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	tree, err := workspace.ReadTree(path)
	if err != nil {
		return fmt.Errorf("failed to read tree: %w", err)
	}
	if asJSON {
		return fileutil.PrintJSON(tree)
	}

	fmt.Printf("%s/\n", tree.Name)
	printTreeChildren(tree.Children, "")
	return nil
}

func printTreeChildren(nodes []workspace.Node, prefix string) {
	for i, node := range nodes {
		branch, next := "├── ", "│   "
		if i == len(nodes)-1 {
			branch, next = "└── ", "    "
		}
		name := node.Name
		if node.Type == workspace.NodeDir {
			name += "/"
		}
		fmt.Printf("%s%s%s\n", prefix, branch, name)
		if node.Type == workspace.NodeDir {
			printTreeChildren(node.Children, prefix+next)
		}
	}
}

// RunCat prints a project file through the same checks the editor view
// applies: paths outside the root are refused and binary files are
// described instead of dumped.
func RunCat(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	root, err := resolveProjectRoot(cmd)
	if err != nil {
		return err
	}
	path := args[0]
	if !filepath.IsAbs(path) {
		cwd, err := resolveWorkingDirectory()
		if err != nil {
			return err
		}
		path = filepath.Join(cwd, path)
	}

	content, err := workspace.SafeRead(root, path)
	if err != nil {
		return err
	}
	if asJSON {
		return fileutil.PrintJSON(content)
	}

	switch content.Kind {
	case workspace.ContentText:
		fmt.Print(fileutil.EnsureTrailingNewline(content.Text))
	case workspace.ContentImage:
		fmt.Printf("image: %s (%d bytes, data url of %d chars)\n", content.MIME, content.Size, len(content.DataURL))
	default:
		fmt.Printf("unsupported: %s (%d bytes)\n", strings.TrimSpace(content.Reason), content.Size)
	}
	return nil
}
