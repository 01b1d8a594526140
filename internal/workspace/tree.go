package workspace

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// NodeType distinguishes files from directories in a tree.
type NodeType string

const (
	NodeDir  NodeType = "dir"
	NodeFile NodeType = "file"
)

// Node is one entry of the project tree.
type Node struct {
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	Type     NodeType `json:"type"`
	Children []Node   `json:"children,omitempty"`
}

var treeExcluded = map[string]bool{
	".git":         true,
	"node_modules": true,
	".cstore":      true,
}

// ReadTree lists root recursively. Each level has directories before files,
// then names in case-insensitive order. Unreadable directories are listed
// without children.
func ReadTree(root string) (Node, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Node{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Node{}, err
	}
	if !info.IsDir() {
		return Node{}, &os.PathError{Op: "readtree", Path: abs, Err: errNotDir}
	}
	return Node{Name: filepath.Base(abs), Path: abs, Type: NodeDir, Children: walkTree(abs)}, nil
}

func walkTree(dir string) []Node {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	nodes := make([]Node, 0, len(entries))
	for _, entry := range entries {
		if treeExcluded[entry.Name()] {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			nodes = append(nodes, Node{Name: entry.Name(), Path: path, Type: NodeDir, Children: walkTree(path)})
			continue
		}
		nodes = append(nodes, Node{Name: entry.Name(), Path: path, Type: NodeFile})
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.Type != b.Type {
			return a.Type == NodeDir
		}
		la, lb := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if la != lb {
			return la < lb
		}
		return a.Name < b.Name
	})
	return nodes
}

// Files returns the paths of every file below n in tree order.
func (n Node) Files() []string {
	var out []string
	var visit func(Node)
	visit = func(node Node) {
		if node.Type == NodeFile {
			out = append(out, node.Path)
			return
		}
		for _, child := range node.Children {
			visit(child)
		}
	}
	visit(n)
	return out
}
