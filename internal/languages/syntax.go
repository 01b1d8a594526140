package languages

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

const maxSyntaxIssues = 20

// SyntaxIssue is one ERROR or MISSING node found while parsing source.
type SyntaxIssue struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

func (i SyntaxIssue) String() string {
	return fmt.Sprintf("%d:%d: %s", i.Line, i.Column, i.Message)
}

func (l Language) grammar() *sitter.Language {
	switch l {
	case JavaScript:
		return javascript.GetLanguage()
	case TypeScript:
		return typescript.GetLanguage()
	case Python:
		return python.GetLanguage()
	case Shell:
		return bash.GetLanguage()
	case Go:
		return golang.GetLanguage()
	case Rust:
		return rust.GetLanguage()
	default:
		return nil
	}
}

// CheckSyntax parses src with the tree-sitter grammar for l and reports the
// error nodes it contains. An empty result means the text parsed cleanly;
// it does not prove the program compiles.
func CheckSyntax(ctx context.Context, l Language, src []byte) ([]SyntaxIssue, error) {
	grammar := l.grammar()
	if grammar == nil {
		return nil, fmt.Errorf("%w: no grammar for %s", ErrUnsupported, l)
	}

	p := sitter.NewParser()
	p.SetLanguage(grammar)
	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s source: %w", l, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil, nil
	}
	issues := make([]SyntaxIssue, 0)
	collectIssues(root, src, &issues, 0)
	return issues, nil
}

func collectIssues(node *sitter.Node, src []byte, issues *[]SyntaxIssue, depth int) {
	if node == nil || depth > 1000 || len(*issues) >= maxSyntaxIssues {
		return
	}
	if node.IsError() || node.IsMissing() {
		point := node.StartPoint()
		msg := "syntax error"
		if node.IsMissing() {
			msg = fmt.Sprintf("missing %s", node.Type())
		} else if text := node.Content(src); text != "" && len(text) <= 40 {
			msg = fmt.Sprintf("unexpected %q", text)
		}
		*issues = append(*issues, SyntaxIssue{
			Line:    int(point.Row) + 1,
			Column:  int(point.Column) + 1,
			Message: msg,
		})
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		collectIssues(node.Child(i), src, issues, depth+1)
	}
}
