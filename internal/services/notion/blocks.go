package notion

import (
	"context"
	"slices"
	"strings"

	"github.com/ternarybob/arbor"
)

// DefaultMaxDepth bounds recursion into nested blocks
const DefaultMaxDepth = 3

// BlockSource lists a block's children
type BlockSource interface {
	AllBlockChildren(ctx context.Context, blockID string) ([]Block, error)
}

// blockFrame is one pending block on the flatten worklist
type blockFrame struct {
	block Block
	depth int
}

// FlattenPage renders a page's block tree as plain text, depth-first in
// document order. Blocks deeper than maxDepth are skipped. A failed child
// listing drops only that subtree.
func FlattenPage(ctx context.Context, source BlockSource, pageID string, maxDepth int, logger arbor.ILogger) string {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	roots, err := source.AllBlockChildren(ctx, pageID)
	if err != nil {
		logger.Warn().Err(err).Str("page_id", pageID).Msg("Failed to read page blocks")
	}

	var stack []blockFrame
	push := func(blocks []Block, depth int) {
		// Reverse so the first child is popped first
		for _, block := range slices.Backward(blocks) {
			stack = append(stack, blockFrame{block: block, depth: depth})
		}
	}
	push(roots, 0)

	var lines []string
	for len(stack) > 0 {
		if ctx.Err() != nil {
			break
		}

		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if line := renderBlock(frame.block); line != "" {
			lines = append(lines, strings.Repeat("  ", frame.depth)+line)
		}

		if !frame.block.HasChildren || frame.depth+1 >= maxDepth || isChildReference(frame.block) {
			continue
		}
		children, err := source.AllBlockChildren(ctx, frame.block.ID)
		if err != nil {
			logger.Warn().Err(err).Str("block_id", frame.block.ID).Msg("Failed to read nested blocks")
		}
		push(children, frame.depth+1)
	}

	return strings.Join(lines, "\n")
}

// isChildReference marks blocks whose children live in another page
func isChildReference(block Block) bool {
	return block.Type == "child_page" || block.Type == "child_database"
}

// renderBlock renders one block with its type-specific prefix
func renderBlock(block Block) string {
	switch block.Type {
	case "paragraph":
		return textOf(block.Paragraph)
	case "heading_1":
		return prefixed("# ", block.Heading1)
	case "heading_2":
		return prefixed("## ", block.Heading2)
	case "heading_3":
		return prefixed("### ", block.Heading3)
	case "bulleted_list_item":
		return prefixed("- ", block.BulletedListItem)
	case "numbered_list_item":
		return prefixed("1. ", block.NumberedListItem)
	case "to_do":
		if block.ToDo == nil {
			return ""
		}
		box := "[ ] "
		if block.ToDo.Checked {
			box = "[x] "
		}
		return prefixed(box, block.ToDo)
	case "toggle":
		return prefixed("> ", block.Toggle)
	case "quote":
		return prefixed("> ", block.Quote)
	case "callout":
		return prefixed("> ", block.Callout)
	case "code":
		if text := textOf(block.Code); text != "" {
			return "```" + block.Code.Language + "\n" + text + "\n```"
		}
		return ""
	case "child_page":
		if block.ChildPage != nil {
			return "[Page] " + block.ChildPage.Title
		}
	case "child_database":
		if block.ChildDatabase != nil {
			return "[Database] " + block.ChildDatabase.Title
		}
	}
	return ""
}

func textOf(block *TextBlock) string {
	if block == nil {
		return ""
	}
	return plainText(block.RichText)
}

func prefixed(prefix string, block *TextBlock) string {
	text := textOf(block)
	if text == "" {
		return ""
	}
	return prefix + text
}
