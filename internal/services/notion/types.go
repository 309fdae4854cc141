package notion

import (
	"strings"
	"time"
)

type searchRequest struct {
	Query    string      `json:"query"`
	PageSize int         `json:"page_size"`
	Sort     *searchSort `json:"sort,omitempty"`
}

type searchSort struct {
	Direction string `json:"direction"`
	Timestamp string `json:"timestamp"`
}

type searchResponse struct {
	Results    []Page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// RichText is one run of formatted text
type RichText struct {
	PlainText string `json:"plain_text"`
}

// Property is a page property; only title-like fields are read
type Property struct {
	Type     string     `json:"type"`
	Title    []RichText `json:"title,omitempty"`
	RichText []RichText `json:"rich_text,omitempty"`
}

// Page is a search result: a page or a database
type Page struct {
	Object         string              `json:"object"`
	ID             string              `json:"id"`
	URL            string              `json:"url"`
	LastEditedTime *time.Time          `json:"last_edited_time,omitempty"`
	Properties     map[string]Property `json:"properties"`
	Title          []RichText          `json:"title,omitempty"` // databases only
}

// BlockList is one page of block children
type BlockList struct {
	Results    []Block `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor string  `json:"next_cursor"`
}

// TextBlock is the payload shared by text-bearing block types
type TextBlock struct {
	RichText []RichText `json:"rich_text"`
	Checked  bool       `json:"checked,omitempty"`
	Language string     `json:"language,omitempty"`
}

// ChildRef is the payload of child_page and child_database blocks
type ChildRef struct {
	Title string `json:"title"`
}

// Block is one content block
type Block struct {
	ID               string     `json:"id"`
	Type             string     `json:"type"`
	HasChildren      bool       `json:"has_children"`
	Paragraph        *TextBlock `json:"paragraph,omitempty"`
	Heading1         *TextBlock `json:"heading_1,omitempty"`
	Heading2         *TextBlock `json:"heading_2,omitempty"`
	Heading3         *TextBlock `json:"heading_3,omitempty"`
	BulletedListItem *TextBlock `json:"bulleted_list_item,omitempty"`
	NumberedListItem *TextBlock `json:"numbered_list_item,omitempty"`
	ToDo             *TextBlock `json:"to_do,omitempty"`
	Toggle           *TextBlock `json:"toggle,omitempty"`
	Quote            *TextBlock `json:"quote,omitempty"`
	Callout          *TextBlock `json:"callout,omitempty"`
	Code             *TextBlock `json:"code,omitempty"`
	ChildPage        *ChildRef  `json:"child_page,omitempty"`
	ChildDatabase    *ChildRef  `json:"child_database,omitempty"`
}

// Document is a flattened page ready for a prompt
type Document struct {
	ID         string
	Title      string
	URL        string
	LastEdited *time.Time
	Content    string
}

func plainText(runs []RichText) string {
	var b strings.Builder
	for _, run := range runs {
		b.WriteString(run.PlainText)
	}
	return strings.TrimSpace(b.String())
}
