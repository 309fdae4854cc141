package notion

import "sort"

// UntitledPage is used when no strategy yields a title
const UntitledPage = "Untitled"

// TitleStrategy extracts a title from a page, returning "" when it does not apply
type TitleStrategy func(page *Page) string

// propertyTitle reads a named property, title- or rich-text-typed
func propertyTitle(name string) TitleStrategy {
	return func(page *Page) string {
		prop, ok := page.Properties[name]
		if !ok {
			return ""
		}
		if text := plainText(prop.Title); text != "" {
			return text
		}
		return plainText(prop.RichText)
	}
}

// anyTitleProperty finds whichever property has type "title". Keys are
// visited in sorted order so the result is deterministic.
func anyTitleProperty(page *Page) string {
	keys := make([]string, 0, len(page.Properties))
	for key := range page.Properties {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		prop := page.Properties[key]
		if prop.Type == "title" {
			if text := plainText(prop.Title); text != "" {
				return text
			}
		}
	}
	return ""
}

// databaseTitle reads the top-level title of database objects
func databaseTitle(page *Page) string {
	return plainText(page.Title)
}

// TitleStrategies is the ordered list tried by ExtractTitle
var TitleStrategies = []TitleStrategy{
	propertyTitle("title"),
	propertyTitle("Name"),
	propertyTitle("Title"),
	propertyTitle("名称"),
	propertyTitle("标题"),
	anyTitleProperty,
	databaseTitle,
}

// ExtractTitle returns the first non-empty result of TitleStrategies
func ExtractTitle(page *Page) string {
	for _, strategy := range TitleStrategies {
		if title := strategy(page); title != "" {
			return title
		}
	}
	return UntitledPage
}
