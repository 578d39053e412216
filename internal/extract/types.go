package extract

// ExtractedItem is one structured record pulled from a page
type ExtractedItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date,omitempty"`
	Rating      string `json:"rating,omitempty"`
	Image       string `json:"image,omitempty"`
}

// Empty reports whether the item carries no text worth returning
func (i ExtractedItem) Empty() bool {
	return i.Title == "" && i.Description == ""
}

// FieldSelectorMap maps item fields to CSS selectors. Root identifies each
// repeating item container; the other selectors are resolved inside it.
// Every field is optional. Values come from callers and are untrusted.
type FieldSelectorMap struct {
	Root        string `json:"root,omitempty" yaml:"root"`
	Title       string `json:"title,omitempty" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description"`
	Date        string `json:"date,omitempty" yaml:"date"`
	Rating      string `json:"rating,omitempty" yaml:"rating"`
	Image       string `json:"image,omitempty" yaml:"image"`
}

// IsZero reports whether no selector at all was supplied
func (m FieldSelectorMap) IsZero() bool {
	return m == FieldSelectorMap{}
}

// FieldRule reads one value from the first element matching Selector.
// With Attr set the attribute is read instead of the text.
type FieldRule struct {
	Selector string `json:"selector" yaml:"selector"`
	Attr     string `json:"attr,omitempty" yaml:"attr,omitempty"`
}
