package classify

import "fmt"

// Category is the sentiment of a tweet towards man-made climate change.
type Category int

const (
	Neutral Category = iota
	Pro
	News
	Anti
)

var AllCategories = []Category{Neutral, Pro, News, Anti}

var categoryInfo = map[Category]struct {
	name        string
	description string
}{
	Neutral: {"Neutral", "The tweet neither supports nor refutes the belief of man-made climate change"},
	Pro:     {"Pro", "The tweet supports the belief of man-made climate change"},
	News:    {"News", "The tweet links to factual news about climate change"},
	Anti:    {"Anti", "The tweet does not believe in man-made climate change"},
}

// CategoryFromClass maps a classifier class id onto a category. Only ids
// 0 through 3 are defined; anything else is ErrUnknownClass.
func CategoryFromClass(id int) (Category, error) {
	c := Category(id)
	if _, ok := categoryInfo[c]; !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownClass, id)
	}
	return c, nil
}

func (c Category) String() string {
	if info, ok := categoryInfo[c]; ok {
		return info.name
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

func (c Category) Description() string {
	return categoryInfo[c].description
}

// Message is the line shown to the user after a successful prediction.
func (c Category) Message() string {
	return fmt.Sprintf("Text Categorized as: %q. %s", c.String(), c.Description())
}

func (c Category) MarshalText() ([]byte, error) {
	if _, ok := categoryInfo[c]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownClass, int(c))
	}
	return []byte(c.String()), nil
}
