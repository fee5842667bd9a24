package domain

// OgMeta is the social-preview metadata extracted from an article page.
// All fields are nil when the page had no usable tags or could not be
// fetched; absence is not an error.
type OgMeta struct {
	ImageURL    *string `json:"imageUrl"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (m OgMeta) IsZero() bool {
	return m.ImageURL == nil && m.Title == nil && m.Description == nil
}
