package googlebooks

// Identifier types used in volumeInfo.industryIdentifiers
const (
	IdentifierISBN10 = "ISBN_10"
	IdentifierISBN13 = "ISBN_13"
)

// SearchResponse is the top-level payload of GET /volumes
type SearchResponse struct {
	Kind       string   `json:"kind"`
	TotalItems int      `json:"totalItems"`
	Items      []Volume `json:"items"`
}

// Volume is a single search result
type Volume struct {
	ID         string     `json:"id"`
	VolumeInfo VolumeInfo `json:"volumeInfo"`
}

// VolumeInfo holds the bibliographic fields of a volume
type VolumeInfo struct {
	Title               string               `json:"title"`
	Subtitle            string               `json:"subtitle,omitempty"`
	Authors             []string             `json:"authors,omitempty"`
	Publisher           string               `json:"publisher,omitempty"`
	PublishedDate       string               `json:"publishedDate,omitempty"`
	IndustryIdentifiers []IndustryIdentifier `json:"industryIdentifiers,omitempty"`
	Language            string               `json:"language,omitempty"`
}

// IndustryIdentifier is a type-tagged identifier such as ISBN_10 or ISBN_13
type IndustryIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

// Identifier returns the first identifier of the given type
func (v VolumeInfo) Identifier(idType string) (string, bool) {
	for _, id := range v.IndustryIdentifiers {
		if id.Type == idType && id.Identifier != "" {
			return id.Identifier, true
		}
	}
	return "", false
}

// Metadata is the resolved identity of a book used to build the buyback URL
type Metadata struct {
	Title  string `json:"title"`
	ISBN13 string `json:"isbn13"`
	Year   string `json:"year"`
}
