package core

// CategoryAmount represents an amount aggregated by category id.
type CategoryAmount struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	Cents      int64  `json:"cents"`
}

// UnknownAccountName and UncategorizedName label dangling references left behind by deletions.
const (
	UnknownAccountName = "Unknown"
	UncategorizedName  = "Uncategorized"
)

// CategoryName resolves a category id against the user's categories.
func CategoryName(categories []Category, id string) string {
	for _, c := range categories {
		if c.ID == id {
			return c.Name
		}
	}
	return UncategorizedName
}

// AccountName resolves an account id against the user's accounts.
func AccountName(accounts []Account, id string) string {
	for _, a := range accounts {
		if a.ID == id {
			return a.Name
		}
	}
	return UnknownAccountName
}
