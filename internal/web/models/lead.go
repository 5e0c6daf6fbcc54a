package models

// Lead is a prospect generated or entered for one campaign
type Lead struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Title   string `json:"title"`
}

// Complete reports whether every field a user must fill is set
func (l Lead) Complete() bool {
	return l.Name != "" && l.Email != "" && l.Company != "" && l.Title != ""
}
