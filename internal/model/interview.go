package model

// Project is the owning container for interviews.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Interview is one survey instrument within a project.
type Interview struct {
	ID              string   `json:"id"`
	ProjectID       string   `json:"project_id"`
	Title           string   `json:"title"`
	PrimaryLanguage string   `json:"primary_language"`
	Languages       []string `json:"languages,omitempty"`
}
