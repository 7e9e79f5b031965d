package library

// CatalogMatch is an accepted catalog entry for a candidate name.
type CatalogMatch struct {
	Name          string  `json:"name" yaml:"name"`
	Filename      string  `json:"filename,omitempty" yaml:"filename,omitempty"`
	LatestVersion string  `json:"latest_version" yaml:"latest_version"`
	LatestURL     string  `json:"latest_url" yaml:"latest_url"`
	Homepage      string  `json:"homepage,omitempty" yaml:"homepage,omitempty"`
	License       string  `json:"license,omitempty" yaml:"license,omitempty"`
	Similarity    float64 `json:"similarity" yaml:"similarity"`
}

// Reference is a downloaded reference artifact for a claimed version.
type Reference struct {
	URL     string
	Content []byte
}
