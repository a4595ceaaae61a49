package types

// ErrorResponse is the body returned for every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// GenerateResult is the body returned by /generate-manifest when save=1.
type GenerateResult struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	ItemCount int    `json:"itemCount"`
}

// FoldersResponse lists the folders a key is allowed to request.
type FoldersResponse struct {
	Folders []string `json:"folders"`
	Count   int      `json:"count"`
}
