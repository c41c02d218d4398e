package llm

// ModelListing is the public description of one supported model.
type ModelListing struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Default     bool   `json:"default,omitempty"`
}

// Listing is the read-only configuration exposed to clients for discovery.
type Listing struct {
	AvailableModels   []ModelListing `json:"available_models"`
	AcceptedMimeTypes []string       `json:"accepted_mimetypes"`
	MaxFileSizeMB     int            `json:"max_file_size_mb"`
	MaxConcurrency    int            `json:"max_concurrency"`
	// MaxChunks of zero means documents are never truncated.
	MaxChunks int `json:"max_chunks"`
}

// Limits are the operational limits reported in a Listing.
type Limits struct {
	AcceptedMimeTypes []string
	MaxFileSizeMB     int
	MaxConcurrency    int
	MaxChunks         int
}

// NewListing describes reg and limits.
func NewListing(reg *Registry, limits Limits) Listing {
	models := reg.Models()
	listing := Listing{
		AvailableModels:   make([]ModelListing, len(models)),
		AcceptedMimeTypes: append([]string(nil), limits.AcceptedMimeTypes...),
		MaxFileSizeMB:     limits.MaxFileSizeMB,
		MaxConcurrency:    limits.MaxConcurrency,
		MaxChunks:         limits.MaxChunks,
	}
	for i, m := range models {
		listing.AvailableModels[i] = ModelListing{Name: m.Name, Description: m.Description, Default: m.Default}
	}
	if listing.MaxChunks < 0 {
		listing.MaxChunks = 0
	}
	return listing
}
