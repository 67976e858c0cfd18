package domain

// Download is a composite packaged for the platform's file-save mechanism.
type Download struct {
	FileName    string
	ContentType string
	PNG         []byte
}

// SharePackage is a composite packaged for the platform's native share sheet.
// When Native is false the host should open FallbackURL and leave the image for
// the user to share out-of-band.
type SharePackage struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Text        string `json:"text"`
	FallbackURL string `json:"fallback_url"`
	Native      bool   `json:"native"`
	PNG         []byte `json:"-"`
}
