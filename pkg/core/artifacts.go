package core

// Attachment represents a debug artifact captured for a scenario
type Attachment struct {
	Name        string `json:"name"`        // Descriptive name: screenshot, page_source
	ContentType string `json:"contentType"` // MIME type
	Path        string `json:"path"`        // File path relative to output directory
	Body        []byte `json:"-"`           // In-memory content (not serialized to JSON)
}

// Common attachment names
const (
	AttachmentScreenshot = "screenshot"
	AttachmentPageSource = "page_source"
)

// Common content types
const (
	ContentTypePNG = "image/png"
	ContentTypeXML = "application/xml"
)

// NewScreenshotAttachment creates a screenshot attachment
func NewScreenshotAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentScreenshot,
		ContentType: ContentTypePNG,
		Path:        path,
		Body:        data,
	}
}

// NewPageSourceAttachment creates a UI hierarchy attachment from Appium page source
func NewPageSourceAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentPageSource,
		ContentType: ContentTypeXML,
		Path:        path,
		Body:        data,
	}
}

// ArtifactCollector captures debug artifacts from a live session
type ArtifactCollector interface {
	Screenshot() ([]byte, error)
	Source() (string, error)
}
