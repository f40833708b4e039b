// internal/models/image.go
package models

// Image description styles and moods offered to the description tool call.
var (
	ImageStyles = []string{"realistic", "artistic", "cinematic", "documentary"}
	ImageMoods  = []string{"dramatic", "solemn", "tense", "hopeful", "melancholic"}
)

// ImageDescription is the parsed output of the function-calling step.
type ImageDescription struct {
	DetailedPrompt string `json:"detailed_prompt"`
	Style          string `json:"style"`
	Mood           string `json:"mood"`
}

// ImageResult is the outcome of one image generation attempt. Exactly one of
// the success/failure halves is populated.
type ImageResult struct {
	Success bool `json:"success"`

	ImageURL          string `json:"image_url,omitempty"`
	LocalPath         string `json:"local_path,omitempty"`
	Filename          string `json:"filename,omitempty"`
	IsSafeAlternative bool   `json:"is_safe_alternative,omitempty"`

	Error             string `json:"error,omitempty"`
	Type              string `json:"type,omitempty"`
	CanRegenerateSafe bool   `json:"can_regenerate_safe,omitempty"`
	TechnicalError    string `json:"technical_error,omitempty"`
}
