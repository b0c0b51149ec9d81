package entity

import "encoding/base64"

const PageTypeUnknown = "unknown"

// PageState is the interpreter's description of the page at one iteration.
type PageState struct {
	PageType    string `json:"pageType"`
	Description string `json:"description,omitempty"`
}

func (s PageState) Label() string {
	if s.PageType == "" {
		return PageTypeUnknown
	}
	return s.PageType
}

type HTMLFragment struct {
	FrameID int    `json:"frameId"`
	Index   int    `json:"index"`
	Content string `json:"content"`
	Text    string `json:"text,omitempty"`
}

type Screenshot struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// DataURL returns the screenshot in the form accepted by vision models.
func (s *Screenshot) DataURL() string {
	if s == nil || len(s.Data) == 0 {
		return ""
	}
	format := s.Format
	if format == "" {
		format = "jpeg"
	}
	return "data:image/" + format + ";base64," + base64.StdEncoding.EncodeToString(s.Data)
}
