package entity

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
)

type ContentBlock struct {
	Type     ContentType
	Text     string
	ImageURL string
}

type Message struct {
	Role          MessageRole
	Content       string
	ContentBlocks []ContentBlock
}

// HasImages reports whether the message must be sent as multi-part content.
func (m Message) HasImages() bool {
	for _, b := range m.ContentBlocks {
		if b.Type == ContentTypeImage {
			return true
		}
	}
	return false
}

func TextMessage(role MessageRole, text string) Message {
	return Message{Role: role, Content: text}
}

// VisionMessage attaches a screenshot to a user prompt. A nil screenshot
// yields a plain text message.
func VisionMessage(text string, shot *Screenshot) Message {
	msg := Message{Role: RoleUser, Content: text}
	if url := shot.DataURL(); url != "" {
		msg.ContentBlocks = []ContentBlock{
			{Type: ContentTypeText, Text: text},
			{Type: ContentTypeImage, ImageURL: url},
		}
	}
	return msg
}
