package tasks

import (
	"encoding/json"
	"fmt"
)

const (
	ChatCompletionsURL = "/v1/chat/completions"
	jsonObjectFormat   = "json_object"
)

// Task is one line of the batch submission artifact. It carries the complete
// chat-completion request body so the provider can execute it without any
// further context.
type Task struct {
	CustomID string  `json:"custom_id"`
	Method   string  `json:"method"`
	URL      string  `json:"url"`
	Body     Request `json:"body"`
}

type Request struct {
	Model          string         `json:"model"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat ResponseFormat `json:"response_format"`
	Messages       []Message      `json:"messages"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// Message content is either plain text or a list of parts. On the wire plain
// text is a JSON string and parts are a JSON array.
type Message struct {
	Role  string
	Text  string
	Parts []ContentPart
}

type wireMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	var (
		content []byte
		err     error
	)
	if m.Parts != nil {
		content, err = json.Marshal(m.Parts)
	} else {
		content, err = json.Marshal(m.Text)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireMessage{Role: m.Role, Content: content})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.Role = w.Role
	m.Text = ""
	m.Parts = nil

	if len(w.Content) == 0 || string(w.Content) == "null" {
		return nil
	}
	if w.Content[0] == '"' {
		return json.Unmarshal(w.Content, &m.Text)
	}
	if err := json.Unmarshal(w.Content, &m.Parts); err != nil {
		return fmt.Errorf("invalid content for %s message: %w", w.Role, err)
	}
	return nil
}

// SystemPrompt returns the text of the first system message.
func (t Task) SystemPrompt() string {
	for _, m := range t.Body.Messages {
		if m.Role == "system" {
			return m.Text
		}
	}
	return ""
}

// UserContent returns the instruction text and image url of the first user message.
func (t Task) UserContent() (text string, imageURL string) {
	for _, m := range t.Body.Messages {
		if m.Role != "user" {
			continue
		}
		if m.Parts == nil {
			return m.Text, ""
		}
		for _, p := range m.Parts {
			switch p.Type {
			case "text":
				text = p.Text
			case "image_url":
				if p.ImageURL != nil {
					imageURL = p.ImageURL.URL
				}
			}
		}
		return text, imageURL
	}
	return "", ""
}
