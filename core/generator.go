package core

import "context"

// Part is one piece of a generation request: either text or inline bytes.
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

func TextPart(text string) Part { return Part{Text: text} }

func BlobPart(data []byte, mimeType string) Part { return Part{Data: data, MIMEType: mimeType} }

// Generator is any generative language model able to answer a prompt with text.
type Generator interface {
	Generate(ctx context.Context, parts ...Part) (string, error)
}

// JSONGenerator is implemented by generators able to constrain their output to JSON.
type JSONGenerator interface {
	Generator
	GenerateJSON(ctx context.Context, parts ...Part) (string, error)
}
