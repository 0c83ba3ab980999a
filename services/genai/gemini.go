// Package genaisvc implements core.Generator on the Gemini API.
package genaisvc

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/etudier/etudier/core"
)

const (
	tracerName   = "github.com/etudier/etudier/services/genai"
	spanName     = "genai.GenerateContent"
	jsonMIMEType = "application/json"
)

var ErrNoAPIKey = errors.New("genai: missing API key")

// contentGenerator is the part of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

type Gemini struct {
	models contentGenerator
	model  string
}

var _ core.JSONGenerator = (*Gemini)(nil)

func NewGemini(ctx context.Context, conf *core.Config) (*Gemini, error) {
	if conf.GenAI.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  conf.GenAI.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating genai client")
	}
	return &Gemini{models: client.Models, model: conf.GenAI.Model}, nil
}

func (g *Gemini) Generate(ctx context.Context, parts ...core.Part) (string, error) {
	return g.generate(ctx, nil, parts)
}

// GenerateJSON asks the model to answer with JSON only.
func (g *Gemini) GenerateJSON(ctx context.Context, parts ...core.Part) (string, error) {
	return g.generate(ctx, &genai.GenerateContentConfig{ResponseMIMEType: jsonMIMEType}, parts)
}

func (g *Gemini) generate(ctx context.Context, config *genai.GenerateContentConfig, parts []core.Part) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var inlineBytes int
	gParts := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.Data != nil {
			inlineBytes += len(p.Data)
			gParts = append(gParts, genai.NewPartFromBytes(p.Data, p.MIMEType))
			continue
		}
		gParts = append(gParts, genai.NewPartFromText(p.Text))
	}
	span.SetAttributes(
		attribute.String("genai.model", g.model),
		attribute.Int("genai.parts", len(gParts)),
		attribute.Int("genai.inline_bytes", inlineBytes),
		attribute.Bool("genai.json", config != nil),
	)

	contents := []*genai.Content{genai.NewContentFromParts(gParts, genai.RoleUser)}
	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate content failed")
		return "", errors.Wrap(err, "generating content")
	}

	text := resp.Text()
	span.SetAttributes(attribute.Int("genai.response_length", len(text)))
	span.SetStatus(codes.Ok, "")
	return text, nil
}
