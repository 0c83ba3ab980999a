package genaisvc

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/etudier/etudier/core"
)

type fakeModels struct {
	answer string
	err    error

	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(
	_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: string(genai.RoleModel), Parts: []*genai.Part{{Text: f.answer}}},
		}},
	}, nil
}

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("shutdown tracer provider: %v", err)
		}
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func attributesToMap(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func TestGemini_GenerateJSON(t *testing.T) {
	exporter := setupTestTracer(t)
	models := &fakeModels{answer: `{"title":"Go"}`}
	g := &Gemini{models: models, model: "gemini-test"}

	text, err := g.GenerateJSON(context.Background(), core.TextPart("instruction"), core.TextPart("prompt"))
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Go"}`, text)

	assert.Equal(t, "gemini-test", models.model)
	require.NotNil(t, models.config)
	assert.Equal(t, "application/json", models.config.ResponseMIMEType)
	require.Len(t, models.contents, 1)
	assert.Equal(t, string(genai.RoleUser), models.contents[0].Role)
	require.Len(t, models.contents[0].Parts, 2)
	assert.Equal(t, "prompt", models.contents[0].Parts[1].Text)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, spanName, spans[0].Name)
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	attrs := attributesToMap(spans[0].Attributes)
	assert.Equal(t, "gemini-test", attrs["genai.model"])
	assert.Equal(t, true, attrs["genai.json"])
	assert.Equal(t, int64(14), attrs["genai.response_length"])
}

func TestGemini_GenerateInlineData(t *testing.T) {
	exporter := setupTestTracer(t)
	models := &fakeModels{answer: "# Summary"}
	g := &Gemini{models: models, model: "gemini-test"}

	pdf := []byte("%PDF-1.4 ...")
	text, err := g.Generate(context.Background(), core.BlobPart(pdf, "application/pdf"), core.TextPart("Summarize this document"))
	require.NoError(t, err)
	assert.Equal(t, "# Summary", text)
	assert.Nil(t, models.config)

	part := models.contents[0].Parts[0]
	require.NotNil(t, part.InlineData)
	assert.Equal(t, "application/pdf", part.InlineData.MIMEType)
	assert.Equal(t, pdf, part.InlineData.Data)

	attrs := attributesToMap(exporter.GetSpans()[0].Attributes)
	assert.Equal(t, int64(len(pdf)), attrs["genai.inline_bytes"])
}

func TestGemini_Error(t *testing.T) {
	exporter := setupTestTracer(t)
	g := &Gemini{models: &fakeModels{err: errors.New("quota exceeded")}, model: "gemini-test"}

	_, err := g.Generate(context.Background(), core.TextPart("prompt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.NotEmpty(t, spans[0].Events, "the error should be recorded on the span")
}

func TestNewGemini_NoAPIKey(t *testing.T) {
	_, err := NewGemini(context.Background(), &core.Config{})
	assert.Equal(t, ErrNoAPIKey, err)
}
