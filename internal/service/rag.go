package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sabia-ai/sabia/internal/domain"
	"github.com/sabia-ai/sabia/internal/telemetry"
)

// ConfidenceAggregation selects how cited-source similarities collapse into
// one confidence score.
type ConfidenceAggregation string

const (
	ConfidenceMean ConfidenceAggregation = "mean"
	ConfidenceTop1 ConfidenceAggregation = "top1"
)

// EmptyConfidenceFloor is returned when retrieval finds nothing relevant,
// so "no information" always reads as low confidence.
const EmptyConfidenceFloor = 0.05

// RetrieverInterface defines the retrieval dependency of the synthesizer.
type RetrieverInterface interface {
	Retrieve(ctx context.Context, input RetrieveInput) ([]*domain.SearchResult, error)
}

// RagConfig controls answer synthesis.
type RagConfig struct {
	Aggregation ConfidenceAggregation
}

// RagService synthesizes persona-aware, source-attributed answers from
// retrieved passages. A request moves through embedding, retrieving and
// synthesizing stages; failures in each are surfaced distinctly.
type RagService struct {
	retriever  RetrieverInterface
	completion CompletionClient
	cfg        RagConfig
}

// NewRagService creates a new RagService instance
func NewRagService(retriever RetrieverInterface, completion CompletionClient) *RagService {
	return NewRagServiceWithConfig(retriever, completion, RagConfig{Aggregation: ConfidenceMean})
}

// NewRagServiceWithConfig creates a new RagService with explicit configuration.
func NewRagServiceWithConfig(retriever RetrieverInterface, completion CompletionClient, cfg RagConfig) *RagService {
	if cfg.Aggregation != ConfidenceTop1 {
		cfg.Aggregation = ConfidenceMean
	}
	return &RagService{
		retriever:  retriever,
		completion: completion,
		cfg:        cfg,
	}
}

// GenerateInput represents one answer request.
type GenerateInput struct {
	Query      string
	Persona    domain.Persona
	Filters    SearchFilters
	MaxResults int
	Threshold  float64
}

// Generate answers a query from the knowledge base. An unknown persona is
// rejected before any retrieval work. When the completion model fails after
// retries, the caller still receives a well-formed degraded response with
// confidence zero rather than an error.
func (s *RagService) Generate(ctx context.Context, input GenerateInput) (*domain.RagResponse, error) {
	persona := input.Persona
	if persona == "" {
		persona = domain.PersonaGeral
	}
	if !domain.IsValidPersona(persona) {
		return nil, domain.ErrInvalidPersona
	}

	ctx, span := telemetry.StartSpan(ctx, "RagService.Generate", telemetry.SpanAttributes{
		Persona:   string(persona),
		Operation: "generate",
	})
	defer span.End()

	if strings.TrimSpace(input.Query) == "" {
		return nil, domain.ErrEmptyQuery
	}

	telemetry.AddBreadcrumb(ctx, "rag", "retrieving")
	results, err := s.retriever.Retrieve(ctx, RetrieveInput{
		Query:      input.Query,
		Filters:    input.Filters,
		MaxResults: input.MaxResults,
		Threshold:  input.Threshold,
	})
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	if len(results) == 0 {
		return &domain.RagResponse{
			Answer:     insufficientAnswer(persona),
			Confidence: EmptyConfidenceFloor,
			Sources:    []*domain.SearchResult{},
			Persona:    persona,
		}, nil
	}

	telemetry.AddBreadcrumb(ctx, "rag", "synthesizing")
	answer, err := s.completion.GenerateCompletion(ctx, personaPrompt(persona), buildUserPrompt(input.Query, results))
	if err != nil {
		// Retries are exhausted inside the completion client; degrade
		// instead of failing the whole request.
		telemetry.CaptureError(ctx, fmt.Errorf("synthesis failed: %w", err))
		return &domain.RagResponse{
			Answer:     degradedAnswer(),
			Confidence: 0,
			Sources:    []*domain.SearchResult{},
			Persona:    persona,
		}, nil
	}

	return &domain.RagResponse{
		Answer:     answer,
		Confidence: s.confidence(results),
		Sources:    results,
		Persona:    persona,
	}, nil
}

// confidence collapses the similarities of cited sources into [0,1].
func (s *RagService) confidence(results []*domain.SearchResult) float64 {
	if len(results) == 0 {
		return EmptyConfidenceFloor
	}

	var value float64
	switch s.cfg.Aggregation {
	case ConfidenceTop1:
		for _, r := range results {
			if r.Similarity > value {
				value = r.Similarity
			}
		}
	default:
		for _, r := range results {
			value += r.Similarity
		}
		value /= float64(len(results))
	}

	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

func personaPrompt(persona domain.Persona) string {
	base := "Voce e o assistente de conhecimento da empresa. Responda somente com base nos trechos fornecidos. " +
		"Se os trechos nao contiverem a resposta, diga que nao ha informacao suficiente. Cite os titulos das fontes usadas."

	switch persona {
	case domain.PersonaTecnico:
		return base + " Use linguagem tecnica e precisa, com detalhes de implementacao quando existirem."
	case domain.PersonaComercial:
		return base + " Use um tom consultivo voltado a vendas, destacando beneficios e condicoes comerciais."
	case domain.PersonaSuporte:
		return base + " Use um tom empatico de atendimento, com passos claros e numerados quando couber."
	default:
		return base + " Use linguagem simples e acessivel para qualquer pessoa."
	}
}

func buildUserPrompt(query string, results []*domain.SearchResult) string {
	var b strings.Builder
	b.WriteString("Trechos da base de conhecimento:\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, r.Item.Title, r.Item.Content)
	}
	b.WriteString("Pergunta: ")
	b.WriteString(query)
	return b.String()
}

func insufficientAnswer(persona domain.Persona) string {
	if persona == domain.PersonaSuporte {
		return "Nao encontrei informacoes suficientes na base de conhecimento para te ajudar com essa pergunta. Pode reformular ou falar com um atendente?"
	}
	return "Nao encontrei informacoes suficientes na base de conhecimento para responder a essa pergunta."
}

func degradedAnswer() string {
	return "Nao foi possivel gerar uma resposta no momento. Tente novamente em instantes."
}
