package domain

// Persona is a named answer-framing mode. It biases synthesis tone and
// emphasis without changing retrieval.
type Persona string

const (
	PersonaGeral     Persona = "geral"
	PersonaTecnico   Persona = "tecnico"
	PersonaComercial Persona = "comercial"
	PersonaSuporte   Persona = "suporte"
)

// IsValidPersona checks if a Persona is a member of the closed set
func IsValidPersona(p Persona) bool {
	switch p {
	case PersonaGeral, PersonaTecnico, PersonaComercial, PersonaSuporte:
		return true
	}
	return false
}

// Personas lists the closed set of personas
func Personas() []Persona {
	return []Persona{PersonaGeral, PersonaTecnico, PersonaComercial, PersonaSuporte}
}

// SearchResult pairs a knowledge item with its similarity to the query.
// Similarity is cosine similarity normalized into [0,1]. Results are ranked
// by descending similarity; ties break toward the newer CreatedAt.
type SearchResult struct {
	Item       *KnowledgeItem
	Similarity float64
}

// RagResponse is the synthesized answer for one query. Sources lists only
// the items that informed the answer, in retrieval rank order.
type RagResponse struct {
	Answer     string
	Confidence float64
	Sources    []*SearchResult
	Persona    Persona
}
