package model

import "strconv"

// Template is one generation pipeline offered by the carousel
type Template struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Text        string `json:"text"`
	Background  string `json:"background"`
	AccentColor string `json:"accentColor"`
	Workflow    string `json:"workflow"`
}

// Workflow identifiers accepted by the remote queue
const (
	WorkflowOrfeu  = "orfeu_production_model_v11.json"
	WorkflowAmstel = "amstel_production_model_v14.json"
	WorkflowCaixa  = "caixa_production_model_v21.json"
)

var templates = []Template{
	{
		ID:          "orfeu",
		Title:       "ORFEU ART",
		Text:        "A experiência transforma fotos em obras de arte inspiradas no modernismo brasileiro, com traços geométricos, cores marcantes e textura de pintura. Um convite visual à sofisticação e à brasilidade da marca.",
		Background:  "/assets/orfeu.png",
		AccentColor: "#2B5234",
		Workflow:    WorkflowOrfeu,
	},
	{
		ID:          "amstel",
		Title:       "AMSTEL KINGSDAY",
		Text:        "Utiliza inteligência artificial para transformar fotos em retratos estilizados de reis e rainhas, com coroas, tecidos nobres e ambientação dourada. A estética celebra o visual festivo do King's Day, criando uma lembrança visual alinhada ao conceito da campanha.",
		Background:  "/assets/amstel.png",
		AccentColor: "#901111",
		Workflow:    WorkflowAmstel,
	},
	{
		ID:          "caixa",
		Title:       "CAIXA MAMULENGO",
		Text:        "Transforma a imagem do público em um boneco de papel machê com estética inspirada nos fantoches nordestinos. Uma experiência lúdica e regional que mistura arte popular e tecnologia em tempo real.",
		Background:  "/assets/caixa1.png",
		AccentColor: "#0C91DD",
		Workflow:    WorkflowCaixa,
	},
}

// Templates returns the ordered catalog. The slice is a copy.
func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

// FindTemplate looks a template up by ID or workflow identifier
func FindTemplate(key string) (Template, bool) {
	for _, t := range templates {
		if t.ID == key || t.Workflow == key {
			return t, true
		}
	}
	return Template{}, false
}

// ResolveTemplate accepts an ID, a workflow identifier or a zero-based
// catalog index as typed by a user
func ResolveTemplate(key string) (Template, bool) {
	if t, ok := FindTemplate(key); ok {
		return t, true
	}
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 || i >= len(templates) {
		return Template{}, false
	}
	return templates[i], true
}

// IsValidWorkflow reports whether the workflow identifier is in the catalog
func IsValidWorkflow(workflow string) bool {
	for _, t := range templates {
		if t.Workflow == workflow {
			return true
		}
	}
	return false
}
