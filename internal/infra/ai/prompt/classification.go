package prompt

import "fmt"

// Categories accepted from the model. Anything else becomes "Outros".
var Categories = []string{
	"Saúde", "Educação", "Infraestrutura", "Assistência Social",
	"Segurança", "Meio Ambiente", "Cultura", "Esporte", "Outros",
}

const classificationSystem = `You classify Brazilian parliamentary budget amendments.
Return only a valid JSON object.`

// ClassificationSystemPrompt returns the system prompt for objective classification.
func ClassificationSystemPrompt() string { return classificationSystem }

// ClassificationUserPrompt asks for category, main object and location.
func ClassificationUserPrompt(objective string) string {
	return fmt.Sprintf(`Classify the following amendment objective and answer with JSON:
{
  "category": one of %q,
  "main_object": "summary of the purchased or built object, at most 20 words",
  "location": "street, neighbourhood or district if mentioned, otherwise null"
}

Objective: %s`, Categories, objective)
}
