package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vaultpilot/automations/pkg/models"
)

// renderTemplate expands `{{key}}` placeholders in a note template from the
// action input. Maps and slices render as JSON so chained outputs stay
// readable in the created note.
func renderTemplate(template string, input map[string]any) string {
	if template == "" {
		if prev, ok := input[models.PreviousOutputKey]; ok {
			return stringify(prev)
		}

		return ""
	}

	out := template
	for key, value := range input {
		out = strings.ReplaceAll(out, "{{"+key+"}}", stringify(value))
	}

	return out
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(data)
	}
}
