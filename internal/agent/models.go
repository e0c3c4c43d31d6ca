package agent

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Model is the UI's view of an available model.
type Model struct {
	Provider           string `json:"provider"`
	ID                 string `json:"id"`
	Name               string `json:"name"`
	SupportsImageInput bool   `json:"supportsImageInput"`
}

// compactModels reduces a get_available_models payload to {"models":[Model]}.
// Entries without a string provider and id are skipped.
func compactModels(data json.RawMessage) json.RawMessage {
	models := []Model{}
	gjson.GetBytes(data, "models").ForEach(func(_, m gjson.Result) bool {
		provider, id := m.Get("provider"), m.Get("id")
		if provider.Type != gjson.String || id.Type != gjson.String {
			return true
		}
		name := id.Str
		if n := m.Get("name"); n.Type == gjson.String {
			name = n.Str
		}
		models = append(models, Model{
			Provider:           provider.Str,
			ID:                 id.Str,
			Name:               name,
			SupportsImageInput: m.Get("supportsImageInput").Type == gjson.True,
		})
		return true
	})

	out, err := json.Marshal(struct {
		Models []Model `json:"models"`
	}{models})
	if err != nil {
		return data
	}
	return out
}
