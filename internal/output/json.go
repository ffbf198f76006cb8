package output

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// JSONFormatter renders the document value as JSON.
type JSONFormatter struct {
	Indent bool
}

// Format renders doc.Value as JSON.
func (f *JSONFormatter) Format(doc Document) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(doc.Value, "", "  ")
	} else {
		data, err = json.Marshal(doc.Value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// YAMLFormatter renders the document value as YAML using its JSON field names.
type YAMLFormatter struct{}

// Format renders doc.Value as YAML.
func (f *YAMLFormatter) Format(doc Document) (string, error) {
	data, err := json.Marshal(doc.Value)
	if err != nil {
		return "", err
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return "", err
	}

	out, err := yaml.Marshal(generic)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
