package client

import "google.golang.org/genai"

// Field is a named property used to build an object schema in declaration order.
type Field struct {
	Name     string
	Schema   *genai.Schema
	Optional bool
}

// Object builds an OBJECT schema. Fields are required unless marked Optional.
func Object(fields ...Field) *genai.Schema {
	s := &genai.Schema{Type: genai.TypeObject, Properties: make(map[string]*genai.Schema, len(fields))}
	for _, f := range fields {
		s.Properties[f.Name] = f.Schema
		s.PropertyOrdering = append(s.PropertyOrdering, f.Name)
		if !f.Optional {
			s.Required = append(s.Required, f.Name)
		}
	}
	return s
}

// Array builds an ARRAY schema of items.
func Array(items *genai.Schema, description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: items, Description: description}
}

// ExactArray builds an ARRAY schema that must hold exactly n items.
func ExactArray(items *genai.Schema, n int64, description string) *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeArray,
		Items:       items,
		Description: description,
		MinItems:    genai.Ptr(n),
		MaxItems:    genai.Ptr(n),
	}
}

func String(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description}
}

func Number(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeNumber, Description: description}
}

func Boolean(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeBoolean, Description: description}
}

// UserText is a single user turn holding s.
func UserText(s string) *genai.Content {
	return genai.NewContentFromText(s, genai.RoleUser)
}

// UserImage is a single user turn holding an inline image followed by prompt.
func UserImage(mimeType string, image []byte, prompt string) *genai.Content {
	return genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(image, mimeType),
		genai.NewPartFromText(prompt),
	}, genai.RoleUser)
}

// ModelText is a model turn holding s.
func ModelText(s string) *genai.Content {
	return genai.NewContentFromText(s, genai.RoleModel)
}
