package prompts

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"google.golang.org/genai"
)

// ValidateValue checks a JSON-decoded value against schema. Values are
// expected in the shapes produced by encoding/json: float64, string, bool,
// []any, map[string]any and nil.
func ValidateValue(schema *genai.Schema, value any) error {
	var problems []string
	validate(schema, value, "$", &problems)
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// ToObject converts a struct or map into the map form ValidateValue expects.
func ToObject(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("value is not an object: %w", err)
	}
	return out, nil
}

func validate(s *genai.Schema, v any, path string, problems *[]string) {
	if s == nil {
		return
	}
	fail := func(format string, args ...any) {
		*problems = append(*problems, path+": "+fmt.Sprintf(format, args...))
	}

	if v == nil {
		if s.Nullable == nil || !*s.Nullable {
			fail("must not be null")
		}
		return
	}

	switch s.Type {
	case genai.TypeString:
		str, ok := v.(string)
		if !ok {
			fail("expected string, got %T", v)
			return
		}
		n := int64(utf8.RuneCountInString(str))
		if s.MinLength != nil && n < *s.MinLength {
			if *s.MinLength == 1 {
				fail("must not be empty")
			} else {
				fail("must be at least %d characters", *s.MinLength)
			}
		}
		if s.MaxLength != nil && n > *s.MaxLength {
			fail("must be at most %d characters", *s.MaxLength)
		}
		if len(s.Enum) > 0 && !slices.Contains(s.Enum, str) {
			fail("must be one of %s", strings.Join(s.Enum, ", "))
		}

	case genai.TypeNumber, genai.TypeInteger:
		num, ok := v.(float64)
		if !ok {
			fail("expected number, got %T", v)
			return
		}
		if math.IsNaN(num) || math.IsInf(num, 0) {
			fail("must be a finite number")
			return
		}
		if s.Type == genai.TypeInteger && num != math.Trunc(num) {
			fail("expected integer, got %v", num)
		}
		if s.Minimum != nil && num < *s.Minimum {
			fail("must be >= %v", *s.Minimum)
		}
		if s.Maximum != nil && num > *s.Maximum {
			fail("must be <= %v", *s.Maximum)
		}

	case genai.TypeBoolean:
		if _, ok := v.(bool); !ok {
			fail("expected boolean, got %T", v)
		}

	case genai.TypeArray:
		items, ok := v.([]any)
		if !ok {
			fail("expected array, got %T", v)
			return
		}
		if s.MinItems != nil && int64(len(items)) < *s.MinItems {
			fail("must have at least %d items", *s.MinItems)
		}
		if s.MaxItems != nil && int64(len(items)) > *s.MaxItems {
			fail("must have at most %d items", *s.MaxItems)
		}
		for i, item := range items {
			validate(s.Items, item, fmt.Sprintf("%s[%d]", path, i), problems)
		}

	case genai.TypeObject:
		obj, ok := v.(map[string]any)
		if !ok {
			fail("expected object, got %T", v)
			return
		}
		for _, name := range s.Required {
			if _, present := obj[name]; !present {
				*problems = append(*problems, path+"."+name+": is required")
			}
		}
		for name, prop := range s.Properties {
			if val, present := obj[name]; present {
				validate(prop, val, path+"."+name, problems)
			}
		}
	}
}
