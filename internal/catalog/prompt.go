package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const defaultStyleTemplate = "Style {style}: {base_prompt}"

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ItemPrompts derives one prompt per item from the base prompt according to
// the mode's variation scheme. params fills extra template placeholders.
func (m Mode) ItemPrompts(base string, params map[string]string) []string {
	prompts := make([]string, m.Count)
	for i := range prompts {
		prompts[i] = m.itemPrompt(base, i, params)
	}
	return prompts
}

func (m Mode) itemPrompt(base string, index int, params map[string]string) string {
	switch m.Variation {
	case VariationStyles:
		styles := m.Styles
		if len(styles) == 0 {
			styles = DefaultStyles
		}
		tmpl := m.PromptTemplate
		if tmpl == "" {
			tmpl = defaultStyleTemplate
		}
		values := map[string]string{
			"style":       styles[index%len(styles)],
			"base_prompt": base,
			"index":       strconv.Itoa(index + 1),
		}
		out, err := FormatTemplate(tmpl, values)
		if err != nil {
			return base
		}
		return out
	case VariationTemplate:
		values := make(map[string]string, len(params)+3)
		for k, v := range params {
			values[k] = v
		}
		values["base_prompt"] = base
		values["index"] = strconv.Itoa(index + 1)
		values["variation_aspect"] = m.variationAspect(index)
		out, err := FormatTemplate(m.PromptTemplate, values)
		if err != nil {
			return base
		}
		return out
	default:
		return base
	}
}

func (m Mode) variationAspect(index int) string {
	if len(m.VariationAspects) == 0 {
		return "style"
	}
	return m.VariationAspects[index%len(m.VariationAspects)]
}

// GridPrompt builds the single combined prompt used by the grid strategy.
func (m Mode) GridPrompt(base string) string {
	lines := []string{
		fmt.Sprintf("Create a %d×%d grid image showing %d variations of: %s.", m.Rows, m.Cols, m.Count, strings.TrimSpace(base)),
		"Each cell shows a different take with variations in lighting, angle, mood, and composition.",
		"Consistent artistic style across all cells. Clear separation between cells.",
	}
	return strings.Join(lines, " ")
}

// FormatTemplate substitutes {name} placeholders. A placeholder without a
// value is an error so callers can fall back to the unformatted prompt.
func FormatTemplate(tmpl string, values map[string]string) (string, error) {
	var missing []string
	out := placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		key := match[1 : len(match)-1]
		v, ok := values[key]
		if !ok {
			missing = append(missing, key)
			return match
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("template: missing values for %s", strings.Join(missing, ", "))
	}
	return out, nil
}
