package studio

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"marketing-studio/internal/prompt"
)

var (
	errNoJSON        = errors.New("no JSON object found")
	errMissingField  = errors.New("required field missing")
	fencedBlockRegex = regexp.MustCompile("(?s)```(?:json|JSON)?[ \\t]*\\r?\\n?(.*?)```")
)

const noteRebuiltPrompt = "The model's generation prompt did not keep the required section layout or the exact product description, so it was rebuilt from the extracted style."

type fusionEnvelope struct {
	Reference *ReferenceAnalysis `json:"reference"`
	Product   *ProductAnalysis   `json:"product"`
	Fusion    *FusionSuggestion  `json:"fusion"`
}

// ExtractJSON returns the first JSON object in text, preferring a fenced
// code block over a bare object.
func ExtractJSON(text string) (string, bool) {
	for _, m := range fencedBlockRegex.FindAllStringSubmatch(text, -1) {
		if obj, ok := firstObject(m[1]); ok {
			return obj, true
		}
	}
	return firstObject(text)
}

// firstObject scans for the first balanced {...}, ignoring braces inside
// string literals.
func firstObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		if end := matchBrace(text, start); end > start {
			return text[start : end+1], true
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// ParseFusion turns a combined-mode response into a FusionResult. The
// product description from the product analysis always replaces whatever
// the model echoed.
func ParseFusion(raw, productDescription string) (*FusionResult, error) {
	obj, ok := ExtractJSON(raw)
	if !ok {
		return nil, &ParseError{Raw: raw, Err: errNoJSON}
	}

	var env fusionEnvelope
	if err := json.Unmarshal([]byte(obj), &env); err != nil {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("decode: %w", err)}
	}

	switch {
	case env.Reference == nil:
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("%w: reference", errMissingField)}
	case env.Product == nil:
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("%w: product", errMissingField)}
	case env.Fusion == nil:
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("%w: fusion", errMissingField)}
	case strings.TrimSpace(env.Fusion.GenerationPrompt) == "":
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("%w: fusion.generation_prompt", errMissingField)}
	}

	result := &FusionResult{
		Reference:          *env.Reference,
		Product:            *env.Product,
		Fusion:             *env.Fusion,
		ProductDescription: productDescription,
	}
	fillEmptyLists(result)

	dna := result.Fusion.VisualDNAPreserved
	result.ReferenceStyle = prompt.StyleFromDNA(prompt.DNA{
		Lighting:       dna.Lighting,
		Composition:    dna.Composition,
		Atmosphere:     dna.Atmosphere,
		PostProcessing: dna.PostProcessing,
		Mood:           dna.Mood,
	}, result.Reference.VisualStyle)
	if result.ReferenceStyle == "" {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("%w: reference style", errMissingField)}
	}

	result.Fusion.ProductReplacement.NewProduct = productDescription

	gp := result.Fusion.GenerationPrompt
	if !prompt.HasFusionLayout(gp) || !strings.Contains(gp, strings.TrimSpace(productDescription)) {
		result.Fusion.GenerationPrompt = prompt.Fusion(styleWithEffects(result), productDescription)
		result.Fusion.Notes = append(result.Fusion.Notes, noteRebuiltPrompt)
	}

	return result, nil
}

func styleWithEffects(r *FusionResult) string {
	effects := r.Fusion.ProductReplacement.CascadingEffects
	if len(effects) == 0 {
		return r.ReferenceStyle
	}

	var b strings.Builder
	b.WriteString(r.ReferenceStyle)
	b.WriteString("\nAdjust the presentation for the product swap:")
	for _, e := range effects {
		if e = strings.TrimSpace(e); e != "" {
			b.WriteString("\n- " + e)
		}
	}
	return b.String()
}

func fillEmptyLists(r *FusionResult) {
	for _, list := range []*[]string{
		&r.Reference.Mood,
		&r.Reference.ColorPalette.DominantColors,
		&r.Reference.StyleKeywords,
		&r.Product.KeyDetails,
		&r.Fusion.ProductReplacement.CascadingEffects,
		&r.Fusion.SubjectAdaptation.BodyAdaptations,
		&r.Fusion.StyleKeywordsAdaptation.PreservedKeywords,
		&r.Fusion.StyleKeywordsAdaptation.AdaptedKeywords,
		&r.Fusion.Notes,
	} {
		if *list == nil {
			*list = []string{}
		}
	}
}
