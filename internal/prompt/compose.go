package prompt

import (
	"strings"
)

const (
	HeaderStyle          = "[STYLE REFERENCE — VISUAL EXPRESSION ONLY]"
	HeaderProduct        = "[PRODUCT CONSTRAINTS — IMMUTABLE]"
	HeaderFusionRules    = "[STRICT FUSION RULES]"
	HeaderDirectContext  = "[STYLE & MARKETING CONTEXT]"
	HeaderDirectRules    = "[STRICT GENERATION RULES]"
	ConflictRule         = "If any conflict occurs, the product description must be followed and the reference style ignored."
	sectionSeparator     = "\n\n---\n\n"
	productIntroduction  = "Product details (must be accurately represented):"
	styleIntroduction    = "Apply the following visual presentation style extracted from the reference image:"
	combinedProductLabel = "PRODUCT DESCRIPTION (immutable):"
)

var fusionRules = []string{
	"The product's category, structure, silhouette, material, color, and all details must exactly match the product description.",
	"The reference image must influence ONLY lighting, composition, background, and overall mood.",
	"Do NOT apply any product features, shapes, proportions, or materials from the reference image.",
	ConflictRule,
}

var directRules = []string{
	"The product's structure, silhouette, color, material, and all details must exactly match the description above.",
	"These product attributes are locked and must not be altered under any circumstances.",
	"Styling, background, lighting, and mood may follow the style context, but must not conflict with product accuracy.",
	"Do not simplify, exaggerate, or reinterpret the product.",
}

// Fusion layers style, immutable product facts and the fusion rules, in
// that order. The output depends only on its inputs.
func Fusion(style, product string) string {
	var b strings.Builder
	b.Grow(len(style) + len(product) + 1024)

	b.WriteString(HeaderStyle + "\n")
	b.WriteString(styleIntroduction + "\n")
	b.WriteString(strings.TrimSpace(style))
	b.WriteString(sectionSeparator)

	writeProductSection(&b, product)
	b.WriteString(sectionSeparator)

	writeRules(&b, HeaderFusionRules, fusionRules)

	return b.String()
}

// Direct builds the prompt for the single-image mode, where the style is
// free text typed by the user.
func Direct(userStyle, product string) string {
	var b strings.Builder
	b.Grow(len(userStyle) + len(product) + 1024)

	b.WriteString(HeaderDirectContext + "\n")
	b.WriteString(strings.TrimSpace(userStyle))
	b.WriteString(sectionSeparator)

	writeProductSection(&b, product)
	b.WriteString(sectionSeparator)

	writeRules(&b, HeaderDirectRules, directRules)

	return b.String()
}

// CombinedUserText is the text part of the user turn in the single-call
// analysis mode.
func CombinedUserText(product string) string {
	var b strings.Builder
	b.WriteString("Image #1: reference (style only). Image #2: product.\n\n")
	b.WriteString(combinedProductLabel + "\n")
	b.WriteString(strings.TrimSpace(product))
	return b.String()
}

// HasFusionLayout reports whether p carries the three fusion sections in
// order and the conflict directive inside the rules section.
func HasFusionLayout(p string) bool {
	style := strings.Index(p, HeaderStyle)
	product := strings.Index(p, HeaderProduct)
	rules := strings.Index(p, HeaderFusionRules)
	if style < 0 || product < 0 || rules < 0 {
		return false
	}
	if !(style < product && product < rules) {
		return false
	}
	return strings.Contains(p[rules:], ConflictRule)
}

// DNA mirrors the visual DNA block the combined analysis returns.
type DNA struct {
	Lighting       string
	Composition    string
	Atmosphere     string
	PostProcessing string
	Mood           string
}

// StyleFromDNA flattens a visual DNA block into style text, falling back
// to the free-form visual style when the block is empty.
func StyleFromDNA(dna DNA, visualStyle string) string {
	var lines []string
	for _, item := range []struct{ label, value string }{
		{"Lighting", dna.Lighting},
		{"Composition", dna.Composition},
		{"Background and atmosphere", dna.Atmosphere},
		{"Color grading and post-processing", dna.PostProcessing},
		{"Mood", dna.Mood},
	} {
		if v := strings.TrimSpace(item.value); v != "" {
			lines = append(lines, item.label+": "+v)
		}
	}

	if len(lines) == 0 {
		return strings.TrimSpace(visualStyle)
	}
	if vs := strings.TrimSpace(visualStyle); vs != "" {
		lines = append([]string{vs}, lines...)
	}
	return strings.Join(lines, "\n")
}

func writeProductSection(b *strings.Builder, product string) {
	b.WriteString(HeaderProduct + "\n")
	b.WriteString(productIntroduction + "\n")
	b.WriteString(strings.TrimSpace(product))
}

func writeRules(b *strings.Builder, header string, rules []string) {
	b.WriteString(header + "\n")
	for i, line := range rules {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- " + line)
	}
}
