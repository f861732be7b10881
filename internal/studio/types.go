package studio

// ReferenceAnalysis describes how the reference image is photographed.
// It deliberately has no product fields.
type ReferenceAnalysis struct {
	SceneType     string       `json:"scene_type"`
	VisualStyle   string       `json:"visual_style"`
	Mood          []string     `json:"mood"`
	ColorPalette  ColorPalette `json:"color_palette"`
	Lighting      Lighting     `json:"lighting"`
	Background    Background   `json:"background"`
	Composition   Composition  `json:"composition"`
	StyleKeywords []string     `json:"style_keywords"`
}

type ColorPalette struct {
	DominantColors []string `json:"dominant_colors"`
	Contrast       string   `json:"contrast"`
	Saturation     string   `json:"saturation"`
}

type Lighting struct {
	Type      string `json:"type"`
	Direction string `json:"direction"`
	Intensity string `json:"intensity"`
	Shadow    string `json:"shadow"`
}

type Background struct {
	Type       string `json:"type"`
	Color      string `json:"color"`
	Atmosphere string `json:"atmosphere"`
}

type Composition struct {
	Framing      string `json:"framing"`
	CameraAngle  string `json:"camera_angle"`
	DepthOfField string `json:"depth_of_field"`
}

// ProductAnalysis is the structured echo the combined mode returns. It is
// informational; FusionResult.ProductDescription stays authoritative.
type ProductAnalysis struct {
	Category     string   `json:"category"`
	Type         string   `json:"type"`
	ExactColor   string   `json:"exact_color"`
	Material     string   `json:"material"`
	KeyDetails   []string `json:"key_details"`
	TargetGender string   `json:"target_gender"`
}

type VisualDNA struct {
	Lighting       string `json:"lighting"`
	Composition    string `json:"composition"`
	Atmosphere     string `json:"atmosphere"`
	PostProcessing string `json:"post_processing"`
	Accessories    string `json:"accessories"`
	Mood           string `json:"mood"`
}

type ProductReplacement struct {
	OriginalProduct  string   `json:"original_product"`
	NewProduct       string   `json:"new_product"`
	CascadingEffects []string `json:"cascading_effects"`
}

type SubjectAdaptation struct {
	OriginalGender  string   `json:"original_gender"`
	TargetGender    string   `json:"target_gender"`
	BodyAdaptations []string `json:"body_adaptations"`
}

type KeywordAdaptation struct {
	PreservedKeywords []string `json:"preserved_keywords"`
	AdaptedKeywords   []string `json:"adapted_keywords"`
}

type FusionSuggestion struct {
	VisualDNAPreserved      VisualDNA          `json:"visual_dna_preserved"`
	ProductReplacement      ProductReplacement `json:"product_replacement"`
	SubjectAdaptation       SubjectAdaptation  `json:"subject_adaptation"`
	StyleKeywordsAdaptation KeywordAdaptation  `json:"style_keywords_adaptation"`
	Notes                   []string           `json:"notes"`
	GenerationPrompt        string             `json:"generation_prompt"`
}

// FusionResult is produced once per analysis. Only
// Fusion.GenerationPrompt may be edited afterwards.
type FusionResult struct {
	Reference          ReferenceAnalysis `json:"reference"`
	Product            ProductAnalysis   `json:"product"`
	Fusion             FusionSuggestion  `json:"fusion"`
	ProductDescription string            `json:"product_description"`
	ReferenceStyle     string            `json:"reference_style"`
}

// Clone returns a deep copy so callers can hand results out without
// sharing slices.
func (r *FusionResult) Clone() *FusionResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Reference.Mood = cloneStrings(r.Reference.Mood)
	out.Reference.ColorPalette.DominantColors = cloneStrings(r.Reference.ColorPalette.DominantColors)
	out.Reference.StyleKeywords = cloneStrings(r.Reference.StyleKeywords)
	out.Product.KeyDetails = cloneStrings(r.Product.KeyDetails)
	out.Fusion.ProductReplacement.CascadingEffects = cloneStrings(r.Fusion.ProductReplacement.CascadingEffects)
	out.Fusion.SubjectAdaptation.BodyAdaptations = cloneStrings(r.Fusion.SubjectAdaptation.BodyAdaptations)
	out.Fusion.StyleKeywordsAdaptation.PreservedKeywords = cloneStrings(r.Fusion.StyleKeywordsAdaptation.PreservedKeywords)
	out.Fusion.StyleKeywordsAdaptation.AdaptedKeywords = cloneStrings(r.Fusion.StyleKeywordsAdaptation.AdaptedKeywords)
	out.Fusion.Notes = cloneStrings(r.Fusion.Notes)
	return &out
}

// GenerationOutcome pairs the produced image with the prompt that was sent.
type GenerationOutcome struct {
	ImageURL string `json:"image_url"`
	Prompt   string `json:"prompt"`
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
