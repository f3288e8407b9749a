package extractor

import "golang.org/x/net/html"

// ExtractionResult holds the extraction outcome.
// DocumentRoot is the original parsed HTML document.
// ContentNode is the extracted meaningful content node (semantic container).
type ExtractionResult struct {
	DocumentRoot *html.Node
	ContentNode  *html.Node
}

// ExtractParam tunes the Layer 3 text-density scoring pass and the
// isMeaningful content gate shared by all three layers. It mirrors
// config.Config's extraction fields field-for-field so a caller can pass
// those values into SetExtractParam without translation.
type ExtractParam struct {
	// BodySpecificityBias is how close a child candidate's score must be to
	// <body>'s score (as a fraction of it) before findBestContentContainer
	// prefers the more specific child over the whole body.
	BodySpecificityBias float64
	// LinkDensityThreshold is the link-text-to-total-text ratio above which
	// calculateContentScore starts penalizing a candidate node.
	LinkDensityThreshold float64
	ScoreMultiplier      ContentScoreMultiplier
	Threshold            MeaningfulThreshold
}

// ContentScoreMultiplier weights calculateContentScore's feature counts.
type ContentScoreMultiplier struct {
	// NonWhitespaceDivisor: +1 point per this many non-whitespace characters.
	NonWhitespaceDivisor float64
	Paragraphs           float64
	Headings             float64
	CodeBlocks           float64
	ListItems            float64
}

// MeaningfulThreshold gates isMeaningful.
type MeaningfulThreshold struct {
	MinNonWhitespace    int
	MinHeadings         int
	MinParagraphsOrCode int
	MaxLinkDensity      float64
}

// DefaultExtractParam returns the scoring tuning used when a caller does not
// need to override it. Values match config.WithDefault's extraction fields.
func DefaultExtractParam() ExtractParam {
	return ExtractParam{
		BodySpecificityBias:  0.75,
		LinkDensityThreshold: 0.80,
		ScoreMultiplier: ContentScoreMultiplier{
			NonWhitespaceDivisor: 50.0,
			Paragraphs:           5.0,
			Headings:             10.0,
			CodeBlocks:           15.0,
			ListItems:            2.0,
		},
		Threshold: MeaningfulThreshold{
			MinNonWhitespace:    50,
			MinHeadings:         0,
			MinParagraphsOrCode: 1,
			MaxLinkDensity:      0.8,
		},
	}
}
