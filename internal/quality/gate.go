// Package quality implements the crawl engine's quality gate (spec.md
// §4.4.3): a scalar verdict over an extracted page's text length, outlink
// density, and text-to-markup ratio, deciding whether a page is exported,
// held back as marginal, or dropped while its outlinks are still harvested.
package quality

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Verdict is the gate's pass/marginal/fail classification.
type Verdict string

const (
	VerdictPass     Verdict = "pass"
	VerdictMarginal Verdict = "marginal"
	VerdictFail     Verdict = "fail"
)

// passScore/marginalScore are the score cutoffs spec.md §4.4.3 names:
// score>=0.6 passes, 0.3<=score<0.6 is marginal, below that fails.
const (
	passScore     = 0.6
	marginalScore = 0.3
)

// Thresholds tunes the text_ok feature's clamp range. Callers build this
// from internal/config.EnvConfig's MinTextLengthMarginal/MinTextLengthSuccess
// rather than quality importing config directly, keeping the gate free of
// a dependency on the process-wide config package.
type Thresholds struct {
	MinTextLength     int // floor of the clamp range (text_ok == 0 at/below this)
	SuccessTextLength int // ceiling of the clamp range (text_ok == 1 at/above this)
}

// DefaultThresholds mirrors config.DefaultEnvConfig's MinTextLengthMarginal
// (50) / MinTextLengthSuccess (200).
func DefaultThresholds() Thresholds {
	return Thresholds{MinTextLength: 50, SuccessTextLength: 200}
}

// Result is one page's quality-gate evaluation.
type Result struct {
	TextLen      int
	OutlinkCount int
	HTMLLen      int

	TextOK        float64
	LinkDensityOK float64
	TextDensityOK float64
	Score         float64

	Verdict Verdict
	Reasons []string
}

// Evaluate walks contentNode to derive text_len/outlink_count, compares
// against htmlLen (the original fetched page's byte length), and applies
// spec.md §4.4.3's three-feature mean-score verdict.
func Evaluate(contentNode *html.Node, htmlLen int, thresholds Thresholds) Result {
	textLen, outlinkCount := measure(contentNode)

	textOK := clamp01(ratio(textLen-thresholds.MinTextLength, thresholds.SuccessTextLength-thresholds.MinTextLength))
	linkDensityOK := 1 - minF(1, ratio(outlinkCount*50, maxInt(textLen, 1)))
	textDensityOK := minF(1, ratio(textLen*10, maxInt(htmlLen, 1)))

	score := (textOK + linkDensityOK + textDensityOK) / 3

	result := Result{
		TextLen:       textLen,
		OutlinkCount:  outlinkCount,
		HTMLLen:       htmlLen,
		TextOK:        textOK,
		LinkDensityOK: linkDensityOK,
		TextDensityOK: textDensityOK,
		Score:         score,
	}

	switch {
	case score >= passScore:
		result.Verdict = VerdictPass
	case score >= marginalScore:
		result.Verdict = VerdictMarginal
	default:
		result.Verdict = VerdictFail
	}

	if textOK < 1 {
		result.Reasons = append(result.Reasons, fmt.Sprintf("text_too_short:%d<%d", textLen, thresholds.SuccessTextLength))
	}
	if linkDensityOK < 1 {
		result.Reasons = append(result.Reasons, fmt.Sprintf("link_density_high:%d_outlinks/%d_chars", outlinkCount, textLen))
	}
	if textDensityOK < 1 {
		result.Reasons = append(result.Reasons, fmt.Sprintf("text_density_low:%d/%d", textLen, htmlLen))
	}

	return result
}

// ReasonString joins Result.Reasons for JobEvent/log attribution, or "" for
// a clean pass.
func (r Result) ReasonString() string {
	return strings.Join(r.Reasons, ";")
}

// measure walks n counting non-whitespace text runes and <a href> elements,
// the same tree-walk idiom internal/extractor's calculateContentScore uses.
func measure(n *html.Node) (textLen, outlinkCount int) {
	if n == nil {
		return 0, 0
	}
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			textLen += len(strings.Join(strings.Fields(node.Data), ""))
		case html.ElementNode:
			if node.Data == "a" {
				for _, attr := range node.Attr {
					if attr.Key == "href" {
						outlinkCount++
						break
					}
				}
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return textLen, outlinkCount
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func ratio(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
