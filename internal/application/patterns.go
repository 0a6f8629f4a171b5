// Package application contains use-case orchestration services and the
// pure claim-classification logic.
package application

import (
	"bytes"
	"regexp"
	"strings"

	nethtml "html"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// PatternTier identifies which pattern tier a comment matched.
type PatternTier string

const (
	TierNone              PatternTier = "none"
	TierDirectClaim       PatternTier = "direct_claim"
	TierAssignmentRequest PatternTier = "assignment_request"
	TierQuestion          PatternTier = "question"
	TierProgressUpdate    PatternTier = "progress_update"
)

// Base confidence per tier. Only the highest-scoring matched tier counts.
const (
	confidenceDirectClaim       = 95
	confidenceAssignmentRequest = 90
	confidenceQuestion          = 70
)

// Context boosts, additive, with the final score capped at 100.
const (
	boostReplyToMaintainer = 10
	boostAlreadyAssigned   = 5
	maxScore               = 100
)

// AnalysisContext carries the light context the matcher may boost on.
type AnalysisContext struct {
	ReplyToMaintainer bool
	CommenterAssigned bool
}

// Analysis is the matcher's verdict for one comment. The zero value is the
// "no match" verdict.
type Analysis struct {
	Tier             PatternTier
	BaseConfidence   int
	Boost            int
	FinalScore       int
	IsClaim          bool
	IsProgressUpdate bool
	NormalizedText   string
}

var directClaimPatterns = compileAll(
	`\bi\s+claim\s+(this|it|this\s+issue)\b`,
	`\bclaiming\s+(this|it|this\s+issue)\b`,
	`\bi\s+claimed\s+(this|it|this\s+issue)\b`,
	`i'?ll\s+(take\s+this|work\s+on\s+this|handle\s+this|do\s+this|fix\s+this)`,
	`i\s+can\s+(take\s+this|handle\s+this|work\s+on\s+this|fix\s+this)`,
	`i\s+will\s+(take|work\s+on|handle|fix|do)\s+(this|it)`,
	`i'm\s+(taking|working\s+on|handling)\s+(this|it)`,
	`let\s+me\s+(take|handle|work\s+on|fix)\s+(this|it)`,
	`i\s+got\s+this`,
	`i'll\s+take\s+it`,
	`i'm\s+on\s+(this|it)`,
	`\bdibs\s+on\s+(this|it)\b`,
	`\bmine\b`,
	`i\s+choose\s+(this|it)`,
	`i\s+pick\s+(this|it)`,
)

var assignmentRequestPatterns = compileAll(
	`(please\s+)?assign\s+(this\s+)?to\s+me`,
	`can\s+you\s+assign\s+(this\s+)?to\s+me`,
	`i\s+want\s+to\s+work\s+on\s+(this|it)`,
	`i'd\s+like\s+to\s+(work\s+on|take)\s+(this|it)`,
	`can\s+i\s+be\s+assigned\s+(this|to\s+this)`,
	`assign\s+me\s+(please|to\s+this)`,
	`i\s+volunteer\s+for\s+(this|it)`,
	`put\s+me\s+down\s+for\s+(this|it)`,
)

var questionPatterns = compileAll(
	`can\s+i\s+(work\s+on|take|do)\s+(this|it)\s*\?`,
	`is\s+(this|it)\s+(available|free|open)\s*\?`,
	`anyone\s+working\s+on\s+(this|it)\s*\?`,
	`may\s+i\s+(take|work\s+on)\s+(this|it)\s*\?`,
	`may\s+i\s+(take|work\s+on)\s+this\s+issue\s*\?`,
	`is\s+(this|it)\s+up\s+for\s+grabs\s*\?`,
	`can\s+i\s+help\s+with\s+(this|it)\s*\?`,
	`mind\s+if\s+i\s+(take|work\s+on)\s+(this|it)\s*\?`,
	`can\s+i\s+(maybe|perhaps|possibly)?\s*(work\s+on|take|do)\s+(this|it|this\s+issue).*\?`,
	`could\s+i\s+(maybe|perhaps|possibly|potentially)?\s*(work\s+on|take|help\s+with)\s+(this|it|this\s+issue).*\?`,
	`would\s+it\s+be\s+(ok|okay|alright|fine)\s+if\s+i\s+(work\s+on|take)\s+(this|it).*\?`,
	`is\s+it\s+(ok|okay|alright|fine)\s+if\s+i\s+(work\s+on|take)\s+(this|it).*\?`,
	`do\s+you\s+mind\s+if\s+i\s+(work\s+on|take)\s+(this|it).*\?`,
	`would\s+(anyone|someone)\s+mind\s+if\s+i\s+(work\s+on|take)\s+(this|it).*\?`,
	`am\s+i\s+allowed\s+to\s+(work\s+on|take)\s+(this|it).*\?`,
)

var progressUpdatePatterns = compileAll(
	`(i'm\s+working|currently\s+working|i\s+started|i\s+began)\s+on\s+(this|it)`,
	`made\s+(some\s+)?progress\s+on\s+(this|it)`,
	`almost\s+(done|finished)\s+with\s+(this|it)`,
	`(update|status):\s+.*(working|progress|done)`,
	`will\s+have\s+(this|it)\s+(ready|done|finished)\s+(soon|by)`,
	`(submitted|created)\s+(a\s+)?(pr|pull\s+request)`,
	`(opened|created)\s+pull\s+request`,
	`here's\s+my\s+(pr|pull\s+request)`,
)

var (
	urlRE      = regexp.MustCompile(`https?://\S+`)
	mentionRE  = regexp.MustCompile(`@\w+`)
	issueRefRE = regexp.MustCompile(`#\d+`)
)

var (
	commentMarkdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	htmlStripper    = bluemonday.StrictPolicy()
)

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

// NormalizeComment reduces a raw markdown comment to lowercase plain text
// suitable for pattern matching. Raw HTML is stripped, code blocks, inline
// code, and autolinked URLs are dropped via the markdown AST (link label
// text survives), then bare URLs, @mentions, and #123 issue references are
// removed and whitespace is collapsed.
func NormalizeComment(body string) string {
	if body == "" {
		return ""
	}

	// StrictPolicy drops raw HTML tags; unescape restores entities it
	// escapes in the surviving text (quotes, apostrophes).
	stripped := nethtml.UnescapeString(htmlStripper.Sanitize(body))

	plain := extractPlainText([]byte(stripped))

	plain = urlRE.ReplaceAllString(plain, " ")
	plain = mentionRE.ReplaceAllString(plain, " ")
	plain = issueRefRE.ReplaceAllString(plain, " ")

	return strings.Join(strings.Fields(strings.ToLower(plain)), " ")
}

// extractPlainText walks the markdown AST collecting text nodes. Fenced and
// indented code blocks carry their content as raw lines rather than text
// nodes, so they drop out naturally; code spans and autolinks are skipped
// explicitly.
func extractPlainText(source []byte) string {
	doc := commentMarkdown.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindCodeSpan, ast.KindAutoLink:
			return ast.WalkSkipChildren, nil
		case ast.KindText:
			buf.Write(n.(*ast.Text).Segment.Value(source))
			buf.WriteByte(' ')
		case ast.KindString:
			buf.Write(n.(*ast.String).Value)
			buf.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})

	return buf.String()
}

// AnalyzeComment classifies a comment against the ordered pattern tiers and
// applies context boosts. It is pure and never fails; a comment matching no
// tier yields score 0. A comment matching both a progress-update pattern and
// a qualifying claim pattern is classified as a progress update, not a new
// claim.
func AnalyzeComment(body string, actx AnalysisContext, threshold int) Analysis {
	normalized := NormalizeComment(body)

	tier := TierNone
	base := 0
	switch {
	case matchesAny(normalized, directClaimPatterns):
		tier, base = TierDirectClaim, confidenceDirectClaim
	case matchesAny(normalized, assignmentRequestPatterns):
		tier, base = TierAssignmentRequest, confidenceAssignmentRequest
	case matchesAny(normalized, questionPatterns):
		tier, base = TierQuestion, confidenceQuestion
	}

	isProgress := matchesAny(normalized, progressUpdatePatterns)
	if isProgress && tier == TierNone {
		tier = TierProgressUpdate
	}

	// Boosts amplify a matched tier; a comment matching nothing stays at 0.
	boost := 0
	if base > 0 {
		if actx.ReplyToMaintainer {
			boost += boostReplyToMaintainer
		}
		if actx.CommenterAssigned {
			boost += boostAlreadyAssigned
		}
	}

	final := base + boost
	if final > maxScore {
		final = maxScore
	}

	return Analysis{
		Tier:             tier,
		BaseConfidence:   base,
		Boost:            boost,
		FinalScore:       final,
		IsClaim:          final >= threshold && base > 0 && !isProgress,
		IsProgressUpdate: isProgress,
		NormalizedText:   normalized,
	}
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
