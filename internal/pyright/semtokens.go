package pyright

import (
	"github.com/jonmmease/jons-pyright-mcp/internal/lsp"
)

// decodedToken is one semantic token with absolute coordinates and resolved
// legend names.
type decodedToken struct {
	Line      int
	Character int
	Length    int
	Type      string
	Modifiers []string
}

// decodeSemanticTokens expands the protocol's relative 5-tuple encoding.
// Each tuple is (deltaLine, deltaStart, length, typeIndex, modifierBits);
// deltaStart is relative to the previous token only when both share a line.
// Trailing partial tuples are ignored.
func decodeSemanticTokens(data []int, legend lsp.SemanticTokensLegend) []decodedToken {
	tokens := make([]decodedToken, 0, len(data)/5)
	line, char := 0, 0

	for i := 0; i+4 < len(data); i += 5 {
		deltaLine, deltaStart := data[i], data[i+1]
		length, typeIdx, modBits := data[i+2], data[i+3], data[i+4]

		line += deltaLine
		if deltaLine > 0 {
			char = deltaStart
		} else {
			char += deltaStart
		}

		tok := decodedToken{
			Line:      line,
			Character: char,
			Length:    length,
			Type:      legendName(legend.TokenTypes, typeIdx),
		}
		for bit := 0; bit < len(legend.TokenModifiers); bit++ {
			if modBits&(1<<bit) != 0 {
				tok.Modifiers = append(tok.Modifiers, legend.TokenModifiers[bit])
			}
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func legendName(names []string, idx int) string {
	if idx >= 0 && idx < len(names) {
		return names[idx]
	}
	return "unknown"
}
