package action

import "strings"

// ParseAnchor interprets a plan-authoring selector string into an
// AnchorDescriptor, recognizing the same "prefix=value" semantic-selector
// convention used for the anchor's three locating strategies. A bare string
// with no recognized prefix is treated as a raw CSS selector.
func ParseAnchor(raw string) AnchorDescriptor {
	if idx := strings.Index(raw, "="); idx > 0 {
		prefix := raw[:idx]
		value := raw[idx+1:]
		switch prefix {
		case "text":
			return AnchorDescriptor{Kind: AnchorTextMatch, Content: value, Exact: false}
		case "text_exact":
			return AnchorDescriptor{Kind: AnchorTextMatch, Content: value, Exact: true}
		case "role":
			role, name, _ := strings.Cut(value, ":")
			return AnchorDescriptor{Kind: AnchorAria, AriaRole: role, AriaName: name}
		}
	}
	return AnchorDescriptor{Kind: AnchorCSS, CSS: raw}
}
