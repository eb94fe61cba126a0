package chat

import (
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is the platform limit for one message.
const MaxMessageLength = 4096

// Split cuts text into chunks of at most limit characters. It prefers
// section boundaries (blank lines), then line breaks, and only cuts inside a
// line when one line alone is too long.
func Split(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}

	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var out []string

	pack(&out, text, limit, []string{"\n\n", "\n"})

	return out
}

func pack(out *[]string, text string, limit int, seps []string) {
	if utf8.RuneCountInString(text) <= limit {
		if strings.TrimSpace(text) != "" {
			*out = append(*out, text)
		}

		return
	}

	if len(seps) == 0 {
		hardCut(out, text, limit)

		return
	}

	sep := seps[0]
	cur := ""

	flush := func() {
		if strings.TrimSpace(cur) != "" {
			*out = append(*out, cur)
		}

		cur = ""
	}

	for _, part := range strings.Split(text, sep) {
		if utf8.RuneCountInString(part) > limit {
			flush()
			pack(out, part, limit, seps[1:])

			continue
		}

		candidate := part
		if cur != "" {
			candidate = cur + sep + part
		}

		if utf8.RuneCountInString(candidate) > limit {
			flush()

			cur = part
		} else {
			cur = candidate
		}
	}

	flush()
}

func hardCut(out *[]string, text string, limit int) {
	runes := []rune(text)

	for len(runes) > 0 {
		n := min(limit, len(runes))
		*out = append(*out, string(runes[:n]))
		runes = runes[n:]
	}
}
