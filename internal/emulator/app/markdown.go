package app

import "strings"

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// markdownToHTML converts the small Markdown subset the command handlers and
// code generator produce into HTML for a Matrix m.text event with
// format=org.matrix.custom.html.
//
// Supported constructs, in processing order:
//   - &, <, > are HTML-escaped everywhere (replies echo user text, which
//     must never reach formatted_body as markup)
//   - fenced code blocks ```…``` to <pre><code>…</code></pre>
//   - inline code `…` to <code>…</code>
//   - bold **…** to <strong>…</strong>
//   - newlines to <br/>
func markdownToHTML(md string) string {
	// Fenced blocks first so later inline passes cannot touch their content.
	var out strings.Builder
	inCode := false
	for _, line := range strings.Split(md, "\n") {
		if strings.HasPrefix(line, "```") {
			if !inCode {
				out.WriteString("<pre><code>")
				inCode = true
			} else {
				out.WriteString("</code></pre>")
				inCode = false
			}
			continue
		}
		out.WriteString(htmlEscaper.Replace(line))
		out.WriteString("\n")
	}
	result := out.String()

	result = replaceDelimited(result, "`", "<code>", "</code>")
	result = replaceDelimited(result, "**", "<strong>", "</strong>")
	result = strings.ReplaceAll(result, "\n", "<br/>")
	return result
}

// replaceDelimited replaces delim…delim pairs with open+content+close. An
// unmatched opener is left alone.
func replaceDelimited(s, delim, open, close string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, delim)
		if start == -1 {
			b.WriteString(s)
			return b.String()
		}
		end := strings.Index(s[start+len(delim):], delim)
		if end == -1 {
			b.WriteString(s)
			return b.String()
		}
		end += start + len(delim)
		b.WriteString(s[:start])
		b.WriteString(open)
		b.WriteString(s[start+len(delim) : end])
		b.WriteString(close)
		s = s[end+len(delim):]
	}
}
