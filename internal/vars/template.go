package vars

import "strings"

// Expand substitutes every ${name} occurrence in input with the
// resolver's value for name. An undefined name is left literal so the
// failure is visible downstream rather than silently dropped.
// $${name} is an escape producing the literal text ${name}, unresolved.
// Expansion is a single left-to-right scan —
// expanded output is never re-scanned, which is what gives
// Expand(Expand(T)) == Expand(T) for any value that itself contains no
// "${".
func Expand(r *Resolver, input string) string {
	if !strings.Contains(input, "${") {
		return input
	}

	var out strings.Builder
	out.Grow(len(input))

	i := 0
	n := len(input)
	for i < n {
		c := input[i]
		if c != '$' {
			out.WriteByte(c)
			i++
			continue
		}

		// $${name} escape: two dollars immediately before a brace.
		if i+2 < n && input[i+1] == '$' && input[i+2] == '{' {
			end := strings.IndexByte(input[i+2:], '}')
			if end >= 0 {
				name := input[i+2 : i+2+end]
				out.WriteByte('$')
				out.WriteByte('{')
				out.WriteString(name)
				out.WriteByte('}')
				i = i + 2 + end + 1
				continue
			}
			// No closing brace: fall through, treat literally below.
		}

		// ${name} reference.
		if i+1 < n && input[i+1] == '{' {
			end := strings.IndexByte(input[i+1:], '}')
			if end >= 0 {
				name := input[i+1 : i+1+end]
				if val, ok := r.Get(name); ok {
					out.WriteString(val)
				} else {
					out.WriteByte('$')
					out.WriteByte('{')
					out.WriteString(name)
					out.WriteByte('}')
				}
				i = i + 1 + end + 1
				continue
			}
		}

		out.WriteByte(c)
		i++
	}

	return out.String()
}

// ExpandHeaders expands every key and value in a header-template map.
func ExpandHeaders(r *Resolver, headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[Expand(r, k)] = Expand(r, v)
	}
	return out
}
