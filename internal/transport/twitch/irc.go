package twitch

import "strings"

// line is one parsed IRC message. Tags are kept raw.
type line struct {
	Tags     string
	Prefix   string
	Command  string
	Params   []string
	Trailing string
}

// Nick returns the nickname part of the prefix ("nick!user@host").
func (l line) Nick() string {
	p := l.Prefix
	if i := strings.IndexByte(p, '!'); i >= 0 {
		return p[:i]
	}
	return p
}

func parseLine(raw string) (line, bool) {
	s := strings.TrimRight(raw, "\r\n")
	if s == "" {
		return line{}, false
	}
	var l line
	if s[0] == '@' {
		i := strings.IndexByte(s, ' ')
		if i < 0 {
			return line{}, false
		}
		l.Tags, s = s[1:i], strings.TrimLeft(s[i+1:], " ")
	}
	if strings.HasPrefix(s, ":") {
		i := strings.IndexByte(s, ' ')
		if i < 0 {
			return line{}, false
		}
		l.Prefix, s = s[1:i], strings.TrimLeft(s[i+1:], " ")
	}
	if i := strings.Index(s, " :"); i >= 0 {
		l.Trailing = s[i+2:]
		s = s[:i]
	} else if strings.HasPrefix(s, ":") {
		l.Trailing, s = s[1:], ""
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return line{}, false
	}
	l.Command = strings.ToUpper(fields[0])
	l.Params = fields[1:]
	return l, true
}

// sanitize keeps outbound text on a single IRC line.
func sanitize(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}

func channelName(ch string) string {
	return "#" + strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ch), "#"))
}
