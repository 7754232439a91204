package wa

import "strings"

// VCard holds the fields read from a contact card.
type VCard struct {
	FormattedName string
	Phone         string
	Email         string
	Organization  string
}

func isVCard(s string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(s)), "BEGIN:VCARD")
}

// ParseVCard scans a vCard line by line. For TEL lines the number after the
// WhatsApp id qualifier is used (TEL;waid=5511...:+55 11 ...). Grouped
// properties such as item1.TEL are accepted. The first value of each
// property wins.
func ParseVCard(card string) VCard {
	var v VCard
	for _, line := range strings.Split(card, "\n") {
		line = strings.TrimSpace(line)
		name := propertyName(line)
		switch {
		case name == "TEL" && v.Phone == "":
			rest := line
			if i := strings.Index(strings.ToLower(line), "waid="); i >= 0 {
				rest = line[i:]
			}
			v.Phone = valueAfterColon(rest)
		case name == "EMAIL" && v.Email == "":
			v.Email = valueAfterColon(line)
		case name == "ORG" && v.Organization == "":
			v.Organization = strings.TrimRight(valueAfterColon(line), ";")
		case name == "FN" && v.FormattedName == "":
			v.FormattedName = valueAfterColon(line)
		}
	}
	return v
}

// propertyName returns the upper-cased property of a content line with any
// group prefix and parameters stripped.
func propertyName(line string) string {
	end := strings.IndexAny(line, ";:")
	if end < 0 {
		return ""
	}
	name := line[:end]
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		name = name[dot+1:]
	}
	return strings.ToUpper(name)
}

func valueAfterColon(s string) string {
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(s[i+1:])
}
