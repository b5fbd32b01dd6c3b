// Package guardrail classifies questions into safety and scope categories
// before any retrieval happens.
package guardrail

import "regexp"

type Category int

const (
	Normal Category = iota
	Emergency
	OutOfScope
	MemberSpecific
)

func (c Category) String() string {
	switch c {
	case Emergency:
		return "EMERGENCY"
	case OutOfScope:
		return "OUT_OF_SCOPE"
	case MemberSpecific:
		return "MEMBER_SPECIFIC"
	default:
		return "NORMAL"
	}
}

const (
	EmergencyMessage = "⚠️ Bei akuten Notfällen rufen Sie bitte umgehend den Notruf 112. " +
		"Für medizinische Beratung erreichen Sie AOK-Clarimedis rund um die Uhr."

	OutOfScopeMessage = "Dazu liegen mir in den bereitgestellten AOK-Quellen keine Informationen vor. " +
		"Bitte stellen Sie eine Frage rund um gesetzliche Krankenversicherung, AOK-Leistungen, ePA, " +
		"Beiträge, Mitgliedschaft oder Versichertenservices."

	MemberSpecificMessage = "Für personenbezogene Anliegen (z. B. Antrags- oder Leistungsstatus, Adress-/Bankdaten) " +
		"nutzen Sie bitte 'Meine AOK' oder rufen Sie die kostenfreie Servicenummer 0800 026 00 00 an."

	NoEvidenceMessage = "Dafür habe ich in den bereitgestellten Quellen keinen Beleg."
)

// wordPattern matches any alternative as a whole word. RE2's \b only knows
// ASCII word characters, so letters such as ä or ß are treated as part of a
// word explicitly.
func wordPattern(alternatives string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(?:` + alternatives + `)(?:$|[^\p{L}\p{N}_])`)
}

var (
	emergencyPattern = wordPattern(
		`notfall|akut|bewusstlos|atemnot|starker(?:\s|-)schmerz|blutung|schlaganfall|herzinfarkt`,
	)
	outOfScopePattern = wordPattern(
		`programmieren|python|fußball|reise|kfz|steuererklärung|mathematikprüfung|gaming|wetter`,
	)
	memberSpecificPattern = wordPattern(
		`mein(?:e|) antrag|leistungsstand|bearbeitungsstand|mitgliedsnummer|` +
			`adresse ändern|iban|bankverbindung|krankengeld status|` +
			`rechnung einreichen status`,
	)
)

func IsEmergency(question string) bool      { return emergencyPattern.MatchString(question) }
func IsOutOfScope(question string) bool     { return outOfScopePattern.MatchString(question) }
func IsMemberSpecific(question string) bool { return memberSpecificPattern.MatchString(question) }

// Classify returns the first matching category in the order
// Emergency, OutOfScope, MemberSpecific; Normal when nothing matches.
func Classify(question string) Category {
	switch {
	case IsEmergency(question):
		return Emergency
	case IsOutOfScope(question):
		return OutOfScope
	case IsMemberSpecific(question):
		return MemberSpecific
	default:
		return Normal
	}
}

// CannedMessage is the fixed answer for a safety category; ok is false for Normal.
func CannedMessage(c Category) (string, bool) {
	switch c {
	case Emergency:
		return EmergencyMessage, true
	case OutOfScope:
		return OutOfScopeMessage, true
	case MemberSpecific:
		return MemberSpecificMessage, true
	default:
		return "", false
	}
}

// NeedsFallback reports whether retrieval produced too little evidence.
func NeedsFallback(hitCount, minNeeded int) bool {
	return hitCount < minNeeded
}
