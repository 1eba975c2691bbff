package datasets

import "strings"

// receiverGroups maps the accounting system's receiver group label to how
// the receiver is recorded. Groups absent from the table are not allowed
// for import: their acts are excluded by rule, not by data quality.
//
// keepSourceReceiver means the act's own receiver text is kept; otherwise
// the group's canonical label replaces it.
var receiverGroups = map[string]struct {
	keepSourceReceiver bool
	label              string
}{
	"Отримувачі благодійної допомоги юр. лица": {keepSourceReceiver: true},
	"Індивідуальні ВЧ":                         {label: "Військово службовець індивідуально"},
	"Дети и мед. гражданские, старики":         {label: "Допомога цивільним"},
}

// mapReceiver applies the categorical remap for distribution acts.
// Returns the canonical receiver label and whether the act is importable.
func mapReceiver(receiver, group string) (string, bool) {
	entry, ok := receiverGroups[strings.TrimSpace(group)]
	if !ok {
		return "", false
	}
	if entry.keepSourceReceiver {
		return strings.TrimSpace(receiver), true
	}
	return entry.label, true
}
