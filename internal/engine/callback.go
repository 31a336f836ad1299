package engine

import "strings"

// HandleCallback processes button clicks from Telegram. The only button the
// engine emits is the promote action on paper entry alerts.
func (e *Engine) HandleCallback(callbackID, data string) string {
	if id, ok := strings.CutPrefix(data, "PROMOTE_"); ok {
		return e.promote(id)
	}
	return "⚠️ Invalid callback data."
}
