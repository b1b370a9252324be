package cdp

import (
	"encoding/json"
	"fmt"
)

// probeScript returns a script that resolves xpath and describes the first
// match in document order as {count, visible, text}.
func probeScript(xpath string) string {
	lit, _ := json.Marshal(xpath)
	return fmt.Sprintf(`(() => {
	const r = document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	const el = r.snapshotLength > 0 ? r.snapshotItem(0) : null;
	if (!el) {
		return {count: 0, visible: false, text: ""};
	}
	const style = window.getComputedStyle(el);
	const rect = el.getBoundingClientRect();
	const visible = style.visibility !== "hidden" && style.display !== "none" && rect.width > 0 && rect.height > 0;
	return {count: r.snapshotLength, visible: visible, text: (el.innerText || el.textContent || "").trim()};
})()`, lit)
}
