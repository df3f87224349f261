package driver

import (
	"encoding/json"
	"fmt"
)

// Scripts shared by the JavaScript-capable backends. Every script resolves
// to a JSON object so a missing element never evaluates to null.

// Quote renders s as a JavaScript string literal.
func Quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// AttributeScript reads one attribute of the first element matching selector.
func AttributeScript(selector, name string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el || !el.hasAttribute(%s)) { return {present: false, value: ""}; }
	return {present: true, value: el.getAttribute(%s)};
})()`, Quote(selector), Quote(name), Quote(name))
}

// AttributeResult is the decoded form of AttributeScript.
type AttributeResult struct {
	Present bool   `json:"present"`
	Value   string `json:"value"`
}

const clearStorageScript = `(() => {
	try { window.localStorage.clear(); } catch (e) {}
	try { window.sessionStorage.clear(); } catch (e) {}
	return {cleared: true};
})()`

const outerHTMLScript = `document.documentElement ? document.documentElement.outerHTML : ""`
