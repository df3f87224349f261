package helpers

import (
	"fmt"

	"github.com/shehryarbajwa/cukebrowser/internal/driver"
)

// scriptResult is what every helper script resolves to.
type scriptResult struct {
	OK     bool   `json:"ok"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

func clickTextScript(selector, text string) string {
	return fmt.Sprintf(`(() => {
	const els = document.querySelectorAll(%[1]s);
	for (let i = 0; i < els.length; i++) {
		const el = els[i];
		if (!el.innerText.replace(/\s+/g, " ").trim().includes(%[2]s)) { continue; }
		el.scrollIntoView({block: "center"});
		el.click();
		return {ok: true, value: String(i)};
	}
	return {ok: false, reason: %[1]s + " containing " + %[2]s};
})()`, driver.Quote(selector), driver.Quote(text))
}

func selectScript(selector, value string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%[1]s);
	if (!el || el.tagName !== "SELECT") { return {ok: false, reason: "no select matches " + %[1]s}; }
	const opt = Array.from(el.options).find(o => o.value === %[2]s || o.text.trim() === %[2]s);
	if (!opt) { return {ok: false, reason: "no option " + %[2]s}; }
	el.value = opt.value;
	el.dispatchEvent(new Event("input", {bubbles: true}));
	el.dispatchEvent(new Event("change", {bubbles: true}));
	return {ok: true, value: opt.value};
})()`, driver.Quote(selector), driver.Quote(value))
}

func pseudoContentScript(selector, pseudo string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%[1]s);
	if (!el) { return {ok: false, reason: %[1]s}; }
	return {ok: true, value: window.getComputedStyle(el, %[2]s).getPropertyValue("content")};
})()`, driver.Quote(selector), driver.Quote(pseudo))
}

func scrollScript(selector string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%[1]s);
	if (!el) { return {ok: false, reason: %[1]s}; }
	el.scrollIntoView({block: "center"});
	return {ok: true};
})()`, driver.Quote(selector))
}
