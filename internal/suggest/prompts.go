package suggest

import "strings"

const AUTOFILL_SYSTEM = `You are a form pre-fill engine for hiring compliance paperwork.
You must output ONLY valid JSON and nothing else.
No markdown. No comments. No extra keys.
Only suggest a value when the source text clearly supports it; omit the key otherwise.
Dates must be ISO format YYYY-MM-DD when possible.`

const AUTOFILL_USER_TEMPLATE = `You will suggest values for the fields of a compliance form
based on the source text below (an offer letter, background report or case notes).

Rules:
- Output a single JSON object mapping field names to suggested string values.
- Use ONLY field names from the allowed list.
- Omit any field the source text does not support.
- Never invent convictions, dates or names.

Form: {{FORM_KIND}}

Allowed fields:
{{FIELDS}}

Source text:
{{SOURCE_TEXT}}

Return JSON only.`

func RenderTemplate(tpl string, vars map[string]string) string {
	rendered := tpl
	for k, v := range vars {
		rendered = strings.ReplaceAll(rendered, "{{"+k+"}}", v)
	}
	return rendered
}

func BuildAutofillPrompt(formKind string, fields []string, sourceText string) string {
	return RenderTemplate(AUTOFILL_USER_TEMPLATE, map[string]string{
		"FORM_KIND":   formKind,
		"FIELDS":      strings.Join(fields, ", "),
		"SOURCE_TEXT": sourceText,
	})
}
