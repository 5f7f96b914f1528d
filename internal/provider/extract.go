package provider

import "github.com/tidwall/gjson"

// ExtractText pulls the final answer out of a non-streaming invoke
// response, per family.
func ExtractText(family Family, body []byte) string {
	switch family {
	case FamilyNova:
		return gjson.GetBytes(body, "output.message.content.0.text").String()
	case FamilyTitan:
		return gjson.GetBytes(body, "results.0.outputText").String()
	case FamilyLlama:
		return gjson.GetBytes(body, "generation").String()
	case FamilyMistral:
		return gjson.GetBytes(body, "outputs.0.text").String()
	default:
		if text := gjson.GetBytes(body, "content.0.text"); text.Exists() {
			return text.String()
		}
		return gjson.GetBytes(body, "completion").String()
	}
}
