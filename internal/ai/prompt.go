package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/unkn0wn-root/patchcat/internal/model"
)

const (
	historyWindow = 5

	chatSystemInstruction = "You are Patchcat AI, a quirky and clever cat who is an expert assistant for API testing. " +
		"Your personality is playful, a little sassy, and very helpful. You love using cat-puns " +
		"(like 'purr-fect', 'meow-nificent', 'fur-miliar'). You help users debug APIs, write new tests, " +
		"suggest improvements, and explain concepts related to REST, GraphQL, and WebSockets. " +
		"Keep your answers concise and use markdown for formatting."
)

// SerializeBody renders a request body for the analysis prompt. File contents
// are never included.
func SerializeBody(body model.Body) string {
	switch body.Kind {
	case model.BodyFormData:
		if len(body.Fields) == 0 {
			return "Empty Form Data"
		}
		parts := make([]string, 0, len(body.Fields))
		for _, f := range body.Fields {
			value := f.Value
			if f.Type != model.FieldText {
				value = "[file]"
			}
			parts = append(parts, f.Key+": "+value)
		}
		return "Form Data: { " + strings.Join(parts, ", ") + " }"
	case model.BodyBinary:
		return "Binary file data"
	default:
		if body.Content == "" {
			return "None"
		}
		return body.Content
	}
}

func historySummary(history []model.Request) string {
	n := min(len(history), historyWindow)
	lines := make([]string, 0, n)
	for _, h := range history[:n] {
		lines = append(lines, fmt.Sprintf("- %s %s", h.Method, h.Name))
	}
	return strings.Join(lines, "\n")
}

func responseBody(data model.ResponseData) string {
	if data.Kind == model.DataText {
		out, err := json.Marshal(data.Text)
		if err == nil {
			return string(out)
		}
	}
	return data.String()
}

// BuildPrompt asks for up to three follow-up tests in the request's protocol.
// extra is appended verbatim when present.
func BuildPrompt(req model.Request, resp model.Response, history []model.Request, extra string) string {
	var b strings.Builder
	b.WriteString("Analyze the following API interaction.\n")
	b.WriteString("Request:\n")
	fmt.Fprintf(&b, "- Protocol: %s\n", req.Protocol)
	fmt.Fprintf(&b, "- Method: %s\n", req.Method)
	fmt.Fprintf(&b, "- URL: %s\n", req.URL)
	fmt.Fprintf(&b, "- Body: %s\n\n", SerializeBody(req.Body))
	b.WriteString("Response:\n")
	fmt.Fprintf(&b, "- Status: %d\n", resp.Status)
	fmt.Fprintf(&b, "- Body: %s\n\n", responseBody(resp.Data))
	b.WriteString("Based on this, provide up to 3 distinct and actionable suggestions for the next test cases.\n")
	fmt.Fprintf(&b, "Each suggestion's apiRequest object MUST use the same protocol as the original request (%s).\n", req.Protocol)
	b.WriteString("Consider edge cases, error handling, different data inputs, or security checks.\n")
	b.WriteString("Avoid suggesting tests that are too similar to these recent ones:\n")
	b.WriteString(historySummary(history))
	b.WriteString("\n\n")
	if extra = strings.TrimSpace(extra); extra != "" {
		b.WriteString("Additional context:\n")
		b.WriteString(extra)
		b.WriteString("\n\n")
	}
	b.WriteString("Return a JSON array of suggestions. Each header and query param object must have an 'id' property. ")
	b.WriteString("The 'apiRequest' object MUST include the 'protocol' property.")
	return b.String()
}
