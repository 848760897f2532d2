package curl

import (
	"net/http"
	"strings"

	"github.com/unkn0wn-root/patchcat/internal/merge"
	"github.com/unkn0wn-root/patchcat/internal/model"
)

// Command renders a resolved request as a curl command line. File fields and
// binary bodies reference the attachment by name since their contents are not
// part of the workspace.
func Command(eff merge.Effective) string {
	parts := []string{"curl"}
	if eff.Method != http.MethodGet {
		parts = append(parts, "-X", eff.Method)
	}
	parts = append(parts, quote(eff.URL))
	for _, h := range eff.Headers {
		parts = append(parts, "-H", quote(h.Key+": "+h.Value))
	}

	if eff.HasBody {
		switch eff.Body.Kind {
		case model.BodyFormData:
			for _, f := range eff.Body.Fields {
				if !f.Enabled || f.Key == "" {
					continue
				}
				if f.Type == model.FieldFile {
					parts = append(parts, "-F", quote(f.Key+"=@"+f.Value))
					continue
				}
				parts = append(parts, "-F", quote(f.Key+"="+f.Value))
			}
		case model.BodyBinary:
			parts = append(parts, "--data-binary", "@file")
		default:
			if eff.Body.Content != "" {
				parts = append(parts, "--data-raw", quote(eff.Body.Content))
			}
		}
	}
	return strings.Join(parts, " ")
}

// quote wraps s in single quotes for POSIX shells.
func quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$`!*?&;|<>(){}[]#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
