// Package report renders the markdown reports the tool emits. Everything
// rendered here has already been redacted upstream.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DoctorSummary is the outcome of a doctor run.
type DoctorSummary struct {
	TimestampUTC string   `json:"timestamp_utc"`
	Env          string   `json:"env"`
	Status       string   `json:"status"`
	Errors       []string `json:"errors"`
	Warnings     []string `json:"warnings"`
	Actions      []string `json:"actions"`
}

// KeyInfo summarizes one effective key without its value.
type KeyInfo struct {
	Secret  bool   `json:"secret"`
	Present bool   `json:"present"`
	Type    string `json:"type"`
}

// CompileReport is the outcome of a compile run.
type CompileReport struct {
	TimestampUTC     string             `json:"timestamp_utc"`
	Env              string             `json:"env"`
	Status           string             `json:"status"`
	EnvFile          string             `json:"env_file"`
	EffectiveContext string             `json:"effective_context"`
	Missing          []string           `json:"missing"`
	Errors           []string           `json:"errors"`
	Warnings         []string           `json:"warnings"`
	Keys             map[string]KeyInfo `json:"keys"`
}

// RenderDoctor renders the doctor markdown report.
func RenderDoctor(s DoctorSummary) string {
	var b strings.Builder
	b.WriteString("# Local Environment Doctor\n\n")
	fmt.Fprintf(&b, "- Timestamp (UTC): `%s`\n", s.TimestampUTC)
	fmt.Fprintf(&b, "- Env: `%s`\n", s.Env)
	fmt.Fprintf(&b, "- Status: **%s**\n\n", s.Status)

	writeSection(&b, "Errors", s.Errors)
	writeSection(&b, "Warnings", s.Warnings)
	writeSection(&b, "Next actions (minimal entry points)", s.Actions)

	b.WriteString("## Details (redacted)\n```json\n")
	b.WriteString(mustIndentJSON(s))
	b.WriteString("\n```\n\n")
	b.WriteString("## Notes\n")
	b.WriteString("- Do not paste secret values into chat.\n")
	b.WriteString("- Evidence files must not include secret values.\n")
	return b.String()
}

// RenderCompile renders the compile markdown report. Missing entries gate
// the status like errors but are listed in their own section.
func RenderCompile(r CompileReport) string {
	var b strings.Builder
	b.WriteString("# Local Environment Compile Report\n\n")
	fmt.Fprintf(&b, "- Timestamp (UTC): `%s`\n", r.TimestampUTC)
	fmt.Fprintf(&b, "- Env: `%s`\n", r.Env)
	fmt.Fprintf(&b, "- Status: **%s**\n", r.Status)
	fmt.Fprintf(&b, "- Env file: `%s`\n", r.EnvFile)
	fmt.Fprintf(&b, "- Effective context: `%s`\n\n", r.EffectiveContext)

	missingSet := make(map[string]bool, len(r.Missing))
	for _, m := range r.Missing {
		missingSet[m] = true
	}
	var extraErrors []string
	for _, e := range r.Errors {
		if !missingSet[e] {
			extraErrors = append(extraErrors, e)
		}
	}

	writeSection(&b, "Errors", extraErrors)
	writeSection(&b, "Missing requirements", r.Missing)
	writeSection(&b, "Warnings", r.Warnings)

	b.WriteString("## Key summary (redacted)\n```json\n")
	b.WriteString(mustIndentJSON(r.Keys))
	b.WriteString("\n```\n\n")
	b.WriteString("## Notes\n")
	b.WriteString("- Secret values are written only to the local env file.\n")
	b.WriteString("- Do not commit the local env file.\n")
	return b.String()
}

// RenderConnectivity renders the connectivity smoke markdown report. The
// details payload is marshaled as-is; callers pass a redacted report.
func RenderConnectivity(env, timestamp, status string, errors, warnings []string, details interface{}) string {
	var b strings.Builder
	b.WriteString("# Connectivity Smoke\n\n")
	fmt.Fprintf(&b, "- Timestamp (UTC): `%s`\n", timestamp)
	fmt.Fprintf(&b, "- Env: `%s`\n", env)
	fmt.Fprintf(&b, "- Status: **%s**\n\n", status)

	writeSection(&b, "Errors", errors)
	writeSection(&b, "Warnings", warnings)

	b.WriteString("## Details (redacted)\n```json\n")
	b.WriteString(mustIndentJSON(details))
	b.WriteString("\n```\n\n")
	b.WriteString("## Notes\n")
	b.WriteString("- Secret values are not printed.\n")
	return b.String()
}

func writeSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

func mustIndentJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%q", err.Error())
	}
	return string(data)
}
