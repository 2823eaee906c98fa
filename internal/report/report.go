// Package report renders a completed assessment package for people: Markdown
// for download and HTML (via goldmark with GFM tables) for the browser.
package report

import (
	"bytes"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"airoi.app/assessor/internal/model"
)

type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unsupported report format: %q", s)
}

func (f Format) ContentType() string {
	if f == FormatHTML {
		return "text/html; charset=utf-8"
	}
	return "text/markdown; charset=utf-8"
}

// Render returns the package in the requested format.
func Render(pkg *model.AssessmentPackage, format Format) ([]byte, error) {
	if pkg == nil {
		return nil, fmt.Errorf("no assessment package to render")
	}
	md := Markdown(pkg)
	if format != FormatHTML {
		return []byte(md), nil
	}
	return HTML(pkg.AuditData.CompanyName, md)
}

// Markdown lays out the package top-down: summary, opportunities by phase,
// roadmap, guides, then anything lost along the way. Model-written sections
// are embedded as-is.
func Markdown(pkg *model.AssessmentPackage) string {
	var sb strings.Builder
	audit := pkg.AuditData

	fmt.Fprintf(&sb, "# AI ROI Assessment: %s\n\n", nonEmpty(audit.CompanyName, "Unnamed company"))
	fmt.Fprintf(&sb, "Generated %s\n\n", pkg.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"))

	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- **Industry:** %s\n", nonEmpty(audit.Industry, "not stated"))
	fmt.Fprintf(&sb, "- **Employees:** %d\n", audit.EmployeeCount)
	fmt.Fprintf(&sb, "- **Opportunities identified:** %d\n", len(pkg.Opportunities))
	if len(audit.PainPoints) > 0 {
		sb.WriteString("\n**Pain points**\n\n")
		for _, p := range audit.PainPoints {
			fmt.Fprintf(&sb, "- %s\n", p)
		}
	}
	if len(audit.ComplianceRequirements) > 0 {
		fmt.Fprintf(&sb, "\n**Compliance:** %s\n", strings.Join(audit.ComplianceRequirements, ", "))
	}
	if len(audit.CurrentCosts) > 0 {
		sb.WriteString("\n| Cost | Amount |\n|---|---:|\n")
		keys := make([]string, 0, len(audit.CurrentCosts))
		for k := range audit.CurrentCosts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "| %s | %.2f |\n", cell(k), audit.CurrentCosts[k])
		}
	}

	sb.WriteString("\n## Opportunities\n\n")
	if len(pkg.Opportunities) == 0 {
		sb.WriteString("No automation opportunities were identified.\n")
	} else {
		sb.WriteString("| Title | Phase | Confidence | Timeframe | Estimated ROI |\n|---|---|---|---:|---:|\n")
		for _, opp := range pkg.Opportunities {
			fmt.Fprintf(&sb, "| %s | %s | %s | %d months | %.0f |\n",
				cell(opp.Title), opp.Phase, opp.Confidence, opp.TimeframeMonths, opp.EstimatedROI)
		}

		byPhase := pkg.OpportunitiesByPhase()
		for _, phase := range model.Phases() {
			opps := byPhase[phase]
			if len(opps) == 0 {
				continue
			}
			fmt.Fprintf(&sb, "\n### %s (%s)\n", phase, phase.Horizon())
			for _, opp := range opps {
				writeOpportunity(&sb, opp)
			}
		}
	}

	sb.WriteString("\n## Roadmap\n\n")
	if pkg.Roadmap.Fallback {
		sb.WriteString("> Generated locally because the roadmap strategist was unavailable.\n\n")
	}
	sb.WriteString(strings.TrimSpace(pkg.Roadmap.Content))
	sb.WriteString("\n")

	if len(pkg.ImplementationGuides) > 0 {
		sb.WriteString("\n## Implementation guides\n")
		titles := make([]string, 0, len(pkg.ImplementationGuides))
		for _, opp := range pkg.Opportunities {
			if _, ok := pkg.ImplementationGuides[opp.Title]; ok && !contains(titles, opp.Title) {
				titles = append(titles, opp.Title)
			}
		}
		for _, title := range titles {
			fmt.Fprintf(&sb, "\n### %s\n\n", title)
			if guide := pkg.ImplementationGuides[title]; guide != nil {
				sb.WriteString(strings.TrimSpace(*guide))
				sb.WriteString("\n")
			} else {
				sb.WriteString("_Guide generation failed for this opportunity._\n")
			}
		}
	}

	if pkg.Degraded() {
		sb.WriteString("\n## Incomplete output\n\n")
		for _, d := range pkg.Degradations {
			line := fmt.Sprintf("- **%s** during %s", d.Kind, d.Stage)
			if d.Title != "" {
				line += fmt.Sprintf(" (%s)", d.Title)
			}
			if d.Count > 0 {
				line += fmt.Sprintf(": %d items", d.Count)
			}
			sb.WriteString(line + "\n")
		}
	}

	return sb.String()
}

func writeOpportunity(sb *strings.Builder, opp model.Opportunity) {
	fmt.Fprintf(sb, "\n#### %s\n\n", opp.Title)
	if opp.Description != "" {
		sb.WriteString(opp.Description + "\n\n")
	}
	fmt.Fprintf(sb, "Confidence: %s. Timeframe: %d months. Estimated ROI: %.0f.\n\n", opp.Confidence, opp.TimeframeMonths, opp.EstimatedROI)
	writeList(sb, "What AI can do", opp.CanDo)
	writeList(sb, "What AI cannot do", opp.CannotDo)
	writeList(sb, "Risks", opp.RiskFactors)
	writeList(sb, "Dependencies", opp.Dependencies)
	writeList(sb, "Next steps", opp.NextSteps)
}

func writeList(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "**%s**\n\n", heading)
	for _, item := range items {
		fmt.Fprintf(sb, "- %s\n", item)
	}
	sb.WriteString("\n")
}

// HTML converts Markdown to a standalone page. Raw HTML in the source is not
// passed through.
func HTML(title, markdown string) ([]byte, error) {
	var content bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(markdown), &content); err != nil {
		return nil, fmt.Errorf("markdown convert: %w", err)
	}

	var out bytes.Buffer
	out.WriteString("<!doctype html><html><head><meta charset='utf-8'><title>")
	out.WriteString(html.EscapeString("AI ROI Assessment: " + nonEmpty(title, "Unnamed company")))
	out.WriteString("</title><style>" + pageCSS + "</style></head><body><main class='report'>")
	out.Write(content.Bytes())
	out.WriteString("</main></body></html>")
	return out.Bytes(), nil
}

func cell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

const pageCSS = "body{font-family:system-ui,sans-serif;background:#fff;color:#1c1917;} " +
	".report{max-width:960px;margin:0 auto;padding:1rem 1.5rem;line-height:1.5;} " +
	".report table{width:100%;border-collapse:collapse;font-size:0.9rem;} " +
	".report th,.report td{border:1px solid #a8a29e;padding:0.35rem 0.45rem;text-align:left;vertical-align:top;} " +
	".report thead th{background:#f1f5f9;} " +
	".report pre{background:#f5f5f4;padding:0.75rem;overflow-x:auto;} " +
	".report blockquote{border-left:3px solid #92400e;margin-left:0;padding-left:0.75rem;color:#44403c;}"
