package report_test

import (
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"airoi.app/assessor/internal/model"
	"airoi.app/assessor/internal/report"
)

func samplePackage() *model.AssessmentPackage {
	guide := "Step 1: connect the mailbox.\n\n```\ninbox -> classifier -> queue\n```"
	return &model.AssessmentPackage{
		AuditData: model.AuditData{
			CompanyName:   "Northwind Retail",
			Industry:      "retail",
			EmployeeCount: 50,
			PainPoints:    []string{"manual invoice entry"},
			CurrentCosts:  map[string]float64{"staff_monthly": 18000, "it_monthly": 2400},
		},
		Opportunities: []model.Opportunity{
			{
				Title: "Invoice capture", Phase: model.PhaseQuickWin, Confidence: model.ConfidenceHigh,
				CanDo: []string{"Extract structured data from forms"}, CannotDo: []string{"Approve payments"},
				TimeframeMonths: 2, EstimatedROI: 24000,
			},
			{
				Title: "Demand | forecasting", Phase: model.PhaseStrategic, Confidence: model.ConfidenceLow,
				CanDo: []string{"Identify trends"}, CannotDo: []string{"Guarantee predictions"},
				TimeframeMonths: 18, EstimatedROI: 90000,
			},
			{
				Title: "Email triage", Phase: model.PhaseQuickWin, Confidence: model.ConfidenceMedium,
				CanDo: []string{"Classify and route"}, CannotDo: []string{"Handle complaints"},
				TimeframeMonths: 1, EstimatedROI: 6000,
			},
		},
		Roadmap: model.Roadmap{Content: "Phase 1: quick wins.\n<script>alert(1)</script>", CreatedAt: time.Now()},
		ImplementationGuides: map[string]*string{
			"Invoice capture": &guide,
			"Email triage":    nil,
		},
		Degradations: []model.Degradation{
			{Kind: model.DegradationGuideFailed, Stage: "implementation_guides", Title: "Email triage"},
		},
		GeneratedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

var _ = Describe("ParseFormat", func() {
	DescribeTable("accepts known formats",
		func(in string, want report.Format) {
			got, err := report.ParseFormat(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("default", "", report.FormatMarkdown),
		Entry("md", "md", report.FormatMarkdown),
		Entry("markdown", "Markdown", report.FormatMarkdown),
		Entry("html", "HTML", report.FormatHTML),
	)

	It("rejects anything else", func() {
		_, err := report.ParseFormat("pdf")
		Expect(err).To(MatchError(ContainSubstring("pdf")))
	})
})

var _ = Describe("Markdown", func() {
	It("lays out summary, phases, roadmap, guides and degradations in order", func() {
		md := report.Markdown(samplePackage())

		Expect(md).To(HavePrefix("# AI ROI Assessment: Northwind Retail\n"))
		Expect(md).To(ContainSubstring("Generated 2026-03-01 09:30 UTC"))
		Expect(md).To(ContainSubstring("| it_monthly | 2400.00 |"))
		Expect(md).To(ContainSubstring(`| Demand \| forecasting | strategic | low | 18 months | 90000 |`))
		Expect(md).To(ContainSubstring("### quick_win (0-3 months)"))
		Expect(md).To(ContainSubstring("**What AI cannot do**\n\n- Approve payments"))
		Expect(md).To(ContainSubstring("_Guide generation failed for this opportunity._"))
		Expect(md).To(ContainSubstring("- **guide_failed** during implementation_guides (Email triage)"))

		order := []string{"## Summary", "## Opportunities", "## Roadmap", "## Implementation guides", "## Incomplete output"}
		last := -1
		for _, heading := range order {
			idx := strings.Index(md, heading)
			Expect(idx).To(BeNumerically(">", last), heading)
			last = idx
		}
		Expect(strings.Index(md, "### Invoice capture")).To(BeNumerically("<", strings.Index(md, "### Email triage")))
	})

	It("states when nothing was found and flags a fallback roadmap", func() {
		pkg := &model.AssessmentPackage{
			Roadmap:              model.Roadmap{Content: "Outline", Fallback: true},
			ImplementationGuides: map[string]*string{},
		}

		md := report.Markdown(pkg)
		Expect(md).To(ContainSubstring("Unnamed company"))
		Expect(md).To(ContainSubstring("No automation opportunities were identified."))
		Expect(md).To(ContainSubstring("> Generated locally"))
		Expect(md).NotTo(ContainSubstring("## Implementation guides"))
		Expect(md).NotTo(ContainSubstring("## Incomplete output"))
	})
})

var _ = Describe("Render", func() {
	It("returns markdown bytes for the markdown format", func() {
		out, err := report.Render(samplePackage(), report.FormatMarkdown)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(HavePrefix("# AI ROI Assessment"))
	})

	It("renders GFM tables to HTML and drops raw HTML from model output", func() {
		out, err := report.Render(samplePackage(), report.FormatHTML)
		Expect(err).NotTo(HaveOccurred())

		page := string(out)
		Expect(page).To(HavePrefix("<!doctype html>"))
		Expect(page).To(ContainSubstring("<title>AI ROI Assessment: Northwind Retail</title>"))
		Expect(page).To(ContainSubstring("<table>"))
		Expect(page).To(ContainSubstring("<h2>Roadmap</h2>"))
		Expect(page).NotTo(ContainSubstring("<script>"))
	})

	It("fails without a package", func() {
		_, err := report.Render(nil, report.FormatHTML)
		Expect(err).To(HaveOccurred())
	})
})
