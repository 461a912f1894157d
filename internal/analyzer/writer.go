package analyzer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/atlas-diligence/riskscan/internal/model"
)

// ReportWriter persists the rendered report and a machine-readable YAML
// summary next to it.
type ReportWriter struct {
	dir string
}

func NewReportWriter(dir string) *ReportWriter {
	return &ReportWriter{dir: dir}
}

type runSummary struct {
	RunID      string         `yaml:"run_id"`
	Topic      string         `yaml:"topic"`
	Folder     string         `yaml:"folder"`
	Generated  string         `yaml:"generated"`
	RiskCount  int            `yaml:"risk_count"`
	BySeverity map[string]int `yaml:"by_severity"`
	ByCategory map[string]int `yaml:"by_category"`
	Risks      []riskSummary  `yaml:"risks"`
}

type riskSummary struct {
	ID          string `yaml:"id"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	Severity    string `yaml:"severity"`
	Probability string `yaml:"probability"`
	Relevance   string `yaml:"relevance,omitempty"`
	Source      string `yaml:"source,omitempty"`
}

// Write stores the markdown report and its YAML summary, returning the
// report path.
func (w *ReportWriter) Write(run *model.Run, risks []model.Risk, report string) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "report: create dir %s", w.dir)
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	base := fmt.Sprintf("risk-report-%s-%s", stamp, shortID(run.ID))
	reportPath := filepath.Join(w.dir, base+".md")

	if err := os.WriteFile(reportPath, []byte(report), 0o644); err != nil {
		return "", eris.Wrapf(err, "report: write %s", reportPath)
	}

	summaryPath := filepath.Join(w.dir, base+".yaml")
	if err := w.writeSummary(summaryPath, run, risks); err != nil {
		// The report itself is intact; the summary is advisory.
		zap.L().Warn("report: summary write failed", zap.Error(err))
	}

	zap.L().Info("report written",
		zap.String("path", reportPath),
		zap.Int("risks", len(risks)))
	return reportPath, nil
}

func (w *ReportWriter) writeSummary(path string, run *model.Run, risks []model.Risk) error {
	summary := runSummary{
		RunID:      run.ID,
		Topic:      run.Topic,
		Folder:     run.Folder,
		Generated:  time.Now().UTC().Format(time.RFC3339),
		RiskCount:  len(risks),
		BySeverity: make(map[string]int),
		ByCategory: make(map[string]int),
	}
	for _, r := range risks {
		summary.BySeverity[string(r.Severity)]++
		summary.ByCategory[string(r.Category)]++
		summary.Risks = append(summary.Risks, riskSummary{
			ID:          r.ID,
			Type:        string(r.Type),
			Description: r.Description,
			Category:    string(r.Category),
			Severity:    string(r.Severity),
			Probability: string(r.Probability),
			Relevance:   string(r.Relevance),
			Source:      r.SourceDocument,
		})
	}

	data, err := yaml.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "report: marshal summary")
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "report: write %s", path)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
