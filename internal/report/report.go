// Package report writes a markdown summary of a limit-setting run and its
// HTML rendering.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"echidna/domain/core"
	"echidna/domain/limit"
)

// SpectrumRow summarises a spectrum after cuts
type SpectrumRow struct {
	Name          string
	NumDecays     float64
	RawEvents     int
	Events        float64
	ROIEfficiency float64
}

// Input is everything the report shows
type Input struct {
	Run             *limit.Run
	ChiSquared      string
	ConfidenceLevel float64
	Livetime        float64
	Spectra         []SpectrumRow
	Plots           []string // paths relative to the report
}

// Markdown renders the report
func Markdown(in Input) []byte {
	var sb strings.Builder
	run := in.Run

	sb.WriteString(fmt.Sprintf("# Limits: %s\n\n", run.Name))
	sb.WriteString(fmt.Sprintf("**Run**: `%s`\n", run.ID))
	sb.WriteString(fmt.Sprintf("**Date**: %s\n", run.CreatedAt.Format("2006-01-02 15:04")))
	sb.WriteString(fmt.Sprintf("**Analysis fingerprint**: `%s`\n", core.Hash(run.Fingerprint).Short()))
	sb.WriteString(fmt.Sprintf("**Chi-squared**: %s, **CL**: %.0f%%, **Livetime**: %.4g y\n\n",
		in.ChiSquared, in.ConfidenceLevel*100, in.Livetime))

	if len(in.Spectra) > 0 {
		sb.WriteString("## Spectra\n\n")
		sb.WriteString("| Spectrum | Num decays | Raw events | Events | ROI efficiency |\n")
		sb.WriteString("|---|---|---|---|---|\n")
		for _, s := range in.Spectra {
			sb.WriteString(fmt.Sprintf("| %s | %.6g | %d | %.6g | %.4f |\n",
				s.Name, s.NumDecays, s.RawEvents, s.Events, s.ROIEfficiency))
		}
		sb.WriteString("\n")
	}

	for _, mode := range []core.Mode{core.ModeNoPenalty, core.ModePenalty} {
		var rows []limit.Limit
		for _, l := range run.Limits {
			if l.Mode == mode {
				rows = append(rows, l)
			}
		}
		if len(rows) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("## %s\n\n", modeTitle(mode)))
		sb.WriteString("| Signal | Limit [counts] | Best fit | Half-life [y] | Effective mass [eV] |\n")
		sb.WriteString("|---|---|---|---|---|\n")
		for _, l := range rows {
			if l.Failed() {
				sb.WriteString(fmt.Sprintf("| %s | _%s_ | | | |\n", l.Signal, l.Failure))
				continue
			}
			sb.WriteString(fmt.Sprintf("| %s | %.4g | %.4g | %s | %s |\n",
				l.Signal, l.Counts, l.BestFit, optional(l.HalfLife), optional(l.EffectiveMass)))
		}
		sb.WriteString("\n")
	}

	if len(in.Plots) > 0 {
		sb.WriteString("## Plots\n\n")
		for _, p := range in.Plots {
			name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
			sb.WriteString(fmt.Sprintf("![%s](%s)\n\n", name, filepath.ToSlash(p)))
		}
	}

	return []byte(sb.String())
}

func modeTitle(mode core.Mode) string {
	if mode == core.ModeNoPenalty {
		return "No penalty term"
	}
	return "With penalty term"
}

func optional(v float64) string {
	if v == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.4g", v)
}

// HTML renders markdown as a complete HTML page
func HTML(md []byte, title string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: title,
	})
	return markdown.ToHTML(md, p, renderer)
}

// Write saves report.md and report.html in dir and returns their paths
func Write(dir string, in Input) (string, string, error) {
	if in.Run == nil {
		return "", "", fmt.Errorf("no run to report")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create report directory: %w", err)
	}

	md := Markdown(in)
	mdPath := filepath.Join(dir, "report.md")
	if err := os.WriteFile(mdPath, md, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write markdown report: %w", err)
	}

	htmlPath := filepath.Join(dir, "report.html")
	if err := os.WriteFile(htmlPath, HTML(md, in.Run.Name), 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write html report: %w", err)
	}
	return mdPath, htmlPath, nil
}
