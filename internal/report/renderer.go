package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"commsense_backend/internal/feedback"
)

var ErrIncompleteDocument = errors.New("report document is incomplete")

const (
	pageMargin = 15.0
	lineHeight = 6.0
	chartGap   = 5.0
)

// Document is everything a report needs.
type Document struct {
	CandidateName string                    `json:"candidate_name"`
	GeneratedAt   time.Time                 `json:"generated_at"`
	Summary       *feedback.QuizSummary     `json:"summary"`
	Graphs        *feedback.GraphBundle     `json:"graphs"`
	Questions     []feedback.QuestionAnswer `json:"questions"`
}

// Stats describes a finished render.
type Stats struct {
	QuestionBlocks int `json:"question_blocks"`
	Charts         int `json:"charts"`
	Pages          int `json:"pages"`
}

type Option func(*Renderer)

// WithTempRoot sets the parent directory of per-render scratch directories.
func WithTempRoot(dir string) Option {
	return func(r *Renderer) { r.tempRoot = dir }
}

// WithCompression toggles PDF stream compression. It is on by default.
func WithCompression(on bool) Option {
	return func(r *Renderer) { r.compress = on }
}

// WithProgress calls fn before each section is laid out. A non-nil error
// aborts the render.
func WithProgress(fn func(section string) error) Option {
	return func(r *Renderer) { r.progress = fn }
}

// Renderer lays out reports as PDF. It is safe for concurrent use; every
// render works in its own scratch directory.
type Renderer struct {
	font     *truetype.Font
	tempRoot string
	compress bool
	progress func(section string) error
}

func NewRenderer(opts ...Option) (*Renderer, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse chart font: %w", err)
	}
	r := &Renderer{font: f, compress: true}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Render writes the PDF for doc to w. Chart images live in a scratch
// directory that is removed before Render returns, whether or not it fails.
// Nothing is written to w unless the whole document was assembled.
func (r *Renderer) Render(ctx context.Context, doc Document, w io.Writer) (Stats, error) {
	var stats Stats
	if doc.Summary == nil {
		return stats, fmt.Errorf("%w: no summary", ErrIncompleteDocument)
	}

	dir, err := os.MkdirTemp(r.tempRoot, "report-*")
	if err != nil {
		return stats, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	b := &build{
		r:     r,
		ctx:   ctx,
		dir:   dir,
		doc:   doc,
		pdf:   fpdf.New("P", "mm", "A4", ""),
		stats: &stats,
	}
	if err := b.run(); err != nil {
		return Stats{}, err
	}

	if err := b.pdf.Output(w); err != nil {
		return Stats{}, fmt.Errorf("write pdf: %w", err)
	}
	stats.Pages = b.pdf.PageCount()
	return stats, nil
}

// build is the state of one render.
type build struct {
	r     *Renderer
	ctx   context.Context
	dir   string
	doc   Document
	pdf   *fpdf.Fpdf
	tr    func(string) string
	stats *Stats
}

func (b *build) run() error {
	generated := b.doc.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	b.pdf.SetCompression(b.r.compress)
	b.pdf.SetCreationDate(generated)
	b.pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	b.pdf.SetAutoPageBreak(true, pageMargin)
	b.pdf.SetTitle("Candidate Assessment Report", true)
	b.tr = b.pdf.UnicodeTranslatorFromDescriptor("")
	b.pdf.AddPage()

	sections := []struct {
		name string
		fn   func() error
	}{
		{"title", func() error { b.title(generated); return nil }},
		{"overall", func() error { b.overall(); return nil }},
		{"metrics", func() error { b.metrics(); return nil }},
		{"recommendations", func() error { b.recommendations(); return nil }},
		{"charts", b.charts},
	}
	for _, s := range sections {
		if err := b.enter(s.name); err != nil {
			return err
		}
		if err := s.fn(); err != nil {
			return err
		}
	}

	for i, q := range b.doc.Questions {
		if err := b.enter(fmt.Sprintf("question %d", i+1)); err != nil {
			return err
		}
		b.question(i+1, q)
		b.stats.QuestionBlocks++
	}

	if b.pdf.Err() {
		return fmt.Errorf("assemble pdf: %w", b.pdf.Error())
	}
	return nil
}

func (b *build) enter(section string) error {
	if err := b.ctx.Err(); err != nil {
		return err
	}
	if b.pdf.Err() {
		return fmt.Errorf("assemble pdf: %w", b.pdf.Error())
	}
	if b.r.progress != nil {
		if err := b.r.progress(section); err != nil {
			return fmt.Errorf("section %s: %w", section, err)
		}
	}
	return nil
}

func (b *build) heading(text string, size float64) {
	b.pdf.SetFont("Helvetica", "B", size)
	b.pdf.CellFormat(0, size*0.6, b.tr(text), "", 1, "L", false, 0, "")
	b.pdf.Ln(2)
}

func (b *build) paragraph(label, text string) {
	if label != "" {
		b.pdf.SetFont("Helvetica", "B", 10)
		b.pdf.CellFormat(0, lineHeight, b.tr(label), "", 1, "L", false, 0, "")
	}
	b.pdf.SetFont("Helvetica", "", 10)
	b.pdf.MultiCell(0, lineHeight-1, b.tr(strings.TrimSpace(text)), "", "L", false)
	b.pdf.Ln(2)
}

func (b *build) title(generated time.Time) {
	b.pdf.SetFont("Helvetica", "B", 20)
	b.pdf.CellFormat(0, 12, "Candidate Assessment Report", "", 1, "C", false, 0, "")
	b.pdf.SetFont("Helvetica", "", 11)
	if b.doc.CandidateName != "" {
		b.pdf.CellFormat(0, lineHeight, b.tr("Candidate: "+b.doc.CandidateName), "", 1, "C", false, 0, "")
	}
	b.pdf.CellFormat(0, lineHeight, "Date: "+generated.Format("2006-01-02"), "", 1, "C", false, 0, "")
	b.pdf.Ln(6)
}

func (b *build) overall() {
	o := b.doc.Summary.OverallFeedback
	b.heading("Overall Assessment", 14)
	b.paragraph("Summary", o.Summary)
	b.paragraph("Key Strengths", o.KeyStrengths)
	b.paragraph("Areas of Improvement", o.AreasOfImprovement)

	a := b.doc.Summary.Advanced
	b.heading("Communication Insights", 14)
	b.paragraph("Articulation", a.Articulation)
	b.paragraph("Enunciation", a.Enunciation)
	b.paragraph("Intelligibility", a.Intelligibility)
	b.paragraph("Tone", a.Tone)
	if a.SentenceStructuring != "" {
		b.paragraph("Sentence Structuring and Grammar", a.SentenceStructuring)
	}
}

func (b *build) metrics() {
	a := b.doc.Summary.Advanced
	rows := [][3]string{
		{"Speaking Rate", fmt.Sprintf("%.1f / 5", a.SpeakingRate.Rate), a.SpeakingRate.Comment},
		{"Filler Words", fmt.Sprintf("%d", a.FillerWordUsage.Count), a.FillerWordUsage.Comment},
		{"Pauses", fmt.Sprintf("%d", a.PausePattern.Count), a.PausePattern.Comment},
	}
	widths := [3]float64{40, 25, 115}

	b.heading("Key Metrics", 14)
	b.pdf.SetFont("Helvetica", "B", 10)
	b.pdf.SetFillColor(230, 230, 230)
	for i, h := range []string{"Metric", "Score", "Comments"} {
		b.pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
	}
	b.pdf.Ln(-1)

	b.pdf.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		comment := b.tr(row[2])
		lines := b.pdf.SplitText(comment, widths[2]-2)
		h := float64(max(len(lines), 1)) * lineHeight

		x, y := b.pdf.GetXY()
		b.pdf.CellFormat(widths[0], h, row[0], "1", 0, "L", false, 0, "")
		b.pdf.CellFormat(widths[1], h, row[1], "1", 0, "C", false, 0, "")
		b.pdf.MultiCell(widths[2], lineHeight, comment, "1", "L", false)
		b.pdf.SetXY(x, y+h)
	}
	b.pdf.Ln(6)
}

func (b *build) recommendations() {
	recs := b.doc.Summary.Advanced.ActionableRecommendations
	b.heading("Actionable Recommendations", 14)
	for i, rec := range recs {
		b.pdf.SetFont("Helvetica", "B", 10)
		b.pdf.MultiCell(0, lineHeight, b.tr(fmt.Sprintf("%d. %s", i+1, rec.Recommendation)), "", "L", false)
		b.pdf.SetFont("Helvetica", "I", 10)
		b.pdf.MultiCell(0, lineHeight, b.tr("Reason: "+rec.Reason), "", "L", false)
		b.pdf.Ln(2)
	}

	if ex := b.doc.Summary.Advanced.PersonalizedExamples; len(ex) > 0 {
		b.heading("Personalized Examples", 12)
		for _, e := range ex {
			b.paragraph("", fmt.Sprintf("\"%s\"", e.Line))
			b.paragraph("", e.Feedback)
		}
	}
}

func (b *build) charts() error {
	g := b.doc.Graphs
	if g == nil || g.Questions == 0 {
		return nil
	}

	face := truetype.NewFace(b.r.font, &truetype.Options{Size: 16})
	defer face.Close()

	b.pdf.AddPage()
	b.heading("Performance Trends", 14)

	pageW, pageH := b.pdf.GetPageSize()
	cellW := (pageW - 2*pageMargin - chartGap) / 2
	cellH := cellW * chartHeight / chartWidth

	for i, key := range feedback.SeriesKeys {
		values, ok := g.Series[key]
		if !ok {
			continue
		}
		chart := Chart{Title: feedback.SeriesLabel(key) + " Over Time", Values: values}
		if key != feedback.SeriesFillerWordCount && key != feedback.SeriesPauseCount {
			chart.Floor = 5
		}

		path := filepath.Join(b.dir, fmt.Sprintf("chart_%d_%s.png", i, key))
		if err := chart.draw(face).SavePNG(path); err != nil {
			return fmt.Errorf("render chart %s: %w", key, err)
		}

		col := b.stats.Charts % 2
		if col == 0 && b.pdf.GetY()+cellH > pageH-pageMargin {
			b.pdf.AddPage()
		}
		x := pageMargin + float64(col)*(cellW+chartGap)
		y := b.pdf.GetY()
		b.pdf.ImageOptions(path, x, y, cellW, cellH, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		if col == 1 {
			b.pdf.SetY(y + cellH + chartGap)
		}
		b.stats.Charts++
	}
	if b.stats.Charts%2 == 1 {
		b.pdf.SetY(b.pdf.GetY() + cellH + chartGap)
	}
	return nil
}

func (b *build) question(n int, q feedback.QuestionAnswer) {
	b.pdf.AddPage()
	b.heading(fmt.Sprintf("Question %d", n), 14)
	b.paragraph("", q.Question)

	fb := q.Feedback
	if fb == nil {
		b.paragraph("", "No feedback recorded for this question.")
		return
	}
	b.paragraph("Transcript", fb.Transcript)
	b.paragraph("General Feedback", fb.GeneralFeedback)
	b.paragraph("Sentence Structuring and Grammar", fb.SentenceStructuring)

	p := fb.AdvancedParameters
	b.paragraph("Articulation", p.Articulation)
	b.paragraph("Enunciation", p.Enunciation)
	b.paragraph("Tone", p.Tone)
	b.paragraph("Intelligibility", p.Intelligibility)
	b.paragraph("Speaking Rate", fmt.Sprintf("%.1f / 5. %s", fb.SpeakingRate.Rate, fb.SpeakingRate.Comment))
	b.paragraph("Pauses", fmt.Sprintf("%d. %s", fb.PausePattern.Count, fb.PausePattern.Comment))
	b.paragraph("Filler Words", fmt.Sprintf("%d. %s", fb.FillerWordUsage.Count, fb.FillerWordUsage.Comment))

	if len(fb.TimestampedFeedback) > 0 {
		b.pdf.SetFont("Helvetica", "B", 10)
		b.pdf.CellFormat(0, lineHeight, "Timestamped Notes", "", 1, "L", false, 0, "")
		b.pdf.SetFont("Helvetica", "", 10)
		for _, note := range fb.TimestampedFeedback {
			b.pdf.MultiCell(0, lineHeight-1, b.tr(fmt.Sprintf("[%s] %s", note.Time, note.Feedback)), "", "L", false)
		}
	}
}
