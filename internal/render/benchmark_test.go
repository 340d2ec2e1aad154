package render_test

import (
	"context"
	"strings"
	"testing"

	"github.com/pixel-tales-export-api/internal/models"
	"github.com/pixel-tales-export-api/internal/render"
	"github.com/pixel-tales-export-api/internal/templates"
	"github.com/rs/zerolog"
)

// BenchmarkExportStory benchmarks a ten page single-story document
func BenchmarkExportStory(b *testing.B) {
	a := render.NewAssembler(nil, zerolog.Nop())
	story := sampleStory("bench", "Benchmark Tale", 10)
	opts := render.Options{Template: templates.Elegant}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := a.ExportStory(context.Background(), story, opts); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportMetric(float64(10*b.N)/b.Elapsed().Seconds(), "pages/sec")
}

// BenchmarkExportCollection benchmarks a combined document of 20 stories
func BenchmarkExportCollection(b *testing.B) {
	a := render.NewAssembler(nil, zerolog.Nop())
	stories := make([]*models.Story, 20)
	for i := range stories {
		stories[i] = sampleStory("bench", "Collected Tale", 3)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := a.ExportCollection(context.Background(), stories, "bench", render.Options{}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkFlowText benchmarks wrapping a long page of body text
func BenchmarkFlowText(b *testing.B) {
	text := strings.Repeat("the little robot counted every star in the sky ", 200)
	m := fixedWidth(2.1)

	b.ResetTimer()
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))

	for i := 0; i < b.N; i++ {
		render.FlowText(m, text, 170, 15, 200)
	}
}
