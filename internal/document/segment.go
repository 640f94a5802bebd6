package document

import (
	"fmt"
	"strings"
	"time"

	"quizforge/internal/models"

	"github.com/google/uuid"
)

// Segmenter splits text into fixed-size passages that overlap by a fixed
// number of runes, so a concept crossing a boundary appears whole in at least
// one passage.
type Segmenter struct {
	Size    int
	Overlap int
	now     func() time.Time
}

func NewSegmenter(size, overlap int) (*Segmenter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Segmenter{Size: size, Overlap: overlap, now: time.Now}, nil
}

// Segment splits text into passages. The window advances by Size-Overlap
// runes; the last window ends exactly at the end of the text. All passages
// share one processing timestamp.
func (s *Segmenter) Segment(text, sourceID string) ([]models.Passage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	runes := []rune(text)
	processedAt := s.now().UTC()
	stride := s.Size - s.Overlap

	var passages []models.Passage
	for start := 0; ; start += stride {
		end := start + s.Size
		if end > len(runes) {
			end = len(runes)
		}
		passages = append(passages, models.Passage{
			ID:          uuid.New(),
			Text:        string(runes[start:end]),
			SourceID:    sourceID,
			ProcessedAt: processedAt,
			Seq:         len(passages),
			Start:       start,
			End:         end,
		})
		if end == len(runes) {
			break
		}
	}
	return passages, nil
}
