package analytics

import (
	"errors"
	"fmt"
	"time"

	"github.com/lablabs/cloudflare-analytics-export/internal/models"
)

// ErrInvalidRange is returned for empty or inverted ranges.
var ErrInvalidRange = errors.New("invalid date range")

// Chunk partitions [from, to) into contiguous ranges no longer than maxSpan, in ascending order.
func Chunk(from, to time.Time, maxSpan time.Duration) ([]models.DateRange, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: from %s is not before to %s", ErrInvalidRange,
			from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	if maxSpan <= 0 {
		return nil, fmt.Errorf("%w: chunk span must be positive", ErrInvalidRange)
	}

	n := int(to.Sub(from) / maxSpan)
	if to.Sub(from)%maxSpan != 0 {
		n++
	}
	chunks := make([]models.DateRange, 0, n)

	for cursor := from; cursor.Before(to); {
		end := cursor.Add(maxSpan)
		if end.After(to) {
			end = to
		}
		chunks = append(chunks, models.DateRange{From: cursor, To: end})
		cursor = end
	}
	return chunks, nil
}
