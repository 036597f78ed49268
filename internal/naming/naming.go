// Package naming derives stable, collision-resistant names for uploaded
// images, batch jobs, and indexed faces. Every component that persists an
// image goes through here so that key formats live in exactly one place.
package naming

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrMalformedName is returned in strict mode when a filename does not carry
// a parseable millisecond timestamp in its second underscore segment.
var ErrMalformedName = errors.New("malformed image filename")

// Mode controls how DeriveDateTag treats filenames it cannot parse.
// Batch ingestion from a trusted local source is strict; networked ingestion
// of client-supplied filenames is lenient and falls back to today's date.
type Mode int

const (
	Strict Mode = iota
	Lenient
)

// DeriveDateTag extracts the millisecond epoch timestamp from a filename of
// the form "<anything>_<ms-epoch>_..." and formats it as DD_MON_YYYY in UTC,
// uppercase. In Lenient mode a filename that cannot be parsed yields the
// current UTC date instead of an error.
func DeriveDateTag(filename string, mode Mode) (string, error) {
	parts := strings.Split(filename, "_")
	if len(parts) < 2 {
		if mode == Lenient {
			return DateTag(time.Now().UTC()), nil
		}
		return "", fmt.Errorf("%w: %q has no timestamp segment", ErrMalformedName, filename)
	}

	ms, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		if mode == Lenient {
			return DateTag(time.Now().UTC()), nil
		}
		return "", fmt.Errorf("%w: %q is not a millisecond timestamp in %q", ErrMalformedName, parts[1], filename)
	}

	return DateTag(time.UnixMilli(ms).UTC()), nil
}

// DateTag formats t as DD_MON_YYYY uppercase, e.g. 03_JUN_2024.
func DateTag(t time.Time) string {
	return strings.ToUpper(t.Format("02_Jan_2006"))
}

// StoredKey builds the flat object key for single-image flows:
// {date-tag}_{6-hex}_{original-filename}. The mode is passed through to
// DeriveDateTag.
func StoredKey(filename string, mode Mode) (string, error) {
	tag, err := DeriveDateTag(filename, mode)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s_%s", tag, shortID(6), filename), nil
}

// BatchKey builds the object key for one input of a batch job. The zero-padded
// index makes keys unique within a job by construction and keeps listing order
// equal to submission order.
func BatchKey(jobID string, index int, filename string) string {
	return fmt.Sprintf("jobs/%s/input/%03d_%s", jobID, index, filename)
}

// InputPrefix is the object-store prefix under which a job's inputs live.
func InputPrefix(jobID string) string {
	return fmt.Sprintf("jobs/%s/input/", jobID)
}

// ResultsKey is the object key of a job's aggregated results artifact.
func ResultsKey(jobID string) string {
	return fmt.Sprintf("jobs/%s/results.json", jobID)
}

// NewJobID generates a job identifier with an embedded submission timestamp:
// job_{unix-seconds}_{8-hex}. Lexicographic order over job ids approximates
// chronological order, which the listing operation relies on.
func NewJobID(t time.Time) string {
	return fmt.Sprintf("job_%d_%s", t.Unix(), shortID(8))
}

// FaceID builds a globally unique face document id for a detection run:
// {image-stem}_face_{position}_{8-hex}. Position is 1-based detection order.
// The random suffix keeps documents from a reprocessed image distinct from a
// prior attempt's.
func FaceID(imageKey string, position int) string {
	return fmt.Sprintf("%s_face_%d_%s", Stem(imageKey), position, shortID(8))
}

// Stem returns the base name of a key or path without its extension.
func Stem(key string) string {
	base := path.Base(key)
	return strings.TrimSuffix(base, path.Ext(base))
}

// ContentType guesses an image content type from the filename extension.
func ContentType(filename string) string {
	ext := strings.TrimPrefix(path.Ext(filename), ".")
	if ext == "" {
		return "application/octet-stream"
	}
	return "image/" + strings.ToLower(ext)
}

func shortID(n int) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return hex[:n]
}
