package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/amankumarsingh77/playlist-exporter/internal/models"
	"github.com/grafov/m3u8"
)

const maxPlaylistBytes = 4 << 20

type playlistFetcher struct {
	client *http.Client
}

// resolveVariant picks the rendition matching quality and returns it with the
// total duration of its media playlist in seconds.
func (f *playlistFetcher) resolveVariant(ctx context.Context, sourceURL string, quality models.Quality) (*models.Variant, float64, error) {
	playlist, listType, err := f.fetch(ctx, sourceURL)
	if err != nil {
		return nil, 0, err
	}

	switch listType {
	case m3u8.MEDIA:
		return &models.Variant{URI: sourceURL}, mediaDuration(playlist.(*m3u8.MediaPlaylist)), nil
	case m3u8.MASTER:
		variants, err := masterVariants(playlist.(*m3u8.MasterPlaylist), sourceURL)
		if err != nil {
			return nil, 0, err
		}
		variant := pickVariant(variants, quality)

		media, mediaType, err := f.fetch(ctx, variant.URI)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to fetch variant playlist: %w", err)
		}
		if mediaType != m3u8.MEDIA {
			return nil, 0, fmt.Errorf("variant %s is not a media playlist", variant.URI)
		}
		return variant, mediaDuration(media.(*m3u8.MediaPlaylist)), nil
	}
	return nil, 0, fmt.Errorf("unsupported playlist type")
}

func (f *playlistFetcher) fetch(ctx context.Context, playlistURL string) (m3u8.Playlist, m3u8.ListType, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playlistURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build playlist request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch playlist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("playlist fetch returned status %d", resp.StatusCode)
	}

	reader := bufio.NewReader(io.LimitReader(resp.Body, maxPlaylistBytes))
	playlist, listType, err := m3u8.DecodeFrom(reader, false)
	if err != nil {
		return nil, 0, fmt.Errorf("not a m3u8 playlist: %w", err)
	}
	return playlist, listType, nil
}

func masterVariants(master *m3u8.MasterPlaylist, baseURL string) ([]*models.Variant, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid source url: %w", err)
	}

	variants := make([]*models.Variant, 0, len(master.Variants))
	for _, v := range master.Variants {
		if v == nil || v.Iframe || v.URI == "" {
			continue
		}
		ref, err := url.Parse(v.URI)
		if err != nil {
			continue
		}
		width, height := parseResolution(v.Resolution)
		variants = append(variants, &models.Variant{
			URI:       base.ResolveReference(ref).String(),
			Width:     width,
			Height:    height,
			Bandwidth: v.Bandwidth,
		})
	}
	if len(variants) == 0 {
		return nil, fmt.Errorf("master playlist has no playable variants")
	}
	return variants, nil
}

// pickVariant orders renditions by pixel count, then bandwidth: high takes the
// largest, low the smallest, medium the middle one.
func pickVariant(variants []*models.Variant, quality models.Quality) *models.Variant {
	sorted := make([]*models.Variant, len(variants))
	copy(sorted, variants)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Pixels() != sorted[j].Pixels() {
			return sorted[i].Pixels() < sorted[j].Pixels()
		}
		return sorted[i].Bandwidth < sorted[j].Bandwidth
	})

	switch quality {
	case models.QualityLow:
		return sorted[0]
	case models.QualityMedium:
		return sorted[len(sorted)/2]
	default:
		return sorted[len(sorted)-1]
	}
}

func mediaDuration(media *m3u8.MediaPlaylist) float64 {
	total := 0.0
	for _, seg := range media.Segments {
		if seg == nil {
			continue
		}
		total += seg.Duration
	}
	return total
}

func parseResolution(resolution string) (int, int) {
	parts := strings.SplitN(strings.ToLower(resolution), "x", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	width, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0
	}
	height, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0
	}
	return width, height
}
