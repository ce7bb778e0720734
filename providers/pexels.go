package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"clipforge/config"
	"clipforge/task"
)

const pexelsSearchURL = "https://api.pexels.com/videos/search"

// PexelsClient downloads stock footage from the Pexels video API.
type PexelsClient struct {
	apiKey  string
	taskDir string
	client  *http.Client
}

func NewPexelsClient(cfg *config.Config) *PexelsClient {
	return &PexelsClient{
		apiKey:  cfg.PexelsAPIKey,
		taskDir: cfg.TaskDir,
		client:  &http.Client{Timeout: 3 * time.Minute},
	}
}

type pexelsSearchResponse struct {
	Videos []struct {
		ID         int     `json:"id"`
		Duration   float64 `json:"duration"`
		VideoFiles []struct {
			Link    string `json:"link"`
			Width   int    `json:"width"`
			Height  int    `json:"height"`
			Quality string `json:"quality"`
		} `json:"video_files"`
	} `json:"videos"`
}

type footageItem struct {
	link     string
	duration float64
}

// Download searches each term in turn and downloads clips until the combined
// footage covers opts.TotalDuration. Duplicate links across terms are
// downloaded once.
func (p *PexelsClient) Download(ctx context.Context, taskID string, terms []string, opts task.FootageOptions) ([]string, error) {
	materialDir := filepath.Join(p.taskDir, taskID, "materials")
	if err := os.MkdirAll(materialDir, 0o755); err != nil {
		return nil, err
	}

	minClip := float64(opts.MaxClipDuration)
	seen := make(map[string]bool)
	var items []footageItem
	for _, term := range terms {
		found, err := p.search(ctx, term, opts.Aspect)
		if err != nil {
			log.Warnf("pexels search %q: %v", term, err)
			continue
		}
		for _, item := range found {
			if seen[item.link] || item.duration < minClip {
				continue
			}
			seen[item.link] = true
			items = append(items, item)
		}
	}

	var paths []string
	var total float64
	for i, item := range items {
		if total >= opts.TotalDuration {
			break
		}
		path := filepath.Join(materialDir, fmt.Sprintf("material-%02d.mp4", i))
		if err := p.download(ctx, item.link, path); err != nil {
			log.Warnf("download %s: %v", item.link, err)
			continue
		}
		paths = append(paths, path)
		total += item.duration
	}

	log.Infof("downloaded %d clips, %.0fs of footage for %.0fs of narration",
		len(paths), total, opts.TotalDuration)
	return paths, nil
}

func orientation(aspect task.VideoAspect) string {
	switch aspect {
	case task.AspectLandscape:
		return "landscape"
	case task.AspectSquare:
		return "square"
	default:
		return "portrait"
	}
}

func (p *PexelsClient) search(ctx context.Context, term string, aspect task.VideoAspect) ([]footageItem, error) {
	return p.searchAt(ctx, pexelsSearchURL, term, aspect)
}

func (p *PexelsClient) searchAt(ctx context.Context, searchURL, term string, aspect task.VideoAspect) ([]footageItem, error) {
	q := url.Values{}
	q.Set("query", term)
	q.Set("per_page", "20")
	q.Set("orientation", orientation(aspect))

	req, err := http.NewRequestWithContext(ctx, "GET", searchURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %s", resp.Status)
	}

	var parsed pexelsSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	targetW, targetH := aspect.Resolution()
	var items []footageItem
	for _, v := range parsed.Videos {
		link := ""
		for _, f := range v.VideoFiles {
			// Prefer an exact resolution match, fall back to any HD file.
			if f.Width == targetW && f.Height == targetH {
				link = f.Link
				break
			}
			if link == "" && f.Quality == "hd" {
				link = f.Link
			}
		}
		if link != "" {
			items = append(items, footageItem{link: link, duration: v.Duration})
		}
	}
	return items, nil
}

func (p *PexelsClient) download(ctx context.Context, link, path string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", link, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %s", resp.Status)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
