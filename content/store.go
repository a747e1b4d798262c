package content

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/deemkeen/glyptodon/domain"
	"github.com/deemkeen/glyptodon/util"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"
)

const summaryMaxLen = 280

// frontMatter is the optional YAML header of a content file.
type frontMatter struct {
	Title    string   `yaml:"title"`
	Date     string   `yaml:"date"`
	Summary  string   `yaml:"summary"`
	Tags     []string `yaml:"tags"`
	Category string   `yaml:"category"`
}

// Store serves the published content of the site from a directory of
// markdown files, blog posts under blog/ and wiki pages under wiki/.
type Store struct {
	dir string
	md  goldmark.Markdown
	log *log.Logger

	mu    sync.RWMutex
	items map[string]domain.ContentItem
	onNew []func(domain.ContentItem)
}

// NewStore scans dir and returns the store. Missing kind directories are
// created so a fresh install starts with an empty, writable tree.
func NewStore(dir string, logger *log.Logger) (*Store, error) {
	for _, kind := range []domain.ContentKind{domain.BlogPost, domain.WikiPage} {
		if err := os.MkdirAll(filepath.Join(dir, string(kind)), 0755); err != nil {
			return nil, fmt.Errorf("failed to create content dir: %w", err)
		}
	}

	s := &Store{
		dir:   dir,
		md:    goldmark.New(goldmark.WithExtensions(extension.GFM)),
		log:   logger,
		items: make(map[string]domain.ContentItem),
	}
	if err := s.Rescan(); err != nil {
		return nil, err
	}
	logger.Info("Content loaded", "dir", dir, "items", len(s.items))
	return s, nil
}

// ListItems returns all content newest first. Ties break on the slug so
// the order is stable across rescans.
func (s *Store) ListItems() []domain.ContentItem {
	s.mu.RLock()
	out := make([]domain.ContentItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Published.Equal(out[j].Published) {
			return out[i].Slug < out[j].Slug
		}
		return out[i].Published.After(out[j].Published)
	})
	return out
}

// Get looks up one item by kind and slug.
func (s *Store) Get(kind domain.ContentKind, slug string) (domain.ContentItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemKey(kind, slug)]
	return item, ok
}

// OnNewItem registers a callback fired once for every item that appears
// after the initial scan.
func (s *Store) OnNewItem(fn func(domain.ContentItem)) {
	s.mu.Lock()
	s.onNew = append(s.onNew, fn)
	s.mu.Unlock()
}

// Rescan walks the content tree and swaps in the fresh item set. Items
// that were not present before are announced to subscribers, oldest
// first so announcements arrive in publish order.
func (s *Store) Rescan() error {
	fresh := make(map[string]domain.ContentItem)
	for _, kind := range []domain.ContentKind{domain.BlogPost, domain.WikiPage} {
		if err := s.scanKind(kind, fresh); err != nil {
			return err
		}
	}

	s.mu.Lock()
	previous := s.items
	s.items = fresh
	subscribers := append([]func(domain.ContentItem){}, s.onNew...)
	s.mu.Unlock()

	if len(subscribers) == 0 {
		return nil
	}

	var appeared []domain.ContentItem
	for key, item := range fresh {
		if _, ok := previous[key]; !ok {
			appeared = append(appeared, item)
		}
	}
	sort.Slice(appeared, func(i, j int) bool {
		return appeared[i].Published.Before(appeared[j].Published)
	})
	for _, item := range appeared {
		s.log.Info("New content item", "kind", item.Kind, "slug", item.Slug)
		for _, fn := range subscribers {
			fn(item)
		}
	}
	return nil
}

func (s *Store) scanKind(kind domain.ContentKind, out map[string]domain.ContentItem) error {
	root := filepath.Join(s.dir, string(kind))
	paths, err := doublestar.Glob(os.DirFS(root), "**/*.md")
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", kind, err)
	}
	sort.Strings(paths)

	for _, rel := range paths {
		item, err := s.loadItem(kind, rel)
		if err != nil {
			s.log.Warn("Skipping unreadable content file", "kind", kind, "file", rel, "err", err)
			continue
		}
		out[itemKey(kind, item.Slug)] = item
	}
	return nil
}

func (s *Store) loadItem(kind domain.ContentKind, rel string) (domain.ContentItem, error) {
	path := filepath.Join(s.dir, string(kind), rel)
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.ContentItem{}, err
	}

	meta, body, err := splitFrontMatter(raw)
	if err != nil {
		return domain.ContentItem{}, err
	}

	var html bytes.Buffer
	if err := s.md.Convert(body, &html); err != nil {
		return domain.ContentItem{}, fmt.Errorf("failed to render markdown: %w", err)
	}

	slug := slugFromPath(rel)
	title := meta.Title
	if title == "" {
		title = slug
	}

	published, ok := parseDate(meta.Date)
	if !ok {
		// Undated files sort by their modification time
		info, statErr := os.Stat(path)
		if statErr != nil {
			return domain.ContentItem{}, statErr
		}
		published = info.ModTime().UTC()
	}

	summary := meta.Summary
	if summary == "" {
		summary = firstLine(body)
	}

	return domain.ContentItem{
		Slug:      slug,
		Title:     title,
		HTML:      html.String(),
		Summary:   summary,
		Published: published,
		Tags:      meta.Tags,
		Category:  meta.Category,
		Kind:      kind,
	}, nil
}

func itemKey(kind domain.ContentKind, slug string) string {
	return string(kind) + "/" + slug
}

// slugFromPath turns a relative content path into its URL slug.
// "2025/Hello-World.md" -> "2025-hello-world"
func slugFromPath(rel string) string {
	slug := strings.TrimSuffix(rel, filepath.Ext(rel))
	slug = strings.ReplaceAll(slug, "/", "-")
	return strings.ToLower(slug)
}

// splitFrontMatter separates the YAML header from the markdown body.
// Files without a header are all body.
func splitFrontMatter(raw []byte) (frontMatter, []byte, error) {
	var meta frontMatter
	if !bytes.HasPrefix(raw, []byte("---\n")) && !bytes.HasPrefix(raw, []byte("---\r\n")) {
		return meta, raw, nil
	}

	parts := bytes.SplitN(raw[3:], []byte("\n---"), 2)
	if len(parts) == 1 {
		return meta, nil, fmt.Errorf("front matter has no closing delimiter")
	}
	if err := yaml.Unmarshal(parts[0], &meta); err != nil {
		return meta, nil, fmt.Errorf("failed to parse front matter: %w", err)
	}

	body := bytes.TrimLeft(parts[1], "\r\n")
	return meta, body, nil
}

// parseDate accepts bare dates and full timestamps.
func parseDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// firstLine extracts a summary from the body when the front matter has
// none: the first line that is neither blank nor a heading.
func firstLine(body []byte) string {
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return util.Truncate(line, summaryMaxLen)
	}
	return ""
}
