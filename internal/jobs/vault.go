package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"jaybrain/internal/logging"
	"jaybrain/internal/store"
)

// maxWikiLinksPerName caps how many occurrences of one entity name get
// linked in a single note.
const maxWikiLinksPerName = 3

// VaultSync mirrors the store into a markdown vault: one note per memory,
// knowledge item, and graph entity, then a wiki-link and backlink pass over
// the result.
type VaultSync struct {
	Store *store.Store
	Path  string
}

// NewVaultSync builds a vault syncer.
func NewVaultSync(s *store.Store, path string) *VaultSync {
	return &VaultSync{Store: s, Path: path}
}

// Run regenerates the vault tree.
func (v *VaultSync) Run(ctx context.Context) error {
	timer := logging.StartTimer(logging.CategoryVault, "Sync")
	defer timer.Stop()

	if v.Path == "" {
		logging.VaultDebug("No vault path configured; skipping sync")
		return nil
	}

	notes, err := v.collectNotes(ctx)
	if err != nil {
		return err
	}

	entities, err := v.Store.ListEntities("", 10000)
	if err != nil {
		return err
	}
	linkNotes(notes, entities)
	appendBacklinks(notes)

	written := 0
	for _, note := range notes {
		if err := ctx.Err(); err != nil {
			return err
		}
		full := filepath.Join(v.Path, note.RelPath)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("failed to create vault directory: %w", err)
		}
		if err := os.WriteFile(full, []byte(note.Render()), 0o644); err != nil {
			return fmt.Errorf("failed to write note %s: %w", note.RelPath, err)
		}
		written++
	}

	logging.Vault("Vault sync wrote %d notes", written)
	return nil
}

// Note is one markdown file in the vault.
type Note struct {
	RelPath   string
	Title     string // the note's own subject; never self-linked
	Front     map[string]string
	Body      string
	Backlinks []string
}

// Render produces the final markdown: frontmatter, body, backlinks.
func (n *Note) Render() string {
	var b strings.Builder
	b.WriteString("---\n")
	keys := make([]string, 0, len(n.Front))
	for k := range n.Front {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, n.Front[k])
	}
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n\n", n.Title)
	b.WriteString(n.Body)
	if !strings.HasSuffix(n.Body, "\n") {
		b.WriteByte('\n')
	}
	if len(n.Backlinks) > 0 {
		b.WriteString("\n## Backlinks\n\n")
		for _, bl := range n.Backlinks {
			fmt.Fprintf(&b, "- [[%s]]\n", bl)
		}
	}
	return b.String()
}

func (v *VaultSync) collectNotes(ctx context.Context) ([]*Note, error) {
	var notes []*Note

	memories, err := v.Store.ListMemories("", 10000)
	if err != nil {
		return nil, err
	}
	for _, m := range memories {
		title := noteTitle(m.Content, m.ID)
		notes = append(notes, &Note{
			RelPath: filepath.Join("memories", safeFilename(title)+".md"),
			Title:   title,
			Front: map[string]string{
				"id":         m.ID,
				"type":       "memory",
				"category":   m.Category,
				"importance": fmt.Sprintf("%.2f", m.Importance),
				"created":    m.CreatedAt.Format("2006-01-02"),
			},
			Body: m.Content,
		})
	}

	knowledge, err := v.Store.ListKnowledge("", 10000)
	if err != nil {
		return nil, err
	}
	for _, k := range knowledge {
		notes = append(notes, &Note{
			RelPath: filepath.Join("knowledge", safeFilename(k.Title)+".md"),
			Title:   k.Title,
			Front: map[string]string{
				"id":       k.ID,
				"type":     "knowledge",
				"category": k.Category,
				"created":  k.CreatedAt.Format("2006-01-02"),
			},
			Body: k.Content,
		})
	}

	entities, err := v.Store.ListEntities("", 10000)
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body := e.Description
		if len(e.Aliases) > 0 {
			body += "\n\nAliases: " + strings.Join(e.Aliases, ", ")
		}
		notes = append(notes, &Note{
			RelPath: filepath.Join("entities", safeFilename(e.Name)+".md"),
			Title:   e.Name,
			Front: map[string]string{
				"id":   e.ID,
				"type": e.EntityType,
			},
			Body: body,
		})
	}

	return notes, nil
}

var wikiLinkRe = regexp.MustCompile(`\[\[[^\]]+\]\]`)

// linkNotes inserts [[Name]] wiki-links into each note body: first up to
// three unlinked occurrences of each entity name, longest names first so
// "Jay Smith" wins over "Jay". A note never links its own subject, and
// names of one or two characters are skipped entirely.
func linkNotes(notes []*Note, entities []*store.Entity) {
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		if len(e.Name) > 2 {
			names = append(names, e.Name)
		}
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	for _, note := range notes {
		for _, name := range names {
			if strings.EqualFold(name, note.Title) {
				continue
			}
			note.Body = linkOccurrences(note.Body, name, maxWikiLinksPerName)
		}
	}
}

// linkOccurrences wraps up to max case-sensitive occurrences of name in
// body, skipping any stretch that is already inside a wiki-link.
func linkOccurrences(body, name string, max int) string {
	protected := wikiLinkRe.FindAllStringIndex(body, -1)
	inLink := func(start, end int) bool {
		for _, span := range protected {
			if start < span[1] && end > span[0] {
				return true
			}
		}
		return false
	}

	var b strings.Builder
	linked := 0
	offset := 0
	for linked < max {
		idx := strings.Index(body[offset:], name)
		if idx < 0 {
			break
		}
		start := offset + idx
		end := start + len(name)
		if inLink(start, end) || !wordBoundary(body, start, end) {
			b.WriteString(body[offset:end])
			offset = end
			continue
		}
		b.WriteString(body[offset:start])
		b.WriteString("[[" + name + "]]")
		offset = end
		linked++

		// Spans shift as the builder grows; recompute against the remainder.
		rest := body[offset:]
		protected = wikiLinkRe.FindAllStringIndex(rest, -1)
		body = rest
		offset = 0
	}
	b.WriteString(body[offset:])
	return b.String()
}

func wordBoundary(s string, start, end int) bool {
	if start > 0 && isWordChar(s[start-1]) {
		return false
	}
	if end < len(s) && isWordChar(s[end]) {
		return false
	}
	return true
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// appendBacklinks fills each note's Backlinks with the titles of notes whose
// body links to it.
func appendBacklinks(notes []*Note) {
	for _, target := range notes {
		needle := "[[" + target.Title + "]]"
		for _, other := range notes {
			if other == target {
				continue
			}
			if strings.Contains(other.Body, needle) {
				target.Backlinks = append(target.Backlinks, other.Title)
			}
		}
		sort.Strings(target.Backlinks)
	}
}

// noteTitle derives a filename-ready title from free text.
func noteTitle(content, fallback string) string {
	line := strings.TrimSpace(strings.SplitN(content, "\n", 2)[0])
	if len(line) > 60 {
		line = strings.TrimSpace(line[:60])
	}
	if line == "" {
		return fallback
	}
	return line
}

var unsafeFilenameRe = regexp.MustCompile(`[^A-Za-z0-9 _.-]`)

func safeFilename(s string) string {
	s = unsafeFilenameRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if s == "" {
		s = fmt.Sprintf("note-%d", time.Now().UnixNano())
	}
	return s
}
