package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

// Directory lists supported documents in one flat input directory.
type Directory struct {
	dir    string
	parser *Parser
}

func NewDirectory(dir string, parser *Parser) *Directory {
	if parser == nil {
		parser = NewParser()
	}
	return &Directory{dir: dir, parser: parser}
}

func (d *Directory) List(_ context.Context) ([]domain.SourceRef, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}
	refs := make([]domain.SourceRef, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !slices.Contains(SupportedExtensions, ext) {
			continue
		}
		refs = append(refs, domain.SourceRef{
			ID:       strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			Location: filepath.Join(d.dir, entry.Name()),
		})
	}
	return refs, nil
}

func (d *Directory) Load(ctx context.Context, ref domain.SourceRef) (domain.Document, error) {
	f, err := os.Open(ref.Location)
	if err != nil {
		return domain.Document{}, domain.WrapError(domain.ErrParse, "open "+ref.Location, err)
	}
	defer f.Close()
	return d.parser.Parse(ctx, filepath.Base(ref.Location), f)
}
