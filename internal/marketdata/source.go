package marketdata

import (
	"context"
	"fmt"
	"os"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// FileSource loads bonds from a CSV file on local disk.
type FileSource struct {
	Path   string
	Parser Parser
}

// LoadBonds implements domain.BondSource.
func (s FileSource) LoadBonds(_ context.Context) ([]domain.Bond, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("marketdata: open %s: %w", s.Path, err)
	}
	defer f.Close()
	return s.Parser.Parse(f)
}

// BlobSource loads bonds from a CSV object in blob storage.
type BlobSource struct {
	Reader domain.BlobReader
	Path   string
	Parser Parser
}

// LoadBonds implements domain.BondSource.
func (s BlobSource) LoadBonds(ctx context.Context) ([]domain.Bond, error) {
	body, err := s.Reader.Get(ctx, s.Path)
	if err != nil {
		return nil, fmt.Errorf("marketdata: fetch %s: %w", s.Path, err)
	}
	defer body.Close()
	return s.Parser.Parse(body)
}
