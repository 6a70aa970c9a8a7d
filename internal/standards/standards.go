// Package standards provides a concrete StandardsProvider: one that
// concatenates a fixed list of local files into the session's standards
// bundle. The materialization contract itself (bundle text + sha256,
// persisted once at init and never touched again) is grounded on the
// original's standards-provider return shape; no concrete materializer
// ships in the original scaffolding beyond "read some files", so the
// file-concatenation behavior here is this engine's own minimal default
// rather than a direct port.
package standards

import (
	"context"
	"os"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/scottcm/aiwf-engine/internal/artifact"
)

// FileBundleProvider concatenates the contents of Paths, each preceded
// by a "## <path>" heading, into one bundle. It satisfies
// provider.StandardsProvider.
type FileBundleProvider struct {
	Paths []string
}

// NewFileBundleProvider returns a provider over the given file paths, in
// the order they should appear in the bundle.
func NewFileBundleProvider(paths []string) *FileBundleProvider {
	return &FileBundleProvider{Paths: paths}
}

func (p *FileBundleProvider) Validate(ctx context.Context) error {
	for _, path := range p.Paths {
		if _, err := os.Stat(path); err != nil {
			return pkgerrors.Wrapf(err, "standards: missing file %s", path)
		}
	}
	return nil
}

// Materialize reads every configured file and joins them into one bundle
// string; BundleHash can then be computed over the result by the caller
// via artifact.HashBytes.
func (p *FileBundleProvider) Materialize(ctx context.Context) (string, error) {
	var b strings.Builder
	for i, path := range p.Paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", pkgerrors.Wrapf(err, "standards: reading %s", path)
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("## ")
		b.WriteString(path)
		b.WriteString("\n\n")
		b.Write(data)
	}
	return b.String(), nil
}

// NoneProvider materializes an empty bundle; cmd/aiwf registers it under
// "none". A session that names no standards provider (and whose profile
// has no default) gets no bundle at all. It satisfies
// provider.StandardsProvider.
type NoneProvider struct{}

func (NoneProvider) Validate(ctx context.Context) error { return nil }

func (NoneProvider) Materialize(ctx context.Context) (string, error) { return "", nil }

// BundleHash is a thin alias documenting that bundle hashing uses the
// same SHA-256 helper as every other artifact hash in the engine.
func BundleHash(bundle string) string {
	return artifact.HashBytes([]byte(bundle))
}
