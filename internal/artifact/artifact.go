// Package artifact implements the Artifact Service (§4.3): hashing
// approved files, extracting generated/revised code out of an AI
// response, copying forward unchanged files between iterations, and
// refusing writes that would clobber a protected or already-written
// file.
//
// Grounded on the original Python's aiwf/application/artifact_writer.py
// and approval_handler.py (_extract_and_write_code_files,
// _update_or_create_artifact, _copy_missing_from_previous), with file I/O
// patterns lifted from the teacher's internal/state/artifacts.go and
// fenced-block extraction delegated to the teacher's internal/fileblocks.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/scottcm/aiwf-engine/internal/model"
	"github.com/scottcm/aiwf-engine/internal/pathsafe"
)

// legacyPrefix matches a profile-emitted "iteration-N/" or
// "iteration-N/code/" prefix so it can be stripped before the canonical
// prefix is reapplied — profiles should emit bare repo-relative paths,
// but older ones may still carry the old convention.
var legacyPrefix = regexp.MustCompile(`^iteration-\d+(?:/code)?/`)

// CodeFile is one file a profile extracted from a response body.
type CodeFile struct {
	Path    string
	Content string
}

// Extractor pulls CodeFiles out of a raw response body. Profiles supply
// their own (e.g. wrapping the teacher's fileblocks.Parse); the service
// itself has no opinion on response format.
type Extractor func(responseText string) ([]CodeFile, error)

// WriteError reports a failure while materializing one extracted file.
type WriteError struct {
	Path   string
	Reason string
}

func (e *WriteError) Error() string {
	return "artifact: cannot write " + e.Path + ": " + e.Reason
}

// Service performs artifact operations scoped to one session directory.
type Service struct {
	SessionDir string
}

// New returns a Service rooted at sessionDir.
func New(sessionDir string) *Service {
	return &Service{SessionDir: sessionDir}
}

// HashFile returns the hex-encoded SHA-256 of a file's contents,
// addressed relative to the session directory.
func (s *Service) HashFile(relPath string) (string, error) {
	abs := filepath.Join(s.SessionDir, filepath.FromSlash(relPath))
	f, err := os.Open(abs)
	if err != nil {
		return "", pkgerrors.Wrapf(err, "artifact: hashing %s", relPath)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", pkgerrors.Wrapf(err, "artifact: hashing %s", relPath)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the hex-encoded SHA-256 of data directly, used when
// the caller already holds the content in memory (e.g. a generated file
// just written, or the standards bundle).
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// codeDir returns the session-root-relative code directory for an
// iteration.
func codeDir(iteration int) string {
	return path.Join(iterationDir(iteration), "code")
}

func iterationDir(iteration int) string {
	return "iteration-" + strconv.Itoa(iteration)
}

// ExtractAndWrite runs extractor over responseText, writes each
// resulting file under iteration-<iteration>/code/ (after stripping any
// legacy iteration prefix the profile may have emitted), refuses to
// clobber an existing file or a protected name, and returns one Artifact
// per file with its hash already computed — the extraction and hashing
// happen inside the same approval action, so there is no "unhashed"
// window for generated files the way there is for the plan/review text
// copied verbatim.
func (s *Service) ExtractAndWrite(phase model.Phase, iteration int, responseText string, extractor Extractor) ([]model.Artifact, error) {
	files, err := extractor(responseText)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "artifact: extraction failed")
	}

	dir := codeDir(iteration)
	now := time.Now().UTC()
	var out []model.Artifact

	for _, f := range files {
		// Validate the profile-emitted path itself first, so a ".." cannot
		// be absorbed by the code-directory prefix joined on below.
		rel, err := pathsafe.Validate(s.SessionDir, f.Path)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "artifact: invalid path %q", f.Path)
		}
		stripped := legacyPrefix.ReplaceAllString(rel, "")
		canonical := path.Join(dir, stripped)

		validated, err := pathsafe.ValidateForWrite(s.SessionDir, canonical)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "artifact: invalid path %q", f.Path)
		}

		if _, statErr := os.Stat(validated); statErr == nil {
			return nil, &WriteError{Path: canonical, Reason: "file already exists for this iteration"}
		}

		if err := os.MkdirAll(filepath.Dir(validated), 0755); err != nil {
			return nil, pkgerrors.Wrapf(err, "artifact: creating parent dir for %q", canonical)
		}
		if err := os.WriteFile(validated, []byte(f.Content), 0644); err != nil {
			return nil, pkgerrors.Wrapf(err, "artifact: writing %q", canonical)
		}

		sum := HashBytes([]byte(f.Content))
		out = append(out, model.Artifact{
			Path: canonical, Phase: phase, Iteration: iteration,
			SHA256: &sum, CreatedAt: now,
		})
	}

	return out, nil
}

// CopyForward copies every file present in the previous iteration's code
// directory but absent from the current one, so each iteration holds a
// complete snapshot for downstream hashing/review regardless of how much
// the profile actually rewrote. Missing previous directories are not an
// error — iteration 1 has no predecessor.
func (s *Service) CopyForward(phase model.Phase, iteration int) ([]model.Artifact, error) {
	if iteration <= 1 {
		return nil, nil
	}
	prevDir := filepath.Join(s.SessionDir, filepath.FromSlash(codeDir(iteration-1)))
	curDir := filepath.Join(s.SessionDir, filepath.FromSlash(codeDir(iteration)))

	if _, err := os.Stat(prevDir); err != nil {
		return nil, nil
	}
	if err := os.MkdirAll(curDir, 0755); err != nil {
		return nil, pkgerrors.Wrap(err, "artifact: creating current code dir")
	}

	now := time.Now().UTC()
	var out []model.Artifact

	err := filepath.WalkDir(prevDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(prevDir, p)
		if err != nil {
			return err
		}
		dest := filepath.Join(curDir, rel)
		if _, statErr := os.Stat(dest); statErr == nil {
			return nil // profile already produced this file this iteration
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(dest, data, 0644); err != nil {
			return err
		}

		sum := HashBytes(data)
		relCanonical := path.Join(codeDir(iteration), filepath.ToSlash(rel))
		out = append(out, model.Artifact{
			Path: relCanonical, Phase: phase, Iteration: iteration,
			SHA256: &sum, CreatedAt: now,
		})
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "artifact: copy-forward failed")
	}
	return out, nil
}

// HashPromptIfEnabled records the SHA-256 of an already-rendered prompt
// file into state.PromptHashes, keyed by its session-relative path. It
// is a no-op when hashing is disabled or the prompt file is absent —
// mirroring the original's _hash_prompt_if_enabled, which treats a
// missing prompt as "nothing to hash" rather than an error.
func (s *Service) HashPromptIfEnabled(state *model.WorkflowState, promptRelPath string, enabled bool) error {
	if !enabled {
		return nil
	}
	abs := filepath.Join(s.SessionDir, filepath.FromSlash(promptRelPath))
	if _, err := os.Stat(abs); err != nil {
		return nil
	}
	sum, err := s.HashFile(promptRelPath)
	if err != nil {
		return err
	}
	if state.PromptHashes == nil {
		state.PromptHashes = map[string]string{}
	}
	state.PromptHashes[promptRelPath] = sum
	return nil
}
