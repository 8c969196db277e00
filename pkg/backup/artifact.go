// Package backup captures a full snapshot of one report suite as a durable
// artifact and replays artifacts back onto report suites.
package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"github.com/wonderfulspam/suitesync/pkg/catalog"
	"github.com/wonderfulspam/suitesync/pkg/version"
)

// Artifact is an immutable capture of every category of one environment.
type Artifact struct {
	ID          string                              `json:"id"`
	Environment string                              `json:"environment"`
	CapturedAt  time.Time                           `json:"captured_at"`
	ToolVersion string                              `json:"tool_version"`
	Company     string                              `json:"company,omitempty"`
	Digest      string                              `json:"digest"`
	Categories  map[catalog.Category][]catalog.Item `json:"categories"`
}

// NewArtifact builds an artifact from a snapshot and stamps it with a fresh
// id, the running tool version and the content digest.
func NewArtifact(snapshot *catalog.Snapshot, company string) (*Artifact, error) {
	categories := snapshot.Map()

	digest, err := ComputeDigest(categories)
	if err != nil {
		return nil, err
	}

	return &Artifact{
		ID:          uuid.NewString(),
		Environment: snapshot.Environment(),
		CapturedAt:  snapshot.CapturedAt(),
		ToolVersion: version.Version,
		Company:     company,
		Digest:      digest,
		Categories:  categories,
	}, nil
}

// ComputeDigest hashes the RFC 8785 canonical JSON of categories.
func ComputeDigest(categories map[catalog.Category][]catalog.Item) (string, error) {
	raw, err := json.Marshal(categories)
	if err != nil {
		return "", errors.Wrap(err, "encode categories for digest")
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", errors.Wrap(err, "canonicalize categories")
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// Verify checks the digest and that the artifact was written by a compatible
// tool version.
func (a *Artifact) Verify() error {
	digest, err := ComputeDigest(a.Categories)
	if err != nil {
		return err
	}
	if digest != a.Digest {
		return errors.Newf("artifact %s digest mismatch: recorded %s, computed %s", a.ID, a.Digest, digest)
	}

	ok, err := version.Compatible(a.ToolVersion)
	if err != nil {
		return errors.Wrapf(err, "artifact %s", a.ID)
	}
	if !ok {
		return errors.WithHint(
			errors.Newf("artifact %s was written by incompatible version %s (running %s)", a.ID, a.ToolVersion, version.Version),
			"restore it with a release of the same major version")
	}
	return nil
}

// Has reports whether the artifact captured category c.
func (a *Artifact) Has(c catalog.Category) bool {
	_, ok := a.Categories[c]
	return ok
}

// Snapshot returns the captured state as a snapshot.
func (a *Artifact) Snapshot() *catalog.Snapshot {
	return catalog.NewSnapshot(a.Environment, a.CapturedAt, a.Categories)
}

// FileName is the conventional artifact name, backup_<env>_<YYYYmmdd_HHMMSS>.json.
func (a *Artifact) FileName() string {
	return fmt.Sprintf("backup_%s_%s.json", a.Environment, a.CapturedAt.UTC().Format("20060102_150405"))
}

// Encode renders the artifact as indented JSON.
func (a *Artifact) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode artifact")
	}
	return data, nil
}

// DecodeArtifact validates data against the artifact schema and decodes it.
// The digest is not checked here; see Verify.
func DecodeArtifact(data []byte) (*Artifact, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, errors.Wrap(err, "decode artifact")
	}
	for c := range a.Categories {
		if !c.Valid() {
			return nil, errors.Newf("artifact %s holds unknown category %q", a.ID, c)
		}
	}
	return &a, nil
}
