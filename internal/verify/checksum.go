package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
)

type Status int

const (
	StatusMatch Status = iota
	StatusMismatch
	StatusChecksumUnreadable
)

func (s Status) String() string {
	switch s {
	case StatusMatch:
		return "match"
	case StatusMismatch:
		return "mismatch"
	case StatusChecksumUnreadable:
		return "checksum unreadable"
	default:
		return "unknown"
	}
}

// Result is one file's verification verdict. The verifier never deletes
// anything; deletion policy belongs to the caller.
type Result struct {
	Status Status
	Reason string
}

func (r Result) OK() bool {
	return r.Status == StatusMatch
}

// Verifier recomputes a data file's SHA256 digest and compares it against
// the value recorded in the companion checksum file.
type Verifier struct {
	fs afero.Fs
}

func NewVerifier(fs afero.Fs) *Verifier {
	return &Verifier{fs: fs}
}

func (v *Verifier) Verify(dataPath, checksumPath string) Result {
	expected, err := v.readChecksum(checksumPath)
	if err != nil {
		return Result{Status: StatusChecksumUnreadable, Reason: err.Error()}
	}
	actual, err := v.digest(dataPath)
	if err != nil {
		return Result{Status: StatusMismatch, Reason: fmt.Sprintf("reading data file: %v", err)}
	}
	if !strings.EqualFold(actual, expected) {
		return Result{Status: StatusMismatch, Reason: fmt.Sprintf("checksum mismatch: got %s, want %s", actual, expected)}
	}
	return Result{Status: StatusMatch}
}

func (v *Verifier) digest(path string) (string, error) {
	f, err := v.fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// readChecksum parses "<hex digest> <filename>" (the filename is optional).
func (v *Verifier) readChecksum(path string) (string, error) {
	raw, err := afero.ReadFile(v.fs, path)
	if err != nil {
		return "", fmt.Errorf("checksum file unreadable: %v", err)
	}
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return "", fmt.Errorf("empty checksum file %s", path)
	}
	digest := fields[0]
	if len(digest) != sha256.Size*2 {
		return "", fmt.Errorf("malformed digest in %s: %q", path, digest)
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return "", fmt.Errorf("malformed digest in %s: %q", path, digest)
	}
	return digest, nil
}

// ValidateChecksumFile is the cheap pre-check run before hashing: it fails
// on missing, empty, or garbage checksum files so a run can re-fetch them
// without paying for a full digest of the data file.
func ValidateChecksumFile(fs afero.Fs, path string) error {
	v := &Verifier{fs: fs}
	_, err := v.readChecksum(path)
	return err
}

// VerifiedSuffix marks a data file whose digest has been confirmed against
// its checksum file. The marker is what lets later runs tell a verified file
// apart from one left behind by a run killed between download and
// verification.
const VerifiedSuffix = ".verified"

// IsVerified reports whether a data file carries a verification marker.
func IsVerified(fs afero.Fs, dataPath string) bool {
	ok, err := afero.Exists(fs, dataPath+VerifiedSuffix)
	return err == nil && ok
}

// MarkVerified records a successful verification as an empty marker file
// next to the data file.
func MarkVerified(fs afero.Fs, dataPath string) error {
	return afero.WriteFile(fs, dataPath+VerifiedSuffix, nil, 0o644)
}

// ClearVerified drops the marker so the file is re-verified next run.
// Missing markers are fine.
func ClearVerified(fs afero.Fs, dataPath string) {
	fs.Remove(dataPath + VerifiedSuffix)
}
