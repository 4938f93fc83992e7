package retention

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"slunch/pkg/state/logger"
	"slunch/pkg/timeutil"
)

// fileLease is a lock file shared by every process working on the same data
// directory, so the server job and the CLI never prune at the same time.
type fileLease struct {
	path string
}

type leaseFile struct {
	Owner   string `json:"owner"`
	Expires string `json:"expires"`
}

var errNotOwner = errors.New("lease held by another owner")

func newFileLease(dir string) *fileLease {
	return &fileLease{path: filepath.Join(dir, "retention.lock")}
}

func (l *fileLease) write(path string, lf leaseFile) error {
	b, err := json.Marshal(lf)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

func (l *fileLease) read() (leaseFile, error) {
	var lf leaseFile
	data, err := os.ReadFile(l.path)
	if err != nil {
		return lf, err
	}
	err = json.Unmarshal(data, &lf)
	return lf, err
}

// Acquire takes the lease unless a live one is held by someone else.
func (l *fileLease) Acquire(owner string, ttl time.Duration) (bool, error) {
	now := timeutil.Now()
	tmp := l.path + "." + owner + ".tmp"
	if err := l.write(tmp, leaseFile{Owner: owner, Expires: now.Add(ttl).Format(time.RFC3339)}); err != nil {
		logger.Error("lease_tmp_write_failed", "path", tmp, "error", err)
		return false, err
	}
	defer os.Remove(tmp)

	// link fails when the lock file exists
	if err := os.Link(tmp, l.path); err == nil {
		logger.Debug("lease_acquired", "path", l.path, "owner", owner)
		return true, nil
	}

	existing, err := l.read()
	if err != nil {
		return false, err
	}
	exp, _ := time.Parse(time.RFC3339, existing.Expires)
	if !exp.Before(now) {
		logger.Info("lease_currently_held", "path", l.path, "owner", existing.Owner)
		return false, nil
	}
	if err := os.Rename(tmp, l.path); err != nil {
		logger.Error("lease_replace_failed", "error", err)
		return false, err
	}
	logger.Info("lease_acquired_replaced", "path", l.path, "owner", owner, "previous", existing.Owner)
	return true, nil
}

func (l *fileLease) Renew(owner string, ttl time.Duration) error {
	existing, err := l.read()
	if err != nil {
		return err
	}
	if existing.Owner != owner {
		return errNotOwner
	}
	existing.Expires = timeutil.Now().Add(ttl).Format(time.RFC3339)
	tmp := l.path + "." + owner + ".tmp"
	if err := l.write(tmp, existing); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}

func (l *fileLease) Release(owner string) error {
	existing, err := l.read()
	if err != nil {
		return err
	}
	if existing.Owner != owner {
		logger.Error("lease_release_not_owner", "owner", owner, "holder", existing.Owner)
		return errNotOwner
	}
	return os.Remove(l.path)
}
