package staging

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vfg2006/ozon-performance-sync/internal/domain"
)

const dailySubdir = "daily"

// Store keeps downloaded report files on local disk between the fetch and
// the ingestion phases of a run. Files for one account live under
// "<accountID>-<apiID>/daily/" so the account identity survives the round
// trip through the filesystem.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) accountDir(accountID, apiID int64) string {
	return filepath.Join(s.root, fmt.Sprintf("%d-%d", accountID, apiID), dailySubdir)
}

// Save persists one downloaded report under the account's staging folder.
// Zip archives are unpacked in place; their members are stored, the archive
// itself is not.
func (s *Store) Save(accountID, apiID int64, name string, content []byte) error {
	dir := s.accountDir(accountID, apiID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "creating staging folder")
	}

	if strings.HasSuffix(strings.ToLower(name), ".zip") {
		return s.extractZip(dir, content)
	}

	if err := os.WriteFile(filepath.Join(dir, filepath.Base(name)), content, 0o644); err != nil {
		return errors.Wrapf(err, "writing report file %s", name)
	}

	return nil
}

func (s *Store) extractZip(dir string, content []byte) error {
	archive, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return errors.Wrap(err, "opening report archive")
	}

	for _, member := range archive.File {
		if member.FileInfo().IsDir() {
			continue
		}

		reader, err := member.Open()
		if err != nil {
			return errors.Wrapf(err, "opening archive member %s", member.Name)
		}

		data, err := io.ReadAll(reader)
		reader.Close()
		if err != nil {
			return errors.Wrapf(err, "reading archive member %s", member.Name)
		}

		// Base strips any path the archive may carry.
		target := filepath.Join(dir, filepath.Base(member.Name))
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return errors.Wrapf(err, "writing archive member %s", member.Name)
		}
	}

	return nil
}

// ReadAll walks the whole staging area and returns every staged report file
// with the account identity parsed back from its folder name. Folders that
// do not follow the naming convention are skipped with a warning.
func (s *Store) ReadAll() ([]domain.RawReportFile, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading staging root")
	}

	var files []domain.RawReportFile

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		var accountID, apiID int64
		if _, err := fmt.Sscanf(entry.Name(), "%d-%d", &accountID, &apiID); err != nil {
			logrus.Warnf("staging folder %s does not match the naming convention, skipping", entry.Name())
			continue
		}

		dir := filepath.Join(s.root, entry.Name(), dailySubdir)
		reports, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "reading staging folder %s", entry.Name())
		}

		for _, report := range reports {
			if report.IsDir() {
				continue
			}

			content, err := os.ReadFile(filepath.Join(dir, report.Name()))
			if err != nil {
				return nil, errors.Wrapf(err, "reading staged file %s", report.Name())
			}

			files = append(files, domain.RawReportFile{
				AccountID: accountID,
				APIID:     apiID,
				Name:      report.Name(),
				Content:   content,
			})
		}
	}

	return files, nil
}

// Cleanup removes every account folder under the staging root. Failures are
// logged and swallowed: leftover files cost disk space, not correctness,
// and must never fail a run whose data is already ingested.
func (s *Store) Cleanup() {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if !os.IsNotExist(err) {
			logrus.Warn("could not read staging root for cleanup: ", err)
		}
		return
	}

	for _, entry := range entries {
		path := filepath.Join(s.root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			logrus.Warnf("could not remove staging folder %s: %v", path, err)
		}
	}
}
